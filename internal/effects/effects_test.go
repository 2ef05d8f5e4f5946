package effects

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/boothflow/internal/domain"
)

func TestFlipHorizontalMirrorsPixels(t *testing.T) {
	src := gradient(4, 2)
	out, err := Flip(src, FlipHorizontal)
	if err != nil {
		t.Fatalf("flip: %v", err)
	}
	if !sameColor(out.At(0, 0), src.At(3, 0)) {
		t.Fatalf("expected left pixel to match source right pixel")
	}
	if _, err := Flip(src, "diagonal"); err == nil {
		t.Fatal("expected error for unsupported flip mode")
	}
}

func TestRotateSwapsDimensions(t *testing.T) {
	out, err := Rotate(gradient(40, 20), 90)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 40 {
		t.Fatalf("expected 20x40, got %v", out.Bounds())
	}
}

func TestResizeFitsLongestSide(t *testing.T) {
	out, err := Resize(gradient(240, 120), 60)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if out.Bounds().Dx() != 60 || out.Bounds().Dy() != 30 {
		t.Fatalf("expected 60x30, got %v", out.Bounds())
	}
	if _, err := Resize(gradient(10, 10), 0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestApplyFilterCatalogue(t *testing.T) {
	src := gradient(32, 32)
	for _, f := range []domain.Filter{
		domain.FilterPlain, domain.FilterAntique, domain.FilterBlur, domain.FilterEdge,
		domain.FilterEmboss, domain.FilterGrayscale, domain.FilterNegate, domain.FilterPixelate,
		domain.FilterSepiaDark, domain.FilterSmooth, domain.FilterVintage, domain.FilterYellow,
	} {
		out, err := ApplyFilter(src, f)
		if err != nil {
			t.Fatalf("filter %s: %v", f, err)
		}
		if out.Bounds().Dx() != 32 || out.Bounds().Dy() != 32 {
			t.Fatalf("filter %s changed dimensions: %v", f, out.Bounds())
		}
	}
	if _, err := ApplyFilter(src, "lomo"); err == nil {
		t.Fatal("expected error for unknown filter")
	}
}

func TestPolaroidGrowsCanvas(t *testing.T) {
	out, err := Polaroid(gradient(100, 80), 0)
	if err != nil {
		t.Fatalf("polaroid: %v", err)
	}
	if out.Bounds().Dx() <= 100 || out.Bounds().Dy() <= 80 {
		t.Fatalf("expected larger canvas, got %v", out.Bounds())
	}
}

func TestApplyFrameExtendsCanvas(t *testing.T) {
	framePath := filepath.Join(t.TempDir(), "frame.png")
	writePNG(t, framePath, image.NewNRGBA(image.Rect(0, 0, 10, 10)))

	out, err := ApplyFrame(gradient(80, 80), FrameOptions{
		Path:   framePath,
		Extend: true,
		Left:   10,
		Right:  10,
		Top:    10,
		Bottom: 10,
	})
	if err != nil {
		t.Fatalf("apply frame: %v", err)
	}
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 100 {
		t.Fatalf("expected 100x100, got %v", out.Bounds())
	}

	if _, err := ApplyFrame(gradient(8, 8), FrameOptions{Path: filepath.Join(t.TempDir(), "missing.png")}); err == nil {
		t.Fatal("expected error for missing frame")
	}
}

func TestApplyTextWithBuiltinFace(t *testing.T) {
	src := solid(120, 60, color.Black)
	out, err := ApplyText(src, TextOptions{
		Color: "#ffffff",
		X:     5,
		Y:     20,
		Lines: []string{"Hello", "", "Booth"},
	})
	if err != nil {
		t.Fatalf("apply text: %v", err)
	}

	lit := false
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !lit; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := out.At(x, y).RGBA(); r > 0 {
				lit = true
				break
			}
		}
	}
	if !lit {
		t.Fatal("expected text pixels to be drawn")
	}
}

func TestCopyFileIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "out", "dst.png")
	writePNG(t, src, gradient(16, 16))

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("copy: %v", err)
	}
	a, _ := os.ReadFile(src)
	b, _ := os.ReadFile(dst)
	if !bytes.Equal(a, b) {
		t.Fatal("expected identical bytes")
	}
}

func TestSaveAndLoadJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jpg")
	if err := SaveJPEG(gradient(50, 30), path, 80); err != nil {
		t.Fatalf("save: %v", err)
	}
	img, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if img.Bounds().Dx() != 50 {
		t.Fatalf("expected width 50, got %d", img.Bounds().Dx())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveJPEGZeroQualityIsLowest(t *testing.T) {
	dir := t.TempDir()
	encode := func(name string, quality int) []byte {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := SaveJPEG(gradient(64, 48), path, quality); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return data
	}

	zero := encode("q0.jpg", 0)
	if !bytes.Equal(zero, encode("q1.jpg", 1)) {
		t.Fatal("expected quality 0 to encode like quality 1")
	}
	if bytes.Equal(zero, encode("default.jpg", -1)) {
		t.Fatal("expected quality 0 to differ from the default")
	}
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / max(1, w-1)),
				G: uint8((y * 255) / max(1, h-1)),
				B: 140,
				A: 255,
			})
		}
	}
	return img
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}
