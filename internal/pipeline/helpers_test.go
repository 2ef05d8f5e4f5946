package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/boothflow/internal/config"
)

// testBooth returns default settings with every folder inside a fresh temp dir.
func testBooth(t testing.TB) config.Booth {
	t.Helper()

	b := config.DefaultBooth()
	b.Folders = config.FoldersUnder(t.TempDir())
	for _, dir := range []string{b.Folders.Temp, b.Folders.Images, b.Folders.Thumbs, b.Folders.Keying} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
	}
	return b
}

func buildTestJPEG(t testing.TB, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode source jpeg: %v", err)
	}
	return buf.Bytes()
}

func writeTestJPEG(t testing.TB, path string, w, h int) []byte {
	t.Helper()

	data := buildTestJPEG(t, w, h)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}

func writeTestPNG(t testing.TB, path string, img image.Image) {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}
	return img
}

func imageSize(t *testing.T, path string) (int, int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func tempPath(b config.Booth, name string) string {
	return filepath.Join(b.Folders.Temp, name)
}
