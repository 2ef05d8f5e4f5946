// Package effects holds the in-process image stages used by the capture
// pipeline. Every stage takes an image and returns a new one.
package effects

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/webp"
)

const defaultJPEGQuality = 95

var ErrEmptyImage = errors.New("image has no pixels")

// Load decodes the image at path, honouring EXIF orientation.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	if err := checkBounds(img); err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	return img, nil
}

// SaveJPEG encodes img at path. Quality 0 encodes at the lowest quality the
// encoder accepts; negative or out-of-range values use the default.
func SaveJPEG(img image.Image, path string, quality int) error {
	switch {
	case quality < 0 || quality > 100:
		quality = defaultJPEGQuality
	case quality == 0:
		quality = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode jpeg %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst byte for byte.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

// ParseColor reads "#rrggbb"; an empty value is white.
func ParseColor(hex string) (color.Color, error) {
	if hex == "" {
		return color.White, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("parse color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

func checkBounds(img image.Image) error {
	if img == nil {
		return ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return ErrEmptyImage
	}
	return nil
}
