package effects

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

type FlipMode string

const (
	FlipHorizontal FlipMode = "horizontal"
	FlipVertical   FlipMode = "vertical"
	FlipBoth       FlipMode = "both"
)

func Flip(img image.Image, mode FlipMode) (image.Image, error) {
	if err := checkBounds(img); err != nil {
		return nil, err
	}
	switch mode {
	case FlipHorizontal:
		return imaging.FlipH(img), nil
	case FlipVertical:
		return imaging.FlipV(img), nil
	case FlipBoth:
		return imaging.Rotate180(img), nil
	default:
		return nil, fmt.Errorf("unsupported flip mode: %q", mode)
	}
}

// Rotate turns img counter-clockwise by degrees, filling uncovered corners with white.
func Rotate(img image.Image, degrees int) (image.Image, error) {
	if err := checkBounds(img); err != nil {
		return nil, err
	}

	var out image.Image
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		out = imaging.Clone(img)
	case 90:
		out = imaging.Rotate90(img)
	case 180:
		out = imaging.Rotate180(img)
	case 270:
		out = imaging.Rotate270(img)
	default:
		out = imaging.Rotate(img, float64(degrees), color.White)
	}
	if err := checkBounds(out); err != nil {
		return nil, fmt.Errorf("rotate by %d: %w", degrees, err)
	}
	return out, nil
}

// Resize scales img so its longest side is at most maxSize. Smaller images are kept.
func Resize(img image.Image, maxSize int) (image.Image, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("resize requires size > 0, got %d", maxSize)
	}
	if err := checkBounds(img); err != nil {
		return nil, err
	}
	return defaultResizer.Resize(img, maxSize)
}

type resizer interface {
	Resize(img image.Image, maxSize int) (image.Image, error)
}

type imagingResizer struct{}

func (imagingResizer) Resize(img image.Image, maxSize int) (image.Image, error) {
	return imaging.Fit(img, maxSize, maxSize, imaging.Lanczos), nil
}

func fitDimensions(w, h, maxSize int) (int, int) {
	if w <= maxSize && h <= maxSize {
		return w, h
	}
	if w >= h {
		return maxSize, max(1, h*maxSize/w)
	}
	return max(1, w*maxSize/h), maxSize
}
