package effects

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// FrameOptions describes a decorative overlay. When Extend is set the canvas
// grows by the given percentages so the frame border does not cover the photo.
type FrameOptions struct {
	Path   string
	Extend bool
	Left   int
	Right  int
	Top    int
	Bottom int
}

func ApplyFrame(img image.Image, opts FrameOptions) (image.Image, error) {
	if err := checkBounds(img); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("frame path is required")
	}

	frame, err := imaging.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("load frame %s: %w", opts.Path, err)
	}

	base := img
	if opts.Extend {
		base, err = extendCanvas(img, opts)
		if err != nil {
			return nil, err
		}
	}

	b := base.Bounds()
	fitted := imaging.Resize(frame, b.Dx(), b.Dy(), imaging.Lanczos)
	return imaging.Overlay(base, fitted, b.Min, 1.0), nil
}

func extendCanvas(img image.Image, opts FrameOptions) (image.Image, error) {
	horizontal := opts.Left + opts.Right
	vertical := opts.Top + opts.Bottom
	if opts.Left < 0 || opts.Right < 0 || opts.Top < 0 || opts.Bottom < 0 || horizontal >= 100 || vertical >= 100 {
		return nil, fmt.Errorf("invalid frame extension l=%d r=%d t=%d b=%d", opts.Left, opts.Right, opts.Top, opts.Bottom)
	}

	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * 100 / float64(100-horizontal)))
	h := int(math.Round(float64(b.Dy()) * 100 / float64(100-vertical)))
	x := w * opts.Left / 100
	y := h * opts.Top / 100

	canvas := imaging.New(w, h, color.White)
	return imaging.Paste(canvas, img, image.Pt(x, y)), nil
}
