package effects

import (
	"fmt"
	"image"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

type TextOptions struct {
	FontPath  string
	FontSize  float64
	Color     string
	Rotation  float64
	X         float64
	Y         float64
	Lines     []string
	LineSpace float64
}

// ApplyText draws up to three lines of text. Without a font file the
// built-in bitmap face is used.
func ApplyText(img image.Image, opts TextOptions) (image.Image, error) {
	if err := checkBounds(img); err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(img)
	if strings.TrimSpace(opts.FontPath) != "" {
		size := opts.FontSize
		if size <= 0 {
			size = 40
		}
		if err := dc.LoadFontFace(opts.FontPath, size); err != nil {
			return nil, fmt.Errorf("load font %s: %w", opts.FontPath, err)
		}
	} else {
		dc.SetFontFace(basicfont.Face7x13)
	}

	col, err := ParseColor(opts.Color)
	if err != nil {
		return nil, err
	}
	dc.SetColor(col)

	for i, line := range opts.Lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		y := opts.Y + float64(i)*opts.LineSpace
		dc.Push()
		dc.RotateAbout(gg.Radians(-opts.Rotation), opts.X, y)
		dc.DrawString(line, opts.X, y)
		dc.Pop()
	}
	return dc.Image(), nil
}
