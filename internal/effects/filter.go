package effects

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/dunamismax/boothflow/internal/domain"
)

var (
	kernelEdge   = [9]float64{-1, -1, -1, -1, 8, -1, -1, -1, -1}
	kernelEmboss = [9]float64{-2, -1, 0, -1, 1, 1, 0, 1, 2}
	kernelMean   = [9]float64{-1, -1, -1, -1, 9, -1, -1, -1, -1}
	kernelSmooth = [9]float64{1, 1, 1, 1, 4, 1, 1, 1, 1}
)

// ApplyFilter runs one of the named colour filters. Plain returns a copy.
func ApplyFilter(img image.Image, filter domain.Filter) (image.Image, error) {
	if err := checkBounds(img); err != nil {
		return nil, err
	}

	switch filter {
	case domain.FilterPlain, "":
		return imaging.Clone(img), nil
	case domain.FilterAntique:
		return colorize(imaging.AdjustContrast(imaging.Grayscale(img), -10), 75, 50, 25), nil
	case domain.FilterAqua:
		return colorize(img, 0, 70, 70), nil
	case domain.FilterBlue:
		return colorize(img, 0, 0, 100), nil
	case domain.FilterBlur:
		return imaging.Blur(img, 2.5), nil
	case domain.FilterColor:
		return imaging.AdjustSaturation(imaging.AdjustContrast(img, 15), 40), nil
	case domain.FilterCool:
		return imaging.AdjustBrightness(colorize(img, 0, 0, 50), 5), nil
	case domain.FilterEdge:
		return imaging.Convolve3x3(img, kernelEdge, nil), nil
	case domain.FilterEmboss:
		return imaging.Convolve3x3(img, kernelEmboss, &imaging.ConvolveOptions{Bias: 128}), nil
	case domain.FilterEverglow:
		return colorize(imaging.AdjustContrast(imaging.AdjustBrightness(img, 10), 10), 30, 30, 0), nil
	case domain.FilterGrayscale:
		return imaging.Grayscale(img), nil
	case domain.FilterGreen:
		return colorize(img, 0, 100, 0), nil
	case domain.FilterMean:
		return imaging.Convolve3x3(img, kernelMean, nil), nil
	case domain.FilterNegate:
		return imaging.Invert(img), nil
	case domain.FilterPink:
		return colorize(img, 100, 0, 100), nil
	case domain.FilterPixelate:
		return pixelate(img, 12), nil
	case domain.FilterRed:
		return colorize(img, 100, 0, 0), nil
	case domain.FilterRetro:
		return colorize(imaging.AdjustContrast(imaging.Grayscale(img), 20), 100, 25, 25), nil
	case domain.FilterSelectiveBlur:
		return imaging.Blur(img, 1), nil
	case domain.FilterSepiaLight:
		return colorize(imaging.Grayscale(img), 90, 60, 30), nil
	case domain.FilterSepiaDark:
		return imaging.AdjustBrightness(colorize(imaging.Grayscale(img), 90, 60, 30), -30), nil
	case domain.FilterSmooth:
		return imaging.Convolve3x3(img, kernelSmooth, &imaging.ConvolveOptions{Normalize: true}), nil
	case domain.FilterVintage:
		return imaging.AdjustBrightness(colorize(imaging.AdjustContrast(img, -20), 60, 30, -15), 5), nil
	case domain.FilterWashed:
		return imaging.AdjustSaturation(imaging.AdjustBrightness(img, 30), -40), nil
	case domain.FilterYellow:
		return colorize(img, 100, 100, -100), nil
	default:
		return nil, fmt.Errorf("unsupported filter: %q", filter)
	}
}

// colorize adds a constant to each channel, clamped to the valid range.
func colorize(img image.Image, dr, dg, db int) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampChannel(int(c.R) + dr),
			G: clampChannel(int(c.G) + dg),
			B: clampChannel(int(c.B) + db),
			A: c.A,
		}
	})
}

func pixelate(img image.Image, block int) *image.NRGBA {
	b := img.Bounds()
	w := max(1, b.Dx()/block)
	h := max(1, b.Dy()/block)
	small := imaging.Resize(img, w, h, imaging.Box)
	return imaging.Resize(small, b.Dx(), b.Dy(), imaging.NearestNeighbor)
}

func clampChannel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
