package effects

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var polaroidShadow = color.NRGBA{R: 60, G: 60, B: 60, A: 255}

// Polaroid mounts img on a white card with a wide bottom edge, drops a soft
// shadow and tilts the result by rotation degrees.
func Polaroid(img image.Image, rotation int) (image.Image, error) {
	if err := checkBounds(img); err != nil {
		return nil, err
	}

	b := img.Bounds()
	border := max(4, b.Dx()/25)
	bottom := border * 4

	card := imaging.New(b.Dx()+2*border, b.Dy()+border+bottom, color.White)
	card = imaging.Paste(card, img, image.Pt(border, border))

	shadowOffset := max(2, border/2)
	canvasW := card.Bounds().Dx() + shadowOffset*2
	canvasH := card.Bounds().Dy() + shadowOffset*2
	canvas := imaging.New(canvasW, canvasH, color.White)
	shadow := imaging.Blur(imaging.New(card.Bounds().Dx(), card.Bounds().Dy(), polaroidShadow), float64(shadowOffset)/2)
	canvas = imaging.Paste(canvas, shadow, image.Pt(shadowOffset*2, shadowOffset*2))
	canvas = imaging.Paste(canvas, card, image.Pt(0, 0))

	return Rotate(canvas, rotation)
}
