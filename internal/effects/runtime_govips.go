//go:build govips && cgo

package effects

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

var defaultResizer resizer = govipsResizer{}

func Startup() error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

// govipsResizer hands thumbnailing to libvips, which is considerably faster
// than the pure Go Lanczos path for full-resolution captures.
type govipsResizer struct{}

func (govipsResizer) Resize(img image.Image, maxSize int) (image.Image, error) {
	if err := Startup(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("stage image for vips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("decode image in vips: %w", err)
	}
	defer ref.Close()

	w, h := fitDimensions(ref.Width(), ref.Height(), maxSize)
	if err := ref.Thumbnail(w, h, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("resize image: %w", err)
	}

	out, err := ref.ToImage(vips.NewDefaultExportParams())
	if err != nil {
		return nil, fmt.Errorf("export resized image: %w", err)
	}
	return out, nil
}
