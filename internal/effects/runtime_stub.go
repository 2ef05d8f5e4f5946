//go:build !govips || !cgo

package effects

var defaultResizer resizer = imagingResizer{}

func Startup() error {
	return nil
}

func Shutdown() {}
