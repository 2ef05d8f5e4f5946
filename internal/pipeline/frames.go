package pipeline

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
)

// MaxVideoFrames bounds the frame scan; capture never writes more.
const MaxVideoFrames = 98

// VideoFrames yields the still frames extracted next to a video capture,
// named <file>-01.jpg, <file>-02.jpg and so on. The scan stops at the first
// gap. Each call to the returned sequence rescans the folder.
func VideoFrames(dir, file string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := 1; i <= MaxVideoFrames; i++ {
			path := filepath.Join(dir, fmt.Sprintf("%s-%02d.jpg", file, i))
			if _, err := os.Stat(path); err != nil {
				return
			}
			if !yield(path) {
				return
			}
		}
	}
}
