package booth

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/delivery"
	"github.com/dunamismax/boothflow/internal/logging"
	"github.com/dunamismax/boothflow/internal/store"
	"github.com/dunamismax/boothflow/internal/transcode"
)

func testBooth(t *testing.T) config.Booth {
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

func writeJPEG(t *testing.T, path string, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return buf.Bytes()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type fakePublisher struct {
	mu      sync.Mutex
	uploads []delivery.Upload
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, up delivery.Upload, _ delivery.Warnings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, up)
	return p.err
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.uploads))
	for i, up := range p.uploads {
		names[i] = up.Name
	}
	return names
}

type fakeMirror struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (m *fakeMirror) MirrorCapture(_ context.Context, name, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	return m.err
}

// fakeTools stands in for ffmpeg and ffprobe. ffmpeg writes its output file
// unless exitCode is set.
type fakeTools struct {
	mu       sync.Mutex
	calls    [][]string
	probe    string
	exitCode int
}

func (f *fakeTools) run(_ context.Context, name string, args ...string) ([]byte, int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	switch name {
	case "ffprobe":
		return []byte(f.probe + "\n"), 0, nil
	case "ffmpeg":
		if f.exitCode != 0 {
			return []byte("Unknown encoder 'libx264'"), f.exitCode, nil
		}
		if err := os.WriteFile(args[len(args)-1], []byte("video"), 0o644); err != nil {
			return nil, -1, err
		}
		return nil, 0, nil
	default:
		return nil, -1, errors.New("unexpected command " + name)
	}
}

func (f *fakeTools) ffmpegArgs() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if call[0] == "ffmpeg" {
			return strings.Join(call[1:], " ")
		}
	}
	return ""
}

type harness struct {
	booth     config.Booth
	service   *Service
	ledger    *store.MemoryLedger
	publisher *fakePublisher
	mirror    *fakeMirror
	tools     *fakeTools
	logs      *bytes.Buffer
}

func newHarness(t *testing.T, b config.Booth) *harness {
	t.Helper()

	h := &harness{
		booth:     b,
		ledger:    store.NewMemoryLedger(),
		publisher: &fakePublisher{},
		mirror:    &fakeMirror{},
		tools:     &fakeTools{},
		logs:      &bytes.Buffer{},
	}
	gateway := transcode.NewGateway(b.Commands)
	gateway.WithCommandRunner(h.tools.run)

	h.service = NewService(b, Options{
		Ledger:     h.ledger,
		Publisher:  h.publisher,
		Mirror:     h.mirror,
		Gateway:    gateway,
		Logger:     logging.New(logging.Options{Level: "debug", Format: "logfmt", Output: h.logs}),
		Registerer: prometheus.NewRegistry(),
	})
	return h
}

func (h *harness) temp(name string) string   { return filepath.Join(h.booth.Folders.Temp, name) }
func (h *harness) image(name string) string  { return filepath.Join(h.booth.Folders.Images, name) }
func (h *harness) thumb(name string) string  { return filepath.Join(h.booth.Folders.Thumbs, name) }
func (h *harness) keying(name string) string { return filepath.Join(h.booth.Folders.Keying, name) }

func (h *harness) recorded(t *testing.T) []string {
	t.Helper()
	names, err := h.ledger.List(context.Background())
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	return names
}
