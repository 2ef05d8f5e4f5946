package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/boothflow/internal/config"
)

// fakeServer is an in-memory FTP file tree shared by every connection it hands out.
type fakeServer struct {
	mu       sync.Mutex
	dirs     map[string]bool
	files    map[string]string
	dials    int
	quits    int
	loginErr error
	storErr  map[string]error
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		dirs:    map[string]bool{"/": true},
		files:   make(map[string]string),
		storErr: make(map[string]error),
	}
}

func (s *fakeServer) dial(_ context.Context, _ string, timeout time.Duration, tlsConf *tls.Config) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timeout <= 0 || tlsConf == nil {
		return nil, errors.New("dial without timeout or tls")
	}
	s.dials++
	return &fakeConn{srv: s, cwd: "/"}, nil
}

func (s *fakeServer) file(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

type fakeConn struct {
	srv *fakeServer
	cwd string
}

func (c *fakeConn) resolve(p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Clean(path.Join(c.cwd, p))
}

func (c *fakeConn) Login(string, string) error { return c.srv.loginErr }

func (c *fakeConn) ChangeDir(p string) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	target := c.resolve(p)
	if !c.srv.dirs[target] {
		return fmt.Errorf("550 %s: no such directory", target)
	}
	c.cwd = target
	return nil
}

func (c *fakeConn) MakeDir(p string) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	c.srv.dirs[c.resolve(p)] = true
	return nil
}

func (c *fakeConn) Stor(p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	target := c.resolve(p)
	if err := c.srv.storErr[path.Base(target)]; err != nil {
		return err
	}
	c.srv.files[target] = string(data)
	return nil
}

func (c *fakeConn) FileSize(p string) (int64, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	data, ok := c.srv.files[c.resolve(p)]
	if !ok {
		return -1, errors.New("550 file not found")
	}
	return int64(len(data)), nil
}

func (c *fakeConn) Quit() error {
	c.srv.mu.Lock()
	c.srv.quits++
	c.srv.mu.Unlock()
	return errors.New("421 closing")
}

type warnings struct{ entries []string }

func (w *warnings) Addf(format string, args ...any) {
	w.entries = append(w.entries, fmt.Sprintf(format, args...))
}

func testTarget(t *testing.T) Target {
	t.Helper()

	tmpl := filepath.Join(t.TempDir(), "index.php")
	if err := os.WriteFile(tmpl, []byte("<h1>{title}</h1>"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	f := config.DefaultBooth().FTP
	f.Enabled = true
	f.Host = "ftp.example.com"
	f.BaseFolder = "www"
	f.Title = "Summer Party"
	f.TemplateLocation = tmpl
	return TargetFromConfig(f)
}

func testUpload(t *testing.T, name string) Upload {
	t.Helper()

	dir := t.TempDir()
	final := filepath.Join(dir, "final.jpg")
	thumb := filepath.Join(dir, "thumb.jpg")
	if err := os.WriteFile(final, []byte("final-bytes"), 0o644); err != nil {
		t.Fatalf("write final: %v", err)
	}
	if err := os.WriteFile(thumb, []byte("thumb-bytes"), 0o644); err != nil {
		t.Fatalf("write thumb: %v", err)
	}
	return Upload{Session: "sess-1", Name: name, Final: final, Thumbnail: thumb}
}

func newTestPublisher(target Target, srv *fakeServer, flags SessionFlags) *Publisher {
	p := NewPublisher(target, flags)
	p.WithDialer(srv.dial)
	p.now = func() time.Time { return time.Date(2026, 7, 4, 18, 30, 0, 0, time.UTC) }
	return p
}

func TestTarget_RemoteDir(t *testing.T) {
	target := Target{BaseFolder: "www", Folder: "photobooth", Title: "Summer Party!"}
	now := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)
	if got := target.RemoteDir(now); got != "/www/photobooth/summer-party" {
		t.Fatalf("unexpected dir %q", got)
	}

	target.AppendDate = true
	target.BaseFolder = ""
	if got := target.RemoteDir(now); got != "photobooth/summer-party/2026/07/04" {
		t.Fatalf("unexpected dated dir %q", got)
	}
}

func TestPublisher_UploadsIntoCreatedTree(t *testing.T) {
	srv := newFakeServer()
	target := testTarget(t)
	target.UploadThumb = true
	p := newTestPublisher(target, srv, nil)

	var warn warnings
	if err := p.Publish(context.Background(), testUpload(t, "cap1.jpg"), &warn); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got, ok := srv.file("/www/photobooth/summer-party/cap1.jpg"); !ok || got != "final-bytes" {
		t.Fatalf("expected uploaded capture, got %q ok=%v", got, ok)
	}
	if _, ok := srv.file("/www/photobooth/summer-party/tmb_cap1.jpg"); !ok {
		t.Fatal("expected uploaded thumbnail")
	}
	if srv.quits != 1 {
		t.Fatalf("expected connection to be closed once, got %d", srv.quits)
	}
	if len(warn.entries) != 0 {
		t.Fatalf("expected no warnings, got %v", warn.entries)
	}

	// A second capture reuses the existing folders.
	if err := p.Publish(context.Background(), testUpload(t, "cap2.jpg"), &warn); err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if _, ok := srv.file("/www/photobooth/summer-party/cap2.jpg"); !ok {
		t.Fatal("expected second capture in the same folder")
	}
}

func TestPublisher_WebpageOncePerSession(t *testing.T) {
	srv := newFakeServer()
	target := testTarget(t)
	target.CreateWebpage = true
	target.AppendDate = true
	flags := NewMemoryFlags()
	p := newTestPublisher(target, srv, flags)

	var warn warnings
	if err := p.Publish(context.Background(), testUpload(t, "a.jpg"), &warn); err != nil {
		t.Fatalf("publish: %v", err)
	}
	page, ok := srv.file("/www/photobooth/summer-party/index.php")
	if !ok || page != "<h1>Summer Party</h1>" {
		t.Fatalf("expected rendered page in the event folder, got %q ok=%v", page, ok)
	}
	if _, ok := srv.file("/www/photobooth/summer-party/2026/07/04/a.jpg"); !ok {
		t.Fatal("expected capture in the dated folder")
	}

	// Tamper with the remote page; a second publish in the same session must not touch it.
	srv.mu.Lock()
	srv.files["/www/photobooth/summer-party/index.php"] = "customised"
	srv.mu.Unlock()
	if err := p.Publish(context.Background(), testUpload(t, "b.jpg"), &warn); err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if page, _ := srv.file("/www/photobooth/summer-party/index.php"); page != "customised" {
		t.Fatalf("expected page to stay untouched, got %q", page)
	}
	if done, _ := flags.Published(context.Background(), "sess-1", "Summer Party"); !done {
		t.Fatal("expected session flag to be set")
	}
}

func TestPublisher_ExistingRemotePageIsKept(t *testing.T) {
	srv := newFakeServer()
	srv.dirs["/www"] = true
	srv.dirs["/www/photobooth"] = true
	srv.dirs["/www/photobooth/summer-party"] = true
	srv.files["/www/photobooth/summer-party/index.php"] = "from yesterday"

	target := testTarget(t)
	target.CreateWebpage = true
	p := newTestPublisher(target, srv, NewMemoryFlags())

	if err := p.Publish(context.Background(), testUpload(t, "a.jpg"), &warnings{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if page, _ := srv.file("/www/photobooth/summer-party/index.php"); page != "from yesterday" {
		t.Fatalf("expected existing page to be kept, got %q", page)
	}
}

func TestPublisher_LoginFailureIsFatal(t *testing.T) {
	srv := newFakeServer()
	srv.loginErr = errors.New("530 login incorrect")
	p := newTestPublisher(testTarget(t), srv, nil)

	err := p.Publish(context.Background(), testUpload(t, "a.jpg"), &warnings{})
	if err == nil || !strings.Contains(err.Error(), "login") {
		t.Fatalf("expected login error, got %v", err)
	}
	if len(srv.files) != 0 {
		t.Fatal("expected nothing uploaded")
	}
	if srv.quits != 1 {
		t.Fatalf("expected connection closed after failure, got %d", srv.quits)
	}
}

func TestPublisher_DialFailureIsFatal(t *testing.T) {
	p := NewPublisher(testTarget(t), nil)
	p.WithDialer(func(context.Context, string, time.Duration, *tls.Config) (Conn, error) {
		return nil, errors.New("i/o timeout")
	})
	if err := p.Publish(context.Background(), testUpload(t, "a.jpg"), &warnings{}); err == nil {
		t.Fatal("expected connect error")
	}
}

func TestPublisher_SilentServerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	held := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		held <- conn
	}()
	t.Cleanup(func() {
		select {
		case conn := <-held:
			_ = conn.Close()
		default:
		}
	})

	target := testTarget(t)
	addr := ln.Addr().(*net.TCPAddr)
	target.Host = "127.0.0.1"
	target.Port = addr.Port
	target.Timeout = time.Second
	p := NewPublisher(target, nil)
	upload := testUpload(t, "a.jpg")

	done := make(chan error, 1)
	go func() {
		done <- p.Publish(context.Background(), upload, &warnings{})
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error from a server that never greets")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("publish did not give up on a silent server")
	}
}

func TestPublisher_ThumbnailFailureIsWarning(t *testing.T) {
	srv := newFakeServer()
	srv.storErr["tmb_a.jpg"] = errors.New("552 quota exceeded")
	target := testTarget(t)
	target.UploadThumb = true
	p := newTestPublisher(target, srv, nil)

	var warn warnings
	if err := p.Publish(context.Background(), testUpload(t, "a.jpg"), &warn); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(warn.entries) != 1 {
		t.Fatalf("expected one warning, got %v", warn.entries)
	}
}

func TestPublisher_PrimaryUploadFailureIsFatal(t *testing.T) {
	srv := newFakeServer()
	srv.storErr["a.jpg"] = errors.New("552 quota exceeded")
	p := newTestPublisher(testTarget(t), srv, nil)

	if err := p.Publish(context.Background(), testUpload(t, "a.jpg"), &warnings{}); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestPublisher_MissingTemplateIsFatal(t *testing.T) {
	srv := newFakeServer()
	target := testTarget(t)
	target.CreateWebpage = true
	target.TemplatePath = filepath.Join(t.TempDir(), "missing.php")
	flags := NewMemoryFlags()
	p := newTestPublisher(target, srv, flags)

	if err := p.Publish(context.Background(), testUpload(t, "a.jpg"), &warnings{}); err == nil {
		t.Fatal("expected template error")
	}
	if done, _ := flags.Published(context.Background(), "sess-1", target.Title); done {
		t.Fatal("expected flag to stay unset")
	}
}

func TestMemoryFlags_ScopedBySessionAndTitle(t *testing.T) {
	ctx := context.Background()
	flags := NewMemoryFlags()
	if err := flags.MarkPublished(ctx, "s1", "Wedding"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if done, _ := flags.Published(ctx, "s1", "Wedding"); !done {
		t.Fatal("expected s1 to be published")
	}
	if done, _ := flags.Published(ctx, "s2", "Wedding"); done {
		t.Fatal("expected other sessions to be unaffected")
	}
	if done, _ := flags.Published(ctx, "s1", "Birthday"); done {
		t.Fatal("expected a new title to need publishing")
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Summer Party":          "summer-party",
		"  Crème Brûlée 2026 ": "creme-brulee-2026",
		"A -- B":                "a-b",
		"snake_case":            "snake_case",
		"!!!":                   "n-a",
		"":                      "n-a",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q): expected %q, got %q", in, want, got)
		}
	}
}
