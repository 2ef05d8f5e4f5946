// Package delivery uploads finished captures to the event's FTP space and
// keeps the companion gallery page in place.
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
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/dunamismax/boothflow/internal/config"
)

const (
	webpageName     = "index.php"
	thumbnailPrefix = "tmb_"
	defaultTimeout  = 10 * time.Second
)

// Conn is the subset of an FTP control connection the publisher needs.
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	FileSize(path string) (int64, error)
	Quit() error
}

// Dialer opens an authenticated-ready connection to addr.
type Dialer func(ctx context.Context, addr string, timeout time.Duration, tlsConf *tls.Config) (Conn, error)

// Warnings receives non-fatal problems.
type Warnings interface {
	Addf(format string, args ...any)
}

// Target describes where and how captures are published.
type Target struct {
	Host               string
	Port               int
	Username           string
	Password           string
	BaseFolder         string
	Folder             string
	Title              string
	AppendDate         bool
	UploadThumb        bool
	CreateWebpage      bool
	TemplatePath       string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func TargetFromConfig(f config.FTP) Target {
	timeout := time.Duration(f.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Target{
		Host:               f.Host,
		Port:               f.Port,
		Username:           f.Username,
		Password:           f.Password,
		BaseFolder:         f.BaseFolder,
		Folder:             f.Folder,
		Title:              f.Title,
		AppendDate:         f.AppendDate,
		UploadThumb:        f.UploadThumb,
		CreateWebpage:      f.CreateWebpage,
		TemplatePath:       f.TemplateLocation,
		Timeout:            timeout,
		InsecureSkipVerify: f.InsecureSkipVerify,
	}
}

// RemoteDir is the upload folder for captures taken at now.
func (t Target) RemoteDir(now time.Time) string {
	var dest string
	if base := strings.Trim(t.BaseFolder, "/"); base != "" {
		dest = "/" + base + "/"
	}
	dest += path.Join(strings.Trim(t.Folder, "/"), Slugify(t.Title))
	if t.AppendDate {
		dest += "/" + now.Format("2006/01/02")
	}
	return dest
}

func (t Target) addr() string {
	port := t.Port
	if port <= 0 {
		port = 21
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Upload names one finished capture on local disk.
type Upload struct {
	Session   string
	Name      string
	Final     string
	Thumbnail string
}

type Publisher struct {
	target Target
	flags  SessionFlags
	dial   Dialer
	now    func() time.Time
}

func NewPublisher(target Target, flags SessionFlags) *Publisher {
	if flags == nil {
		flags = NewMemoryFlags()
	}
	return &Publisher{
		target: target,
		flags:  flags,
		dial:   dialFTP,
		now:    time.Now,
	}
}

// WithDialer replaces the network dialer, mainly for tests.
func (p *Publisher) WithDialer(d Dialer) {
	if p != nil && d != nil {
		p.dial = d
	}
}

// Publish uploads the capture, its thumbnail when configured, and the event
// page if neither the session nor the server already has it. Connection,
// login, navigation and primary upload failures are returned; the
// connection is always closed.
func (p *Publisher) Publish(ctx context.Context, up Upload, warn Warnings) error {
	t := p.target
	tlsConf := &tls.Config{ServerName: t.Host, InsecureSkipVerify: t.InsecureSkipVerify} //nolint:gosec
	conn, err := p.dial(ctx, t.addr(), t.Timeout, tlsConf)
	if err != nil {
		return fmt.Errorf("connect to ftp server %s: %w", t.Host, err)
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login(t.Username, t.Password); err != nil {
		return fmt.Errorf("ftp login as %s: %w", t.Username, err)
	}

	dir := t.RemoteDir(p.now())
	if err := changeDirTree(conn, dir); err != nil {
		return fmt.Errorf("ftp navigate to %s: %w", dir, err)
	}

	if err := storFile(conn, up.Name, up.Final); err != nil {
		return fmt.Errorf("upload %s: %w", up.Name, err)
	}

	if t.UploadThumb {
		if err := storFile(conn, thumbnailPrefix+up.Name, up.Thumbnail); err != nil {
			warn.Addf("Unable to upload thumbnail for %s: %v", up.Name, err)
		}
	}

	if t.CreateWebpage {
		return p.publishWebpage(ctx, conn, up.Session, warn)
	}
	return nil
}

func (p *Publisher) publishWebpage(ctx context.Context, conn Conn, session string, warn Warnings) error {
	t := p.target
	done, err := p.flags.Published(ctx, session, t.Title)
	if err != nil {
		warn.Addf("Unable to read web page flag: %v", err)
	}
	if done {
		return nil
	}

	if t.AppendDate {
		if err := changeDirTree(conn, "../../.."); err != nil {
			return fmt.Errorf("ftp return to event folder: %w", err)
		}
	}

	if size, err := conn.FileSize(webpageName); err != nil || size < 0 {
		tmpl, err := os.ReadFile(t.TemplatePath)
		if err != nil {
			return fmt.Errorf("read web page template: %w", err)
		}
		page := strings.ReplaceAll(string(tmpl), "{title}", t.Title)
		if err := conn.Stor(webpageName, strings.NewReader(page)); err != nil {
			return fmt.Errorf("upload web page: %w", err)
		}
	}

	if err := p.flags.MarkPublished(ctx, session, t.Title); err != nil {
		warn.Addf("Unable to store web page flag: %v", err)
	}
	return nil
}

// changeDirTree walks dir one segment at a time, creating segments that do
// not exist yet. An absolute dir starts from the server root.
func changeDirTree(conn Conn, dir string) error {
	if strings.HasPrefix(dir, "/") {
		if err := conn.ChangeDir("/"); err != nil {
			return err
		}
	}
	for _, part := range strings.Split(dir, "/") {
		if part == "" || part == "." {
			continue
		}
		if err := conn.ChangeDir(part); err == nil {
			continue
		}
		if part == ".." {
			return errors.New("cannot leave the server root")
		}
		if err := conn.MakeDir(part); err != nil {
			return fmt.Errorf("create %s: %w", part, err)
		}
		if err := conn.ChangeDir(part); err != nil {
			return fmt.Errorf("enter %s: %w", part, err)
		}
	}
	return nil
}

func storFile(conn Conn, remote, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	return conn.Stor(remote, f)
}

func dialFTP(ctx context.Context, addr string, timeout time.Duration, tlsConf *tls.Config) (Conn, error) {
	dial := func(network, address string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, timeout: timeout}, nil
	}
	return ftp.Dial(addr,
		ftp.DialWithDialFunc(dial),
		ftp.DialWithExplicitTLS(tlsConf),
	)
}

// deadlineConn bounds every read and write on the control and data
// connections, including the TLS layer wrapped around them.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
