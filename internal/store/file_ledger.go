package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// FileLedger keeps the ledger as a JSON array on disk. A sibling lock file
// serialises writers across processes; mu does the same inside this one,
// since a flock.Flock is not a goroutine mutex.
type FileLedger struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

func NewFileLedger(path string) (*FileLedger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	return &FileLedger{path: path, lock: flock.New(path + ".lock")}, nil
}

func (l *FileLedger) Record(ctx context.Context, name string) error {
	if name == "" {
		return errEmptyName
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	names, err := l.read()
	if err != nil {
		return err
	}
	if slices.Contains(names, name) {
		return nil
	}
	return l.write(append(names, name))
}

func (l *FileLedger) List(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock ledger: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()
	return l.read()
}

func (l *FileLedger) Close() error {
	return l.lock.Close()
}

func (l *FileLedger) read() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", l.path, err)
	}
	return names, nil
}

func (l *FileLedger) write(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
