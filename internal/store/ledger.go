package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dunamismax/boothflow/internal/config"
)

// ContentStore is the gallery ledger: the list of published image names.
// Recording a name twice is a no-op.
type ContentStore interface {
	Record(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// OpenLedger opens the backend named in the settings. Postgres uses dsn; the
// other backends use the configured path.
func OpenLedger(ctx context.Context, cfg config.Ledger, dsn string) (ContentStore, error) {
	switch cfg.Backend {
	case config.LedgerFile, "":
		return NewFileLedger(cfg.Path)
	case config.LedgerSQLite:
		return NewSQLiteLedger(ctx, cfg.Path)
	case config.LedgerPostgres:
		return NewPostgresLedger(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.Backend)
	}
}

var errEmptyName = errors.New("content name is required")

type MemoryLedger struct {
	mu    sync.Mutex
	names []string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Record(_ context.Context, name string) error {
	if name == "" {
		return errEmptyName
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !slices.Contains(l.names, name) {
		l.names = append(l.names, name)
	}
	return nil
}

func (l *MemoryLedger) List(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.names), nil
}

func (l *MemoryLedger) Close() error { return nil }
