package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteLedgerSchema = `
CREATE TABLE IF NOT EXISTS content (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);
`
	postgresLedgerSchema = `
CREATE TABLE IF NOT EXISTS content (
	seq BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);
`
)

// SQLLedger stores the ledger in a SQL table. Insert order is kept in seq.
type SQLLedger struct {
	db     *sql.DB
	insert string
	stamp  func(time.Time) any
}

// NewSQLiteLedger opens (or creates) a SQLite ledger at path.
func NewSQLiteLedger(ctx context.Context, path string) (*SQLLedger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	l := &SQLLedger{
		db:     db,
		insert: `INSERT OR IGNORE INTO content (name, created_at) VALUES (?, ?)`,
		stamp:  func(t time.Time) any { return t.Format(time.RFC3339Nano) },
	}
	if err := l.ensureSchema(ctx, sqliteLedgerSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewPostgresLedger connects to the ledger table in Postgres.
func NewPostgresLedger(ctx context.Context, dsn string) (*SQLLedger, error) {
	db, err := openPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}

	l := &SQLLedger{
		db:     db,
		insert: `INSERT INTO content (name, created_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		stamp:  func(t time.Time) any { return t },
	}
	if err := l.ensureSchema(ctx, postgresLedgerSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLLedger) ensureSchema(ctx context.Context, schema string) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure content schema: %w", err)
	}
	return nil
}

func (l *SQLLedger) Record(ctx context.Context, name string) error {
	if name == "" {
		return errEmptyName
	}
	if _, err := l.db.ExecContext(ctx, l.insert, name, l.stamp(time.Now().UTC())); err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}
	return nil
}

func (l *SQLLedger) List(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT name FROM content ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (l *SQLLedger) Close() error {
	return l.db.Close()
}
