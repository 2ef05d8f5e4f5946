package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/dunamismax/boothflow/internal/domain"
)

const jobSchemaSQL = `
CREATE TABLE IF NOT EXISTS capture_jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	file TEXT NOT NULL,
	style TEXT NOT NULL DEFAULT '',
	filter TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	images JSONB NOT NULL DEFAULT '[]',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

type PostgresJobStore struct {
	db *sql.DB
}

func NewPostgresJobStore(ctx context.Context, dsn string) (*PostgresJobStore, error) {
	db, err := openPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}

	store := &PostgresJobStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (s *PostgresJobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, jobSchemaSQL); err != nil {
		return fmt.Errorf("ensure capture_jobs schema: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Close() error {
	return s.db.Close()
}

func (s *PostgresJobStore) Create(ctx context.Context, job domain.Job) error {
	imagesJSON, err := marshalImages(job.Images)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO capture_jobs (id, kind, status, file, style, filter, session_id, images, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID,
		job.Kind,
		job.Status,
		job.File,
		string(job.Style),
		string(job.Filter),
		job.SessionID,
		imagesJSON,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id string) (domain.Job, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, kind, status, file, style, filter, session_id, images, error, created_at, updated_at
		 FROM capture_jobs
		 WHERE id = $1`,
		id,
	)

	var (
		job        domain.Job
		style      string
		filter     string
		imagesJSON []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.Status,
		&job.File,
		&style,
		&filter,
		&job.SessionID,
		&imagesJSON,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, fmt.Errorf("query job: %w", err)
	}
	job.Style = domain.Style(style)
	job.Filter = domain.Filter(filter)

	if err := json.Unmarshal(imagesJSON, &job.Images); err != nil {
		return domain.Job{}, false, fmt.Errorf("unmarshal job images: %w", err)
	}

	return job, true, nil
}

func (s *PostgresJobStore) UpdateStatus(ctx context.Context, id, status string) (domain.Job, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE capture_jobs
		 SET status = $1, updated_at = $2
		 WHERE id = $3`,
		status,
		now,
		id,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("update job status: %w", err)
	}
	return s.reload(ctx, id, res)
}

func (s *PostgresJobStore) Finish(ctx context.Context, id string, images []string, errMsg string) (domain.Job, error) {
	imagesJSON, err := marshalImages(images)
	if err != nil {
		return domain.Job{}, err
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE capture_jobs
		 SET status = $1, images = $2, error = $3, updated_at = $4
		 WHERE id = $5`,
		finishedStatus(errMsg),
		imagesJSON,
		errMsg,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("finish job: %w", err)
	}
	return s.reload(ctx, id, res)
}

func (s *PostgresJobStore) reload(ctx context.Context, id string, res sql.Result) (domain.Job, error) {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Job{}, ErrJobNotFound
	}

	job, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}

	return job, nil
}

func marshalImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("marshal job images: %w", err)
	}
	return data, nil
}
