package store

import (
	"context"
	"fmt"

	"github.com/dunamismax/boothflow/internal/domain"
)

// JobStore tracks captures submitted through the asynchronous API.
type JobStore interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Job, error)
	// Finish stores the outcome of a job. An empty errMsg marks success.
	Finish(ctx context.Context, id string, images []string, errMsg string) (domain.Job, error)
}

func finishedStatus(errMsg string) string {
	if errMsg == "" {
		return domain.JobStatusSucceeded
	}
	return domain.JobStatusFailed
}

// OpenJobStore returns the job store named by backend and a close func.
func OpenJobStore(ctx context.Context, backend, dsn string) (JobStore, func() error, error) {
	switch backend {
	case "", "memory":
		return NewMemoryJobStore(), func() error { return nil }, nil
	case "postgres":
		s, err := NewPostgresJobStore(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported job store: %s", backend)
	}
}
