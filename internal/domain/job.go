package domain

import "time"

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	JobKindPhoto = "photo"
	JobKindVideo = "video"
)

// Job tracks a capture processed asynchronously through the queue.
type Job struct {
	ID        string
	Kind      string
	Status    string
	File      string
	Style     Style
	Filter    Filter
	SessionID string
	Images    []string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
