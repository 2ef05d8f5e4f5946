package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dunamismax/boothflow/internal/domain"
)

const (
	TypeProcessCapture = "capture:process"
	TypeProcessVideo   = "capture:video"
)

// CapturePayload carries one queued request. Style and Filter are empty for
// video captures.
type CapturePayload struct {
	JobID       string        `json:"job_id"`
	File        string        `json:"file"`
	Style       domain.Style  `json:"style,omitempty"`
	Filter      domain.Filter `json:"filter,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
	WebhookURL  string        `json:"webhook_url,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
}

// CaptureRequest rebuilds the still image request carried by the payload.
func (p CapturePayload) CaptureRequest() domain.CaptureRequest {
	return domain.CaptureRequest{File: p.File, Style: p.Style, Filter: p.Filter, SessionID: p.SessionID}
}

// VideoRequest rebuilds the video request carried by the payload.
func (p CapturePayload) VideoRequest() domain.VideoRequest {
	return domain.VideoRequest{File: p.File, SessionID: p.SessionID}
}

// NewCaptureTask builds the task for a job of the given kind.
func NewCaptureTask(kind string, payload CapturePayload) (*asynq.Task, error) {
	if payload.JobID == "" {
		return nil, errors.New("job id is required")
	}
	taskType := TypeProcessCapture
	if kind == domain.JobKindVideo {
		taskType = TypeProcessVideo
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal capture payload: %w", err)
	}
	return asynq.NewTask(taskType, body), nil
}

func ParseCapturePayload(task *asynq.Task) (CapturePayload, error) {
	var payload CapturePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CapturePayload{}, fmt.Errorf("unmarshal capture payload: %w", err)
	}
	return payload, nil
}
