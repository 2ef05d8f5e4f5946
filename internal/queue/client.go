package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

// EnqueueCapture queues a capture job. The job id doubles as the task id so
// a job is never queued twice.
func (c *Client) EnqueueCapture(ctx context.Context, kind string, payload CapturePayload) (*asynq.TaskInfo, error) {
	task, err := NewCaptureTask(kind, payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(2),
		asynq.Timeout(5*time.Minute),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
