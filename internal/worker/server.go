// Package worker consumes queued captures and runs them through the booth
// service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/boothflow/internal/booth"
	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/domain"
	"github.com/dunamismax/boothflow/internal/queue"
	"github.com/dunamismax/boothflow/internal/store"
	"github.com/dunamismax/boothflow/internal/webhook"
)

// Processor is the part of the booth service the worker drives.
type Processor interface {
	Process(ctx context.Context, req domain.CaptureRequest) (domain.Manifest, error)
	ProcessVideo(ctx context.Context, req domain.VideoRequest) (domain.Manifest, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	processor     Processor
	webhookClient webhookSender
	jobStore      store.JobStore
	metrics       *metrics
	tracer        trace.Tracer
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	registry *prometheus.Registry,
	processor Processor,
	webhookClient *webhook.Client,
	jobStore store.JobStore,
) (*Server, error) {
	if processor == nil {
		return nil, fmt.Errorf("booth processor is required")
	}

	s := newServer(logger, workerCfg, registry, processor, jobStore)
	if webhookClient != nil {
		s.webhookClient = webhookClient
	}
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: workerCfg.Concurrency,
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			LogLevel: asynq.InfoLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "err", err)
			}),
		},
	)
	return s, nil
}

func newServer(logger *log.Logger, workerCfg config.WorkerConfig, registry *prometheus.Registry, processor Processor, jobStore store.JobStore) *Server {
	return &Server{
		logger:    logger,
		sem:       make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		processor: processor,
		jobStore:  jobStore,
		metrics:   newMetrics(registry),
		tracer:    otel.Tracer("boothflow/worker"),
	}
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeProcessCapture, s.handleCapture)
	mux.HandleFunc(queue.TypeProcessVideo, s.handleVideo)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleCapture(ctx context.Context, task *asynq.Task) error {
	return s.handle(ctx, task, domain.JobKindPhoto)
}

func (s *Server) handleVideo(ctx context.Context, task *asynq.Task) error {
	return s.handle(ctx, task, domain.JobKindVideo)
}

func (s *Server) handle(ctx context.Context, task *asynq.Task, kind string) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseCapturePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.process_capture", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.kind", kind),
		attribute.String("capture.file", payload.File),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(kind, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(kind, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Info("working", "job_id", payload.JobID, "kind", kind, "file", payload.File)
	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing)

	var manifest domain.Manifest
	if kind == domain.JobKindVideo {
		manifest, err = s.processor.ProcessVideo(ctx, payload.VideoRequest())
	} else {
		manifest, err = s.processor.Process(ctx, payload.CaptureRequest())
	}

	note := webhook.Notification{
		JobID:       payload.JobID,
		Kind:        kind,
		File:        payload.File,
		RequestedAt: payload.RequestedAt,
		FinishedAt:  time.Now().UTC(),
	}

	if err != nil {
		s.finishJob(ctx, payload.JobID, nil, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, "capture failed")

		note.Status = domain.JobStatusFailed
		note.Error = map[string]any{"error": err.Error()}
		var be *booth.Error
		if errors.As(err, &be) {
			note.Error = be.Body()
		}
		_ = s.dispatchWebhook(ctx, payload, webhook.EventCaptureFailed, note)

		// Booth errors are final; the temp sources are already consumed.
		if be != nil {
			return fmt.Errorf("process capture: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("process capture: %w", err)
	}

	s.logger.Info("processed", "job_id", payload.JobID, "file", manifest.File, "images", len(manifest.Images))
	s.finishJob(ctx, payload.JobID, manifest.Images, "")
	s.metrics.imagesTotal.Add(float64(len(manifest.Images)))

	note.Status = domain.JobStatusSucceeded
	note.File = manifest.File
	note.Images = manifest.Images
	if err := s.dispatchWebhook(ctx, payload, webhook.EventCaptureProcessed, note); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "processed")
	return nil
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Warn("job status update failed", "job_id", jobID, "status", status, "err", err)
	}
}

func (s *Server) finishJob(ctx context.Context, jobID string, images []string, errMsg string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.Finish(ctx, jobID, images, errMsg); err != nil {
		s.logger.Warn("job finish failed", "job_id", jobID, "err", err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.CapturePayload, event string, note webhook.Notification) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, note); err != nil {
		s.logger.Error("webhook delivery failed", "job_id", payload.JobID, "event", event, "err", err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}
