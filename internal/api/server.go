// Package api exposes the booth pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/boothflow/internal/booth"
	"github.com/dunamismax/boothflow/internal/domain"
	"github.com/dunamismax/boothflow/internal/id"
	"github.com/dunamismax/boothflow/internal/queue"
	"github.com/dunamismax/boothflow/internal/store"
)

// Processor runs a capture synchronously.
type Processor interface {
	Process(ctx context.Context, req domain.CaptureRequest) (domain.Manifest, error)
	ProcessVideo(ctx context.Context, req domain.VideoRequest) (domain.Manifest, error)
}

type queueEnqueuer interface {
	EnqueueCapture(ctx context.Context, kind string, payload queue.CapturePayload) (*asynq.TaskInfo, error)
}

type Options struct {
	Logger    *log.Logger
	Processor Processor

	// Queue and JobStore enable the asynchronous /v1/jobs routes.
	Queue       queueEnqueuer
	JobStore    store.JobStore
	RateLimiter RateLimiter

	// VideoCost is what a video request takes from the rate limit bucket.
	VideoCost int
	Registry  *prometheus.Registry

	// WebhookURL is used for queued jobs that do not name their own.
	WebhookURL string
}

type Server struct {
	logger      *log.Logger
	processor   Processor
	queueClient queueEnqueuer
	jobStore    store.JobStore
	rateLimiter RateLimiter
	videoCost   int64
	webhookURL  string
	metrics     *metrics
	tracer      trace.Tracer
	router      chi.Router
}

func NewServer(opts Options) *Server {
	s := &Server{
		logger:      opts.Logger,
		processor:   opts.Processor,
		queueClient: opts.Queue,
		jobStore:    opts.JobStore,
		rateLimiter: opts.RateLimiter,
		videoCost:   int64(max(1, opts.VideoCost)),
		webhookURL:  opts.WebhookURL,
		metrics:     newMetrics(opts.Registry),
		tracer:      otel.Tracer("boothflow/api"),
		router:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(s.withTracing, s.metrics.withHTTPMetrics, s.withSession)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", s.metrics.metricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.With(s.withRateLimit(1)).Post("/applyEffects", s.handleApplyEffects)
		r.With(s.withRateLimit(s.videoCost)).Post("/applyVideoEffects", s.handleApplyVideoEffects)
	})

	r.Route("/v1/jobs", func(r chi.Router) {
		r.With(s.withRateLimit(1)).Post("/", s.handleCreateJob)
		r.Get("/{id}", s.handleGetJob)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type captureBody struct {
	File   string `json:"file"`
	Style  string `json:"style"`
	Filter string `json:"filter"`
}

func (s *Server) handleApplyEffects(w http.ResponseWriter, r *http.Request) {
	var body captureBody
	if err := decodeRequest(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	req, err := domain.NewCaptureRequest(body.File, body.Style, body.Filter)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	req.SessionID = sessionFrom(r.Context())

	manifest, err := s.processor.Process(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handleApplyVideoEffects(w http.ResponseWriter, r *http.Request) {
	var body captureBody
	if err := decodeRequest(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	req := domain.VideoRequest{File: strings.TrimSpace(body.File), SessionID: sessionFrom(r.Context())}
	manifest, err := s.processor.ProcessVideo(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

type createJobRequest struct {
	Kind       string `json:"kind"`
	File       string `json:"file"`
	Style      string `json:"style"`
	Filter     string `json:"filter"`
	WebhookURL string `json:"webhook_url"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.queueClient == nil || s.jobStore == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job queue is not configured"})
		return
	}

	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = domain.JobKindPhoto
	}

	now := time.Now().UTC()
	job := domain.Job{
		ID:        id.New(),
		Kind:      kind,
		Status:    domain.JobStatusQueued,
		SessionID: sessionFrom(r.Context()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch kind {
	case domain.JobKindPhoto:
		capture, err := domain.NewCaptureRequest(req.File, req.Style, req.Filter)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		job.File, job.Style, job.Filter = capture.File, capture.Style, capture.Filter
	case domain.JobKindVideo:
		video := domain.VideoRequest{File: strings.TrimSpace(req.File)}
		if err := video.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		job.File = video.File
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown job kind: %s", req.Kind)})
		return
	}

	if err := s.jobStore.Create(r.Context(), job); err != nil {
		s.logger.Error("create job failed", "job_id", job.ID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create job"})
		return
	}

	webhookURL := strings.TrimSpace(req.WebhookURL)
	if webhookURL == "" {
		webhookURL = s.webhookURL
	}
	payload := queue.CapturePayload{
		JobID:       job.ID,
		File:        job.File,
		Style:       job.Style,
		Filter:      job.Filter,
		SessionID:   job.SessionID,
		WebhookURL:  webhookURL,
		RequestedAt: now,
	}

	taskInfo, err := s.queueClient.EnqueueCapture(r.Context(), kind, payload)
	if err != nil {
		s.logger.Error("enqueue failed", "job_id", job.ID, "err", err)
		if _, ferr := s.jobStore.Finish(r.Context(), job.ID, nil, "enqueue failed"); ferr != nil {
			s.logger.Warn("job finish failed", "job_id", job.ID, "err", ferr)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"queue":      taskInfo.Queue,
		"task_id":    taskInfo.ID,
		"status_url": "/v1/jobs/" + job.ID,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.jobStore == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job queue is not configured"})
		return
	}

	jobID := chi.URLParam(r, "id")
	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Error("fetch job failed", "job_id", jobID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}

	resp := map[string]any{
		"job_id":     job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"file":       job.File,
		"images":     job.Images,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError renders the single terminal response for a failed request.
func writeError(w http.ResponseWriter, err error) {
	var be *booth.Error
	if errors.As(err, &be) {
		status := http.StatusInternalServerError
		if be.Kind == booth.KindValidation {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, be.Body())
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// decodeRequest accepts a JSON body or form values.
func decodeRequest(r *http.Request, into *captureBody) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return decodeJSON(r, into)
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return fmt.Errorf("invalid form body: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return fmt.Errorf("invalid form body: %w", err)
	}
	into.File = r.FormValue("file")
	into.Style = r.FormValue("style")
	into.Filter = r.FormValue("filter")
	return nil
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
