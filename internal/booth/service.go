// Package booth drives a capture request through the pipeline: planning,
// collage assembly, execution, the content ledger, delivery and cleanup. It
// is the only place that turns failures into the terminal response.
package booth

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/delivery"
	"github.com/dunamismax/boothflow/internal/domain"
	"github.com/dunamismax/boothflow/internal/logging"
	"github.com/dunamismax/boothflow/internal/pipeline"
	"github.com/dunamismax/boothflow/internal/transcode"
)

// Ledger records gallery entries.
type Ledger interface {
	Record(ctx context.Context, name string) error
}

// Publisher copies a finished capture off site.
type Publisher interface {
	Publish(ctx context.Context, up delivery.Upload, warn delivery.Warnings) error
}

// Mirror keeps a copy of finished captures in object storage.
type Mirror interface {
	MirrorCapture(ctx context.Context, name, final, thumbnail string) error
}

type Options struct {
	Ledger    Ledger
	Publisher Publisher
	Mirror    Mirror
	// Flags scope the event page upload when Publisher is built from the
	// FTP settings.
	Flags      delivery.SessionFlags
	Gateway    *transcode.Gateway
	Logger     *log.Logger
	Registerer prometheus.Registerer
}

type Service struct {
	booth     config.Booth
	executor  *pipeline.Executor
	assembler pipeline.Assembler
	gateway   *transcode.Gateway
	ledger    Ledger
	publisher Publisher
	mirror    Mirror
	logger    *log.Logger
	metrics   *metrics
	tracer    trace.Tracer
}

func NewService(b config.Booth, opts Options) *Service {
	gateway := opts.Gateway
	if gateway == nil {
		gateway = transcode.NewGateway(b.Commands)
	}
	publisher := opts.Publisher
	if publisher == nil && b.FTP.Enabled {
		publisher = delivery.NewPublisher(delivery.TargetFromConfig(b.FTP), opts.Flags)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Service{
		booth:     b,
		executor:  pipeline.NewExecutor(b, gateway),
		gateway:   gateway,
		ledger:    opts.Ledger,
		publisher: publisher,
		mirror:    opts.Mirror,
		logger:    logger,
		metrics:   newMetrics(opts.Registerer),
		tracer:    otel.Tracer("boothflow/booth"),
	}
}

// Process applies the configured effects to a captured still and returns the
// names of every image it produced. Failures are returned as *Error.
func (s *Service) Process(ctx context.Context, req domain.CaptureRequest) (domain.Manifest, error) {
	if err := req.Validate(); err != nil {
		s.logger.Error("invalid request", "file", req.File, "style", req.Style, "err", err)
		s.metrics.requestsTotal.WithLabelValues(domain.JobKindPhoto, string(KindValidation)).Inc()
		return domain.Manifest{}, validationError(err)
	}

	ctx, span := s.tracer.Start(ctx, "booth.process", trace.WithAttributes(
		attribute.String("capture.file", req.File),
		attribute.String("capture.style", string(req.Style)),
		attribute.String("capture.filter", string(req.Filter)),
	))
	defer span.End()

	startedAt := time.Now()
	warn := &pipeline.ErrorLog{}
	manifest, err := s.process(ctx, req, warn)
	s.finish(span, domain.JobKindPhoto, req.File, startedAt, warn, err)
	if err != nil {
		return domain.Manifest{}, err
	}
	s.metrics.artifactsTotal.WithLabelValues(domain.JobKindPhoto).Add(float64(len(manifest.Images)))
	s.logger.Debug("effects applied", "file", manifest.File, "images", manifest.Images)
	return manifest, nil
}

func (s *Service) process(ctx context.Context, req domain.CaptureRequest, warn *pipeline.ErrorLog) (domain.Manifest, error) {
	folders := s.booth.Folders
	assets := []pipeline.Asset{pipeline.NewAsset(folders, req.File, pipeline.RoleSingle)}

	if req.Style == domain.StyleCollage {
		members, err := s.assembleCollage(ctx, req)
		if err != nil {
			return domain.Manifest{}, err
		}
		assets[0].Role = pipeline.RoleCollageMerged
		assets = append(assets, s.collageMembers(members, warn)...)
	}

	transient := req.Style == domain.StyleChroma && !s.booth.Keying.ShowAll
	res, err := s.executor.Run(ctx, pipeline.Job{Style: req.Style, Filter: req.Filter, Assets: assets}, warn)
	if err != nil {
		if transient {
			for _, asset := range assets {
				s.executor.Cleanup(asset, warn)
			}
		}
		return domain.Manifest{}, fatalError("", err)
	}

	images := make([]string, 0, len(res.Finished))
	for _, asset := range res.Finished {
		images = append(images, asset.Name)
		if transient {
			s.executor.Cleanup(asset, warn)
			continue
		}
		if err := s.deliver(ctx, req.SessionID, asset, warn); err != nil {
			return domain.Manifest{}, err
		}
	}

	return domain.Manifest{File: req.File, Images: images}, nil
}

// assembleCollage merges the single shots into the temp file named by the
// request and returns the member paths in slot order.
func (s *Service) assembleCollage(ctx context.Context, req domain.CaptureRequest) ([]string, error) {
	spec := pipeline.CollageSpecFromConfig(s.booth)
	members, err := pipeline.CollageMembers(s.booth, req.File, spec.Layout)
	if err != nil {
		return nil, fatalError("Error creating collage image", err)
	}
	dest := filepath.Join(s.booth.Folders.Temp, req.File)
	if err := s.assembler.Assemble(ctx, members, spec, req.Filter, dest); err != nil {
		return nil, fatalError("Error creating collage image", err)
	}
	return members, nil
}

// collageMembers turns the kept single shots into assets. Shots that are not
// kept are removed along with the other temp files.
func (s *Service) collageMembers(members []string, warn *pipeline.ErrorLog) []pipeline.Asset {
	var assets []pipeline.Asset
	for _, path := range members {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if s.booth.Collage.KeepSingleImages {
			assets = append(assets, pipeline.NewAsset(s.booth.Folders, filepath.Base(path), pipeline.RoleCollageMember))
			continue
		}
		if !s.booth.Picture.KeepOriginal {
			if err := os.Remove(path); err != nil {
				warn.Addf("Failed to remove collage member %s: %v", filepath.Base(path), err)
			}
		}
	}
	return assets
}

// deliver records a finished asset and copies it off site. Ledger and FTP
// failures abort the request; the object storage mirror is best effort.
func (s *Service) deliver(ctx context.Context, session string, asset pipeline.Asset, warn *pipeline.ErrorLog) error {
	if s.booth.Database.Enabled && s.ledger != nil {
		if err := s.ledger.Record(ctx, asset.Name); err != nil {
			return fatalError("Failed to record image", err)
		}
	}

	if s.booth.FTP.Enabled && s.publisher != nil {
		up := delivery.Upload{
			Session:   session,
			Name:      asset.Name,
			Final:     asset.Final,
			Thumbnail: asset.Thumbnail,
		}
		if err := s.publisher.Publish(ctx, up, warn); err != nil {
			return fatalError("Unable to save file on FTP Server", err)
		}
	}

	s.mirrorAsset(ctx, asset, warn)
	return nil
}

func (s *Service) mirrorAsset(ctx context.Context, asset pipeline.Asset, warn *pipeline.ErrorLog) {
	if s.mirror == nil {
		return
	}
	thumb := asset.Thumbnail
	if _, err := os.Stat(thumb); errors.Is(err, fs.ErrNotExist) {
		thumb = ""
	}
	if err := s.mirror.MirrorCapture(ctx, asset.Name, asset.Final, thumb); err != nil {
		warn.Addf("Failed to mirror %s: %v", asset.Name, err)
	}
}

// finish emits the collected warnings exactly once and records the outcome.
func (s *Service) finish(span trace.Span, kind, file string, startedAt time.Time, warn *pipeline.ErrorLog, err error) {
	if n := warn.Len(); n > 0 {
		s.metrics.warningsTotal.Add(float64(n))
		logging.Event(s.logger, log.ErrorLevel, "Error", map[string]any{
			"file":     file,
			"warnings": warn.Entries(),
		})
	}

	outcome := "ok"
	if err != nil {
		outcome = string(KindFatal)
		s.logger.Error("request failed", "file", file, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "processed")
	}
	s.metrics.requestsTotal.WithLabelValues(kind, outcome).Inc()
	s.metrics.requestDuration.WithLabelValues(kind).Observe(time.Since(startedAt).Seconds())
}
