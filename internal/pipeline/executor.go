package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/domain"
	"github.com/dunamismax/boothflow/internal/effects"
)

// Asset is one image moving through the pipeline together with the places
// its outputs are written to.
type Asset struct {
	Name      string
	Source    string
	Role      Role
	Final     string
	Thumbnail string
	Chroma    string
	Modified  bool
}

// NewAsset places name in the standard folders: the source lives in the temp
// folder, the outputs in images, thumbs and keying.
func NewAsset(f config.Folders, name string, role Role) Asset {
	return Asset{
		Name:      name,
		Source:    filepath.Join(f.Temp, name),
		Role:      role,
		Final:     filepath.Join(f.Images, name),
		Thumbnail: filepath.Join(f.Thumbs, name),
		Chroma:    filepath.Join(f.Keying, name),
	}
}

type Job struct {
	Style  domain.Style
	Filter domain.Filter
	Assets []Asset
}

type Result struct {
	Finished []Asset
}

// MetadataCopier copies EXIF data from the original capture onto a re-encoded image.
type MetadataCopier interface {
	PreserveMetadata(ctx context.Context, src, dst string) error
}

type Executor struct {
	booth    config.Booth
	metadata MetadataCopier
	tracer   trace.Tracer
}

func NewExecutor(b config.Booth, metadata MetadataCopier) *Executor {
	return &Executor{
		booth:    b,
		metadata: metadata,
		tracer:   otel.Tracer("github.com/dunamismax/boothflow/internal/pipeline"),
	}
}

// Run processes every asset of the job. Assets are independent and run in
// parallel; the first fatal error cancels the rest and is returned.
// Warnings are appended to warn.
func (e *Executor) Run(ctx context.Context, job Job, warn *ErrorLog) (Result, error) {
	if len(job.Assets) == 0 {
		return Result{}, errors.New("no assets to process")
	}

	finished := make([]Asset, len(job.Assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, runtime.NumCPU()))
	for i, asset := range job.Assets {
		g.Go(func() error {
			done, err := e.process(gctx, job, asset, warn)
			if err != nil {
				return fmt.Errorf("%s: %w", asset.Name, err)
			}
			finished[i] = done
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{Finished: finished}, nil
}

func (e *Executor) process(ctx context.Context, job Job, asset Asset, warn *ErrorLog) (Asset, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.asset", trace.WithAttributes(
		attribute.String("asset.name", asset.Name),
		attribute.String("asset.role", asset.Role.String()),
		attribute.String("capture.style", string(job.Style)),
	))
	defer span.End()

	out, err := e.runAsset(ctx, job, asset, warn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (e *Executor) runAsset(ctx context.Context, job Job, asset Asset, warn *ErrorLog) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return asset, err
	}

	plan, err := BuildPlan(PlanInput{Style: job.Style, Filter: job.Filter, Role: asset.Role}, e.booth)
	if err != nil {
		return asset, fmt.Errorf("plan: %w", err)
	}

	img, err := effects.Load(asset.Source)
	if err != nil {
		return asset, err
	}

	for _, stage := range plan {
		switch stage.Name {
		case StageThumbnail:
			if err := writeScaled(img, stage, asset.Thumbnail); err != nil {
				warn.Addf("Failed to create thumbnail for %s: %v", asset.Name, err)
			}
		case StageChroma:
			if err := writeScaled(img, stage, asset.Chroma); err != nil {
				warn.Addf("Failed to create chroma image for %s: %v", asset.Name, err)
			}
		default:
			img, err = applyStage(img, stage)
			if err != nil {
				return asset, fmt.Errorf("%s stage: %w", stage.Name, err)
			}
			asset.Modified = true
		}
	}

	if err := e.persist(ctx, img, asset, warn); err != nil {
		return asset, err
	}

	mode, err := e.booth.Picture.FileMode()
	if err == nil {
		err = os.Chmod(asset.Final, mode)
	}
	if err != nil {
		warn.Addf("Failed to change permissions of %s: %v", asset.Name, err)
	}

	if !e.booth.Picture.KeepOriginal {
		if err := os.Remove(asset.Source); err != nil && !errors.Is(err, os.ErrNotExist) {
			warn.Addf("Failed to remove temporary photo %s: %v", asset.Name, err)
		}
	}
	return asset, nil
}

// persist writes the final image. Untouched captures are copied byte for byte
// unless the configured quality asks for a lossy re-encode.
func (e *Executor) persist(ctx context.Context, img image.Image, asset Asset, warn *ErrorLog) error {
	quality := e.booth.JPEGQuality.Image
	if !asset.Modified && !config.ReencodeQuality(quality) {
		if err := effects.CopyFile(asset.Source, asset.Final); err != nil {
			return fmt.Errorf("save image: %w", err)
		}
		return nil
	}

	if err := effects.SaveJPEG(img, asset.Final, quality); err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	if e.booth.Picture.PreserveExifData && e.metadata != nil {
		if err := e.metadata.PreserveMetadata(ctx, asset.Source, asset.Final); err != nil {
			warn.Addf("Failed to copy metadata to %s: %v", asset.Name, err)
		}
	}
	return nil
}

// Cleanup removes the final image and thumbnail of an asset that must not
// outlive the request.
func (e *Executor) Cleanup(asset Asset, warn *ErrorLog) {
	if err := os.Remove(asset.Final); err != nil && !errors.Is(err, os.ErrNotExist) {
		warn.Addf("Failed to remove photo %s: %v", asset.Name, err)
	}
	if err := os.Remove(asset.Thumbnail); err != nil && !errors.Is(err, os.ErrNotExist) {
		warn.Addf("Failed to remove thumbnail %s: %v", asset.Name, err)
	}
}

func applyStage(img image.Image, stage Stage) (image.Image, error) {
	switch stage.Name {
	case StageFilter:
		return effects.ApplyFilter(img, stage.Filter)
	case StageFlip:
		return effects.Flip(img, stage.Flip)
	case StageRotate:
		return effects.Rotate(img, stage.Degrees)
	case StagePolaroid:
		return effects.Polaroid(img, stage.Degrees)
	case StageFrame:
		return effects.ApplyFrame(img, stage.Frame)
	case StageText:
		return effects.ApplyText(img, stage.Text)
	default:
		return nil, fmt.Errorf("unknown stage %q", stage.Name)
	}
}

func writeScaled(img image.Image, stage Stage, path string) error {
	scaled, err := effects.Resize(img, stage.Size)
	if err != nil {
		return err
	}
	return effects.SaveJPEG(scaled, path, stage.Quality)
}
