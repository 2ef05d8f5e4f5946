package booth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/domain"
	"github.com/dunamismax/boothflow/internal/pipeline"
	"github.com/dunamismax/boothflow/internal/transcode"
)

// videoCollageFrames is the number of extracted frames that makes a collage.
const videoCollageFrames = 4

// ProcessVideo finishes a video capture: it builds the optional frame
// collage, keeps or drops the extracted frames and runs the configured
// ffmpeg effects. Failures are returned as *Error.
func (s *Service) ProcessVideo(ctx context.Context, req domain.VideoRequest) (domain.Manifest, error) {
	if err := req.Validate(); err != nil {
		s.metrics.requestsTotal.WithLabelValues(domain.JobKindVideo, string(KindValidation)).Inc()
		return domain.Manifest{}, validationError(err)
	}
	source := filepath.Join(s.booth.Folders.Temp, req.File)
	if _, err := os.Stat(source); err != nil {
		s.metrics.requestsTotal.WithLabelValues(domain.JobKindVideo, string(KindValidation)).Inc()
		return domain.Manifest{}, &Error{Kind: KindValidation, Message: "Image doesn't exist", Err: err}
	}

	ctx, span := s.tracer.Start(ctx, "booth.process_video", trace.WithAttributes(
		attribute.String("capture.file", req.File),
		attribute.String("video.effects", s.booth.Video.Effects),
		attribute.Bool("video.gif", s.booth.Video.GIF),
	))
	defer span.End()

	startedAt := time.Now()
	warn := &pipeline.ErrorLog{}
	manifest, err := s.processVideo(ctx, req, source, warn)
	s.finish(span, domain.JobKindVideo, req.File, startedAt, warn, err)
	if err != nil {
		return domain.Manifest{}, err
	}
	s.metrics.artifactsTotal.WithLabelValues(domain.JobKindVideo).Add(float64(len(manifest.Images)))
	return manifest, nil
}

func (s *Service) processVideo(ctx context.Context, req domain.VideoRequest, source string, warn *pipeline.ErrorLog) (domain.Manifest, error) {
	folders := s.booth.Folders
	frames := slices.Collect(pipeline.VideoFrames(folders.Temp, req.File))

	var (
		assets      []pipeline.Asset
		collageName string
	)
	if s.booth.Video.Collage && len(frames) == videoCollageFrames {
		collageName = req.File + "-collage.jpg"
		if err := s.assembleVideoCollage(ctx, frames, filepath.Join(folders.Temp, collageName), warn); err != nil {
			return domain.Manifest{}, err
		}
		assets = append(assets, pipeline.NewAsset(folders, collageName, pipeline.RoleVideoStill))
	}

	if s.booth.Video.CollageKeepImages {
		for _, frame := range frames {
			assets = append(assets, pipeline.NewAsset(folders, filepath.Base(frame), pipeline.RoleVideoStill))
		}
	} else {
		for _, frame := range frames {
			if err := os.Remove(frame); err != nil {
				warn.Addf("Error while deleting %s: %v", filepath.Base(frame), err)
			}
		}
	}

	if len(assets) > 0 {
		res, err := s.executor.Run(ctx, pipeline.Job{Style: domain.StylePhoto, Assets: assets}, warn)
		if err != nil {
			return domain.Manifest{}, fatalError("", err)
		}
		for _, asset := range res.Finished {
			if err := s.deliverStill(ctx, asset, warn); err != nil {
				return domain.Manifest{}, err
			}
		}
	}

	output := filepath.Join(folders.Images, req.File)
	var file string
	if s.booth.Video.CollageOnly {
		if collageName == "" || !exists(filepath.Join(folders.Images, collageName)) {
			return domain.Manifest{}, &Error{
				Kind:    KindFatal,
				Message: "Configured to save only Collage but collage file does not exist: " + collageName,
			}
		}
		s.removeSource(source, warn)
		file = collageName
	} else {
		var err error
		output, err = s.transcode(ctx, source, output, warn)
		if err != nil {
			return domain.Manifest{}, err
		}
		file = filepath.Base(output)
	}

	images, err := listOutputs(output)
	if err != nil {
		return domain.Manifest{}, fatalError("list outputs", err)
	}
	return domain.Manifest{File: file, Images: images}, nil
}

func (s *Service) assembleVideoCollage(ctx context.Context, frames []string, dest string, warn *pipeline.ErrorLog) error {
	spec := pipeline.CollageSpecFromConfig(s.booth).With(pipeline.CollageOverride{
		Layout:             pipeline.VideoCollageLayout,
		FrameRule:          pipeline.FrameOff,
		DisablePlaceholder: true,
	})
	filter, err := domain.ParseFilter(s.booth.Filters.Defaults)
	if err != nil {
		warn.Addf("Ignoring default filter: %v", err)
		filter = ""
	}
	if err := s.assembler.Assemble(ctx, frames, spec, filter, dest); err != nil {
		return fatalError("Could not create collage", err)
	}
	return nil
}

// deliverStill records a video frame or collage in the gallery and mirrors
// it. Video stills never go to the FTP server.
func (s *Service) deliverStill(ctx context.Context, asset pipeline.Asset, warn *pipeline.ErrorLog) error {
	if s.booth.Database.Enabled && s.ledger != nil {
		if err := s.ledger.Record(ctx, asset.Name); err != nil {
			return fatalError("Failed to record image", err)
		}
	}
	s.mirrorAsset(ctx, asset, warn)
	return nil
}

// transcode runs ffmpeg with the configured effects and returns the path it
// wrote. The temp source is cleaned up before a failure is reported.
func (s *Service) transcode(ctx context.Context, source, output string, warn *pipeline.ErrorLog) (string, error) {
	var fragments []string
	if strings.EqualFold(s.booth.Video.Effects, config.VideoEffectBoomerang) {
		fragment, err := s.gateway.Boomerang(ctx, source)
		if err != nil {
			warn.Addf("Skipping boomerang effect: %v", err)
		} else {
			fragments = append(fragments, fragment)
		}
	}

	args := transcode.DefaultVideoArgs
	if s.booth.Video.GIF {
		fragments = append(fragments, transcode.GIFFragment)
		args = transcode.GIFArgs
		output = transcode.GIFOutput(output)
	}

	res, err := s.gateway.Transcode(ctx, transcode.Spec{
		Input:     source,
		Fragments: fragments,
		ExtraArgs: args,
		Output:    output,
	})
	s.removeSource(source, warn)
	if err != nil {
		var exitErr *transcode.ExitError
		if errors.As(err, &exitErr) {
			return "", &Error{
				Kind:    KindFatal,
				Message: "Take picture command returned an error code",
				Diagnostics: map[string]any{
					"cmd":         exitErr.Cmd,
					"returnValue": exitErr.Code,
					"output":      exitErr.Output,
				},
			}
		}
		return "", fatalError("Take picture command failed", err)
	}
	s.logger.Debug("video transcoded", "cmd", res.Cmd)

	mode, err := s.booth.Picture.FileMode()
	if err == nil {
		err = os.Chmod(output, mode)
	}
	if err != nil {
		warn.Addf("Failed to change permissions of %s: %v", filepath.Base(output), err)
	}
	return output, nil
}

func (s *Service) removeSource(source string, warn *pipeline.ErrorLog) {
	if s.booth.Picture.KeepOriginal {
		return
	}
	if err := os.Remove(source); err != nil {
		warn.Addf("Failed to remove temporary video %s: %v", filepath.Base(source), err)
	}
}

// listOutputs names every file in the folder of output whose name starts with
// the name of output, in lexical order.
func listOutputs(output string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Dir(output))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Dir(output), err)
	}
	prefix := filepath.Base(output)
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
