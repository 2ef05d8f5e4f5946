// Package transcode wraps the external media tools: ffmpeg for video
// effects, ffprobe for frame counts and exiftool for metadata copies.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/boothflow/internal/config"
)

const (
	// GIFFragment turns the stream into a palette-optimised animated GIF.
	GIFFragment = "split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"

	minBoomerangFrames = 3
)

var (
	ErrFrameCount = errors.New("unusable frame count")

	// DefaultVideoArgs encode an H.264 stream playable in every browser.
	DefaultVideoArgs = []string{"-vcodec", "libx264", "-pix_fmt", "yuv420p"}
	// GIFArgs make the animation loop forever.
	GIFArgs = []string{"-loop", "0"}
)

// ExitError reports a tool that ran but exited non-zero.
type ExitError struct {
	Cmd    string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Cmd, e.Code)
}

// CommandRunner runs name with args and returns the combined output and exit
// code. A non-nil error means the command could not run at all.
type CommandRunner func(ctx context.Context, name string, args ...string) (output []byte, exitCode int, err error)

type Spec struct {
	Input     string
	Fragments []string
	ExtraArgs []string
	Output    string
}

type Result struct {
	Cmd      string
	ExitCode int
	Output   string
}

type Gateway struct {
	ffmpeg   string
	ffprobe  string
	exiftool string
	run      CommandRunner
	tracer   trace.Tracer
}

func NewGateway(cmds config.Commands) *Gateway {
	return &Gateway{
		ffmpeg:   defaultString(cmds.FFmpeg, "ffmpeg"),
		ffprobe:  defaultString(cmds.FFprobe, "ffprobe"),
		exiftool: cmds.Exiftool,
		run:      execRunner,
		tracer:   otel.Tracer("github.com/dunamismax/boothflow/internal/transcode"),
	}
}

// WithCommandRunner replaces the process runner, mainly for tests.
func (g *Gateway) WithCommandRunner(r CommandRunner) {
	if g != nil && r != nil {
		g.run = r
	}
}

// Transcode runs ffmpeg on spec.Input. Fragments are joined into a single
// -filter_complex graph.
func (g *Gateway) Transcode(ctx context.Context, spec Spec) (Result, error) {
	if strings.TrimSpace(spec.Input) == "" || strings.TrimSpace(spec.Output) == "" {
		return Result{}, errors.New("transcode requires input and output")
	}

	args := []string{"-i", spec.Input}
	if len(spec.Fragments) > 0 {
		args = append(args, "-filter_complex", strings.Join(spec.Fragments, ","))
	}
	args = append(args, spec.ExtraArgs...)
	args = append(args, spec.Output)

	ctx, span := g.tracer.Start(ctx, "transcode.ffmpeg", trace.WithAttributes(
		attribute.String("transcode.input", filepath.Base(spec.Input)),
		attribute.Int("transcode.fragments", len(spec.Fragments)),
	))
	defer span.End()

	res, err := g.exec(ctx, g.ffmpeg, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// CountFrames asks ffprobe for the number of video packets in path.
func (g *Gateway) CountFrames(ctx context.Context, path string) (int, error) {
	res, err := g.exec(ctx, g.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(res.Output))
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe printed %q", ErrFrameCount, strings.TrimSpace(res.Output))
	}
	return n, nil
}

// Boomerang probes path and returns the play-forward-then-reverse fragment.
func (g *Gateway) Boomerang(ctx context.Context, path string) (string, error) {
	n, err := g.CountFrames(ctx, path)
	if err != nil {
		return "", err
	}
	return BoomerangFragment(n)
}

// BoomerangFragment builds the reverse-and-concat graph for a clip of frames
// frames. The reversed part ends at the second to last frame so the turning
// point is not shown twice.
func BoomerangFragment(frames int) (string, error) {
	if frames < minBoomerangFrames {
		return "", fmt.Errorf("%w: %d frames", ErrFrameCount, frames)
	}
	end := frames - 1
	return fmt.Sprintf("[0]trim=start_frame=1:end_frame=%d,setpts=PTS-STARTPTS,reverse[r];[0][r]concat=n=2:v=1:a=0", end), nil
}

// GIFOutput swaps the extension of path for .gif.
func GIFOutput(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".gif"
}

// PreserveMetadata copies metadata from src onto dst using the configured
// exiftool template. The first %s receives src, the second dst.
func (g *Gateway) PreserveMetadata(ctx context.Context, src, dst string) error {
	fields := strings.Fields(g.exiftool)
	if len(fields) == 0 {
		return errors.New("exiftool command is not configured")
	}

	values := []string{src, dst}
	args := make([]string, 0, len(fields)-1)
	for _, f := range fields[1:] {
		if f == "%s" && len(values) > 0 {
			f, values = values[0], values[1:]
		}
		args = append(args, f)
	}

	_, err := g.exec(ctx, fields[0], args...)
	return err
}

func (g *Gateway) exec(ctx context.Context, name string, args ...string) (Result, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")
	out, code, err := g.run(ctx, name, args...)
	res := Result{Cmd: cmdline, ExitCode: code, Output: strings.TrimSpace(string(out))}
	if err != nil {
		return res, fmt.Errorf("run %s: %w", name, err)
	}
	if code != 0 {
		return res, &ExitError{Cmd: cmdline, Code: code, Output: res.Output}
	}
	return res, nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), nil
		}
		return out, -1, err
	}
	return out, 0, nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
