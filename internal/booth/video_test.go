package booth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/domain"
	"github.com/dunamismax/boothflow/internal/transcode"
)

func writeVideo(t *testing.T, h *harness, name string, frames int) {
	t.Helper()

	if err := os.WriteFile(h.temp(name), []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	for i := 1; i <= frames; i++ {
		writeJPEG(t, h.temp(fmt.Sprintf("%s-%02d.jpg", name, i)), 96, 64)
	}
}

func TestProcessVideo_CollageReplacesFrames(t *testing.T) {
	b := testBooth(t)
	b.Video.Collage = true
	b.Video.CollageKeepImages = false
	h := newHarness(t, b)
	writeVideo(t, h, "vid.mp4", 4)

	manifest, err := h.service.ProcessVideo(context.Background(), domain.VideoRequest{File: "vid.mp4"})
	if err != nil {
		t.Fatalf("process video: %v", err)
	}
	want := []string{"vid.mp4", "vid.mp4-collage.jpg"}
	if manifest.File != "vid.mp4" || !slices.Equal(manifest.Images, want) {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	for i := 1; i <= 4; i++ {
		name := fmt.Sprintf("vid.mp4-%02d.jpg", i)
		if fileExists(h.temp(name)) || fileExists(h.image(name)) {
			t.Fatalf("expected frame %s to be deleted", name)
		}
	}
	if !fileExists(h.thumb("vid.mp4-collage.jpg")) {
		t.Fatal("expected collage thumbnail")
	}
	if fileExists(h.temp("vid.mp4")) || fileExists(h.temp("vid.mp4-collage.jpg")) {
		t.Fatal("expected temp files to be removed")
	}
	if got := h.recorded(t); !slices.Equal(got, []string{"vid.mp4-collage.jpg"}) {
		t.Fatalf("expected collage in ledger, got %v", got)
	}
	args := h.tools.ffmpegArgs()
	if !strings.Contains(args, "-vcodec libx264 -pix_fmt yuv420p") || strings.Contains(args, "-filter_complex") {
		t.Fatalf("unexpected ffmpeg args %q", args)
	}
}

func TestProcessVideo_KeepsFramesWhenConfigured(t *testing.T) {
	b := testBooth(t)
	b.Video.Collage = true
	b.Video.CollageKeepImages = true
	h := newHarness(t, b)
	writeVideo(t, h, "vid.mp4", 4)

	manifest, err := h.service.ProcessVideo(context.Background(), domain.VideoRequest{File: "vid.mp4"})
	if err != nil {
		t.Fatalf("process video: %v", err)
	}
	if len(manifest.Images) != 6 {
		t.Fatalf("expected video, collage and four frames, got %v", manifest.Images)
	}
	if !fileExists(h.image("vid.mp4-03.jpg")) || !fileExists(h.thumb("vid.mp4-03.jpg")) {
		t.Fatal("expected kept frame with thumbnail")
	}
}

func TestProcessVideo_NoCollageForOtherFrameCounts(t *testing.T) {
	b := testBooth(t)
	b.Video.Collage = true
	h := newHarness(t, b)
	writeVideo(t, h, "vid.mp4", 3)

	manifest, err := h.service.ProcessVideo(context.Background(), domain.VideoRequest{File: "vid.mp4"})
	if err != nil {
		t.Fatalf("process video: %v", err)
	}
	if !slices.Equal(manifest.Images, []string{"vid.mp4"}) {
		t.Fatalf("expected video only, got %v", manifest.Images)
	}
}

func TestProcessVideo_BoomerangAndGIF(t *testing.T) {
	b := testBooth(t)
	b.Video.Effects = config.VideoEffectBoomerang
	b.Video.GIF = true
	h := newHarness(t, b)
	h.tools.probe = "90"
	writeVideo(t, h, "vid.mp4", 0)

	manifest, err := h.service.ProcessVideo(context.Background(), domain.VideoRequest{File: "vid.mp4"})
	if err != nil {
		t.Fatalf("process video: %v", err)
	}
	if manifest.File != "vid.gif" || !slices.Equal(manifest.Images, []string{"vid.gif"}) {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	args := h.tools.ffmpegArgs()
	if !strings.Contains(args, "end_frame=89") || !strings.Contains(args, transcode.GIFFragment) {
		t.Fatalf("expected boomerang and gif graph, got %q", args)
	}
	if !strings.Contains(args, "-loop 0") {
		t.Fatalf("expected looping gif, got %q", args)
	}
}

func TestProcessVideo_UnusableProbeSkipsBoomerang(t *testing.T) {
	b := testBooth(t)
	b.Video.Effects = config.VideoEffectBoomerang
	h := newHarness(t, b)
	h.tools.probe = "N/A"
	writeVideo(t, h, "vid.mp4", 0)

	if _, err := h.service.ProcessVideo(context.Background(), domain.VideoRequest{File: "vid.mp4"}); err != nil {
		t.Fatalf("process video: %v", err)
	}
	if args := h.tools.ffmpegArgs(); strings.Contains(args, "-filter_complex") {
		t.Fatalf("expected no filter graph, got %q", args)
	}
	if !strings.Contains(h.logs.String(), "Skipping boomerang effect") {
		t.Fatalf("expected warning in log, got %q", h.logs.String())
	}
}

func TestProcessVideo_TranscodeFailureCarriesDiagnostics(t *testing.T) {
	b := testBooth(t)
	h := newHarness(t, b)
	h.tools.exitCode = 1
	writeVideo(t, h, "vid.mp4", 0)

	_, err := h.service.ProcessVideo(context.Background(), domain.VideoRequest{File: "vid.mp4"})
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindFatal {
		t.Fatalf("expected fatal error, got %v", err)
	}
	body := be.Body()
	if body["returnValue"] != 1 || !strings.HasPrefix(body["cmd"].(string), "ffmpeg -i ") {
		t.Fatalf("unexpected diagnostics %v", body)
	}
	if !strings.Contains(body["output"].(string), "libx264") {
		t.Fatalf("expected captured output, got %v", body["output"])
	}
	if fileExists(h.temp("vid.mp4")) {
		t.Fatal("expected temp video to be removed before reporting")
	}
}

func TestProcessVideo_CollageOnlyWithoutCollageIsFatal(t *testing.T) {
	b := testBooth(t)
	b.Video.CollageOnly = true
	h := newHarness(t, b)
	writeVideo(t, h, "vid.mp4", 2)

	_, err := h.service.ProcessVideo(context.Background(), domain.VideoRequest{File: "vid.mp4"})
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindFatal {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if len(h.tools.calls) != 0 {
		t.Fatal("expected ffmpeg not to run")
	}
}

func TestProcessVideo_CollageOnlyReturnsCollage(t *testing.T) {
	b := testBooth(t)
	b.Video.Collage = true
	b.Video.CollageOnly = true
	h := newHarness(t, b)
	writeVideo(t, h, "vid.mp4", 4)

	manifest, err := h.service.ProcessVideo(context.Background(), domain.VideoRequest{File: "vid.mp4"})
	if err != nil {
		t.Fatalf("process video: %v", err)
	}
	if manifest.File != "vid.mp4-collage.jpg" || !slices.Equal(manifest.Images, []string{"vid.mp4-collage.jpg"}) {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if fileExists(h.temp("vid.mp4")) {
		t.Fatal("expected temp video to be removed")
	}
}

func TestProcessVideo_MissingSourceIsValidation(t *testing.T) {
	b := testBooth(t)
	h := newHarness(t, b)

	_, err := h.service.ProcessVideo(context.Background(), domain.VideoRequest{File: "nothing.mp4"})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
