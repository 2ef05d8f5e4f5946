package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBoothValidates(t *testing.T) {
	if err := DefaultBooth().Validate(); err != nil {
		t.Fatalf("expected default settings to validate, got %v", err)
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	b := DefaultBooth()
	b.Picture.Flip = "sideways"
	b.Collage.TakeFrame = "sometimes"
	b.JPEGQuality.Thumb = 101
	if err := b.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadBoothFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booth.toml")
	data := []byte(`
[picture]
flip = "flip-both"
rotation = "90"

[keying]
enabled = true
show_all = false

[ftp]
enabled = true
baseURL = "ftp.example.com"
title = "Summer Party"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	b := DefaultBooth()
	if err := LoadBoothFile(path, &b); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if b.Picture.Flip != FlipBoth {
		t.Fatalf("expected flip-both, got %q", b.Picture.Flip)
	}
	if deg, _ := b.Picture.RotationDegrees(); deg != 90 {
		t.Fatalf("expected rotation 90, got %d", deg)
	}
	if !b.Keying.Enabled {
		t.Fatal("expected keying enabled")
	}
	if b.Picture.ThumbSize != "540px" {
		t.Fatalf("expected default thumb size to survive, got %q", b.Picture.ThumbSize)
	}
	if b.FTP.Port != 21 {
		t.Fatalf("expected default ftp port 21, got %d", b.FTP.Port)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("expected overlay to validate, got %v", err)
	}
}

func TestPixelSize(t *testing.T) {
	if n, err := PixelSize("540px"); err != nil || n != 540 {
		t.Fatalf("expected 540, got %d err=%v", n, err)
	}
	if _, err := PixelSize("px"); err == nil {
		t.Fatal("expected error for empty size")
	}
}

func TestFileMode(t *testing.T) {
	mode, err := Picture{Permissions: "0640"}.FileMode()
	if err != nil {
		t.Fatalf("file mode: %v", err)
	}
	if mode != 0o640 {
		t.Fatalf("expected 0640, got %o", mode)
	}
}

func TestReencodeQuality(t *testing.T) {
	cases := map[int]bool{-1: false, 0: true, 85: true, 99: true, 100: false}
	for q, want := range cases {
		if got := ReencodeQuality(q); got != want {
			t.Fatalf("quality %d: expected %v, got %v", q, want, got)
		}
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Setenv("BOOTHFLOW_DATA_DIR", root)
	t.Setenv("BOOTHFLOW_JOB_STORE", "postgres")
	t.Setenv("RATE_LIMIT_VIDEO_COST", "6")
	t.Setenv("RATE_LIMIT_ENABLED", "not-a-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Booth.Folders != FoldersUnder(root) {
		t.Fatalf("expected folders under %s, got %+v", root, cfg.Booth.Folders)
	}
	if cfg.Database.JobStore != "postgres" || cfg.RateLimit.VideoCost != 6 {
		t.Fatalf("unexpected config %+v %+v", cfg.Database, cfg.RateLimit)
	}
	if cfg.RateLimit.Enabled {
		t.Fatal("expected unparsable bool to fall back to the default")
	}
}
