package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Flip modes accepted by picture.flip.
const (
	FlipOff        = "off"
	FlipHorizontal = "flip-horizontal"
	FlipVertical   = "flip-vertical"
	FlipBoth       = "flip-both"
)

// Collage frame rules accepted by collage.take_frame.
const (
	CollageFrameAlways  = "always"
	CollageFramePicture = "picture"
	CollageFrameOff     = "off"
)

// Video effects accepted by video.effects.
const (
	VideoEffectNone      = "none"
	VideoEffectBoomerang = "boomerang"
)

// Ledger backends accepted by database.backend.
const (
	LedgerFile     = "file"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

// Booth holds the photobooth settings tree. It is read-only once loaded.
type Booth struct {
	Folders       Folders       `toml:"folders"`
	Picture       Picture       `toml:"picture"`
	Collage       Collage       `toml:"collage"`
	Keying        Keying        `toml:"keying"`
	TextOnPicture TextOnPicture `toml:"textonpicture"`
	JPEGQuality   JPEGQuality   `toml:"jpeg_quality"`
	FTP           FTP           `toml:"ftp"`
	Video         Video         `toml:"video"`
	Commands      Commands      `toml:"commands"`
	Filters       Filters       `toml:"filters"`
	Database      Ledger        `toml:"database"`
}

type Folders struct {
	Temp   string `toml:"tmp"`
	Images string `toml:"images"`
	Thumbs string `toml:"thumbs"`
	Keying string `toml:"keying"`
}

type Picture struct {
	ThumbSize             string `toml:"thumb_size"`
	TakeFrame             bool   `toml:"take_frame"`
	Frame                 string `toml:"frame"`
	ExtendByFrame         bool   `toml:"extend_by_frame"`
	FrameLeftPercentage   int    `toml:"frame_left_percentage"`
	FrameRightPercentage  int    `toml:"frame_right_percentage"`
	FrameTopPercentage    int    `toml:"frame_top_percentage"`
	FrameBottomPercentage int    `toml:"frame_bottom_percentage"`
	Flip                  string `toml:"flip"`
	Rotation              string `toml:"rotation"`
	PolaroidEffect        bool   `toml:"polaroid_effect"`
	PolaroidRotation      int    `toml:"polaroid_rotation"`
	Permissions           string `toml:"permissions"`
	KeepOriginal          bool   `toml:"keep_original"`
	PreserveExifData      bool   `toml:"preserve_exif_data"`
}

type Collage struct {
	Layout              string `toml:"layout"`
	TakeFrame           string `toml:"take_frame"`
	Frame               string `toml:"frame"`
	Placeholder         bool   `toml:"placeholder"`
	PlaceholderPosition int    `toml:"placeholderposition"`
	PlaceholderPath     string `toml:"placeholderpath"`
	KeepSingleImages    bool   `toml:"keep_single_images"`
	Background          string `toml:"background_color"`
}

type Keying struct {
	Enabled bool   `toml:"enabled"`
	Size    string `toml:"size"`
	ShowAll bool   `toml:"show_all"`
}

type TextOnPicture struct {
	Enabled   bool    `toml:"enabled"`
	Font      string  `toml:"font"`
	FontSize  float64 `toml:"font_size"`
	FontColor string  `toml:"font_color"`
	Rotation  float64 `toml:"rotation"`
	LocationX float64 `toml:"locationx"`
	LocationY float64 `toml:"locationy"`
	Line1     string  `toml:"line1"`
	Line2     string  `toml:"line2"`
	Line3     string  `toml:"line3"`
	LineSpace float64 `toml:"linespace"`
}

type JPEGQuality struct {
	Image  int `toml:"image"`
	Thumb  int `toml:"thumb"`
	Chroma int `toml:"chroma"`
}

type FTP struct {
	Enabled            bool   `toml:"enabled"`
	Host               string `toml:"baseURL"`
	Port               int    `toml:"port"`
	Username           string `toml:"username"`
	Password           string `toml:"password"`
	BaseFolder         string `toml:"baseFolder"`
	Folder             string `toml:"folder"`
	Title              string `toml:"title"`
	AppendDate         bool   `toml:"appendDate"`
	UploadThumb        bool   `toml:"upload_thumb"`
	CreateWebpage      bool   `toml:"create_webpage"`
	TemplateLocation   string `toml:"template_location"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

type Video struct {
	Effects           string `toml:"effects"`
	GIF               bool   `toml:"gif"`
	Collage           bool   `toml:"collage"`
	CollageKeepImages bool   `toml:"collage_keep_images"`
	CollageOnly       bool   `toml:"collage_only"`
}

// Commands names the external binaries. Exiftool is an argument template
// where the first %s is the source and the second %s the destination.
type Commands struct {
	FFmpeg   string `toml:"ffmpeg"`
	FFprobe  string `toml:"ffprobe"`
	Exiftool string `toml:"exiftool"`
}

type Filters struct {
	Defaults string `toml:"defaults"`
}

type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// DefaultBooth mirrors the stock kiosk configuration.
func DefaultBooth() Booth {
	return Booth{
		Folders: FoldersUnder("./data"),
		Picture: Picture{
			ThumbSize:        "540px",
			Flip:             FlipOff,
			Rotation:         "0",
			PolaroidRotation: 0,
			Permissions:      "0644",
		},
		Collage: Collage{
			Layout:              "2+2-2",
			TakeFrame:           CollageFrameOff,
			PlaceholderPosition: 0,
			Background:          "#ffffff",
		},
		Keying: Keying{
			Size: "1500px",
		},
		TextOnPicture: TextOnPicture{
			FontSize:  80,
			FontColor: "#ffffff",
			LocationX: 80,
			LocationY: 80,
			LineSpace: 90,
		},
		JPEGQuality: JPEGQuality{
			Image:  100,
			Thumb:  60,
			Chroma: 100,
		},
		FTP: FTP{
			Port:             21,
			Folder:           "photobooth",
			TemplateLocation: "resources/template/index.php",
			TimeoutSeconds:   10,
		},
		Video: Video{
			Effects: VideoEffectNone,
		},
		Commands: Commands{
			FFmpeg:   "ffmpeg",
			FFprobe:  "ffprobe",
			Exiftool: "exiftool -overwrite_original -TagsFromFile %s %s",
		},
		Filters: Filters{
			Defaults: "plain",
		},
		Database: Ledger{
			Enabled: true,
			Backend: LedgerFile,
			Path:    "./data/db.json",
		},
	}
}

// FoldersUnder lays the standard folder set out below root.
func FoldersUnder(root string) Folders {
	return Folders{
		Temp:   filepath.Join(root, "tmp"),
		Images: filepath.Join(root, "images"),
		Thumbs: filepath.Join(root, "thumbs"),
		Keying: filepath.Join(root, "keying"),
	}
}

// LoadBoothFile decodes a TOML settings file over the values already in b.
func LoadBoothFile(path string, b *Booth) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, b); err != nil {
		return fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return nil
}

func (b Booth) Validate() error {
	var errs []error

	switch b.Picture.Flip {
	case FlipOff, FlipHorizontal, FlipVertical, FlipBoth:
	default:
		errs = append(errs, fmt.Errorf("picture.flip: unsupported value %q", b.Picture.Flip))
	}
	if _, err := b.Picture.RotationDegrees(); err != nil {
		errs = append(errs, err)
	}
	if _, err := b.Picture.FileMode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := PixelSize(b.Picture.ThumbSize); err != nil {
		errs = append(errs, fmt.Errorf("picture.thumb_size: %w", err))
	}
	if _, err := PixelSize(b.Keying.Size); err != nil {
		errs = append(errs, fmt.Errorf("keying.size: %w", err))
	}
	switch b.Collage.TakeFrame {
	case CollageFrameAlways, CollageFramePicture, CollageFrameOff:
	default:
		errs = append(errs, fmt.Errorf("collage.take_frame: unsupported value %q", b.Collage.TakeFrame))
	}
	switch strings.ToLower(b.Video.Effects) {
	case "", VideoEffectNone, VideoEffectBoomerang:
	default:
		errs = append(errs, fmt.Errorf("video.effects: unsupported value %q", b.Video.Effects))
	}
	for name, q := range map[string]int{
		"jpeg_quality.image":  b.JPEGQuality.Image,
		"jpeg_quality.thumb":  b.JPEGQuality.Thumb,
		"jpeg_quality.chroma": b.JPEGQuality.Chroma,
	} {
		if q < -1 || q > 100 {
			errs = append(errs, fmt.Errorf("%s: must be between -1 and 100, got %d", name, q))
		}
	}
	if b.Database.Enabled {
		switch b.Database.Backend {
		case LedgerFile, LedgerSQLite, LedgerPostgres:
		default:
			errs = append(errs, fmt.Errorf("database.backend: unsupported value %q", b.Database.Backend))
		}
	}
	if b.FTP.Enabled && strings.TrimSpace(b.FTP.Host) == "" {
		errs = append(errs, errors.New("ftp.baseURL is required when ftp is enabled"))
	}
	return errors.Join(errs...)
}

// RotationDegrees parses picture.rotation.
func (p Picture) RotationDegrees() (int, error) {
	value := strings.TrimSpace(p.Rotation)
	if value == "" {
		return 0, nil
	}
	deg, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("picture.rotation: %q is not a number", p.Rotation)
	}
	return deg % 360, nil
}

// FileMode parses the octal picture.permissions string.
func (p Picture) FileMode() (os.FileMode, error) {
	value := strings.TrimSpace(p.Permissions)
	if value == "" {
		return 0o644, nil
	}
	mode, err := strconv.ParseUint(value, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("picture.permissions: %q is not an octal mode", p.Permissions)
	}
	return os.FileMode(mode), nil
}

// PixelSize parses sizes written as "540px".
func PixelSize(value string) (int, error) {
	value = strings.TrimSuffix(strings.TrimSpace(value), "px")
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pixel size %q", value)
	}
	return n, nil
}

// ReencodeQuality reports whether q forces a lossy re-encode.
func ReencodeQuality(q int) bool {
	return q >= 0 && q < 100
}
