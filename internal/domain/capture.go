package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Style string

const (
	StylePhoto   Style = "photo"
	StyleCollage Style = "collage"
	StyleCustom  Style = "custom"
	StyleChroma  Style = "chroma"
)

func ParseStyle(value string) (Style, error) {
	switch s := Style(strings.ToLower(strings.TrimSpace(value))); s {
	case StylePhoto, StyleCollage, StyleCustom, StyleChroma:
		return s, nil
	case "":
		return "", errors.New("style is required")
	default:
		return "", fmt.Errorf("unsupported style: %s", value)
	}
}

type Filter string

const (
	FilterPlain         Filter = "plain"
	FilterAntique       Filter = "antique"
	FilterAqua          Filter = "aqua"
	FilterBlue          Filter = "blue"
	FilterBlur          Filter = "blur"
	FilterColor         Filter = "color"
	FilterCool          Filter = "cool"
	FilterEdge          Filter = "edge"
	FilterEmboss        Filter = "emboss"
	FilterEverglow      Filter = "everglow"
	FilterGrayscale     Filter = "grayscale"
	FilterGreen         Filter = "green"
	FilterMean          Filter = "mean"
	FilterNegate        Filter = "negate"
	FilterPink          Filter = "pink"
	FilterPixelate      Filter = "pixelate"
	FilterRed           Filter = "red"
	FilterRetro         Filter = "retro"
	FilterSelectiveBlur Filter = "selective-blur"
	FilterSepiaLight    Filter = "sepia-light"
	FilterSepiaDark     Filter = "sepia-dark"
	FilterSmooth        Filter = "smooth"
	FilterVintage       Filter = "vintage"
	FilterWashed        Filter = "washed"
	FilterYellow        Filter = "yellow"
)

var knownFilters = map[Filter]struct{}{
	FilterPlain: {}, FilterAntique: {}, FilterAqua: {}, FilterBlue: {}, FilterBlur: {},
	FilterColor: {}, FilterCool: {}, FilterEdge: {}, FilterEmboss: {}, FilterEverglow: {},
	FilterGrayscale: {}, FilterGreen: {}, FilterMean: {}, FilterNegate: {}, FilterPink: {},
	FilterPixelate: {}, FilterRed: {}, FilterRetro: {}, FilterSelectiveBlur: {},
	FilterSepiaLight: {}, FilterSepiaDark: {}, FilterSmooth: {}, FilterVintage: {},
	FilterWashed: {}, FilterYellow: {},
}

// ParseFilter accepts an empty value as "no filter".
func ParseFilter(value string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(value)))
	if f == "" {
		return "", nil
	}
	if _, ok := knownFilters[f]; !ok {
		return "", fmt.Errorf("unsupported filter: %s", value)
	}
	return f, nil
}

// Active reports whether f changes pixels.
func (f Filter) Active() bool {
	return f != "" && f != FilterPlain
}

// CaptureRequest asks for effects to be applied to a captured still.
type CaptureRequest struct {
	File      string `json:"file"`
	Style     Style  `json:"style"`
	Filter    Filter `json:"filter,omitempty"`
	SessionID string `json:"-"`
}

// NewCaptureRequest validates raw inbound fields.
func NewCaptureRequest(file, style, filter string) (CaptureRequest, error) {
	req := CaptureRequest{File: strings.TrimSpace(file)}
	if err := validateFile(req.File); err != nil {
		return CaptureRequest{}, err
	}
	s, err := ParseStyle(style)
	if err != nil {
		return CaptureRequest{}, err
	}
	f, err := ParseFilter(filter)
	if err != nil {
		return CaptureRequest{}, err
	}
	req.Style = s
	req.Filter = f
	return req, nil
}

func (r CaptureRequest) Validate() error {
	if err := validateFile(r.File); err != nil {
		return err
	}
	if _, err := ParseStyle(string(r.Style)); err != nil {
		return err
	}
	if _, err := ParseFilter(string(r.Filter)); err != nil {
		return err
	}
	return nil
}

// VideoRequest asks for a captured video and its extracted frames to be finished.
type VideoRequest struct {
	File      string `json:"file"`
	SessionID string `json:"-"`
}

func (r VideoRequest) Validate() error {
	return validateFile(r.File)
}

// Manifest is the success response for one request.
type Manifest struct {
	File   string   `json:"file"`
	Images []string `json:"images"`
}

func validateFile(file string) error {
	file = strings.TrimSpace(file)
	if file == "" {
		return errors.New("no file provided")
	}
	if strings.ContainsAny(file, `/\`) || file == "." || file == ".." {
		return fmt.Errorf("invalid file name: %s", file)
	}
	return nil
}
