package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/domain"
	"github.com/dunamismax/boothflow/internal/effects"
)

// VideoCollageLayout is the strip layout used for collages built from video frames.
const VideoCollageLayout = "2x4-3"

var (
	ErrUnknownLayout  = errors.New("unknown collage layout")
	ErrMissingSources = errors.New("collage sources missing")
)

type FrameRule string

const (
	FrameAlways  FrameRule = config.CollageFrameAlways
	FramePicture FrameRule = config.CollageFramePicture
	FrameOff     FrameRule = config.CollageFrameOff
)

// CollageSpec is the per-request view of the collage settings.
type CollageSpec struct {
	Layout          string
	FrameRule       FrameRule
	Frame           string
	Placeholder     bool
	PlaceholderPath string
	Background      string

	// PlaceholderPosition is the 1-based slot the placeholder always takes.
	// Zero lets it fill whichever slot is missing.
	PlaceholderPosition int
}

// CollageOverride replaces selected collage settings for one request without
// touching the shared configuration. Zero fields keep the configured value.
type CollageOverride struct {
	Layout             string
	FrameRule          FrameRule
	DisablePlaceholder bool
}

func CollageSpecFromConfig(b config.Booth) CollageSpec {
	return CollageSpec{
		Layout:          b.Collage.Layout,
		FrameRule:       FrameRule(b.Collage.TakeFrame),
		Frame:           b.Collage.Frame,
		Placeholder:     b.Collage.Placeholder && strings.TrimSpace(b.Collage.PlaceholderPath) != "",
		PlaceholderPath: b.Collage.PlaceholderPath,
		Background:      b.Collage.Background,

		PlaceholderPosition: b.Collage.PlaceholderPosition,
	}
}

func (s CollageSpec) With(o CollageOverride) CollageSpec {
	if o.Layout != "" {
		s.Layout = o.Layout
	}
	if o.FrameRule != "" {
		s.FrameRule = o.FrameRule
	}
	if o.DisablePlaceholder {
		s.Placeholder = false
	}
	return s
}

type slot struct {
	source     int
	x, y, w, h float64
}

// Layout places source images on a canvas. Coordinates are fractions of the
// canvas size so the table stays readable.
type Layout struct {
	Name    string
	Width   int
	Height  int
	Sources int
	slots   []slot
}

const (
	landscapeW = 1800
	landscapeH = 1200
	margin     = 0.02
)

var layouts = map[string]Layout{
	"2+2":   grid("2+2", landscapeW, landscapeH, 2, 2, margin, 0, 0, false),
	"2+2-2": grid("2+2-2", landscapeW, landscapeH, 2, 2, 0.05, 0, 0.12, false),
	"1+3":   heroSide("1+3", 3, false),
	"3+1":   heroSide("3+1", 3, true),
	"1+2":   heroSide("1+2", 2, false),
	"2+1":   heroSide("2+1", 2, true),
	"1+3-2": heroTop("1+3-2", 3),
	"2x4":   grid("2x4", landscapeH, landscapeW, 2, 4, margin, 0, 0, true),
	"2x4-2": grid("2x4-2", landscapeH, landscapeW, 2, 4, margin, 0.1, 0, true),
	"2x4-3": grid("2x4-3", landscapeH, landscapeW, 2, 4, margin, 0, 0.1, true),
	"2x3":   grid("2x3", landscapeH, landscapeW, 2, 3, margin, 0, 0, true),
}

// LookupLayout returns the named layout.
func LookupLayout(name string) (Layout, error) {
	l, ok := layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %s", ErrUnknownLayout, name)
	}
	return l, nil
}

// LayoutNames lists the supported layouts in sorted order.
func LayoutNames() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// grid lays cols x rows cells inside the canvas, leaving top and bottom bands
// free. Strip layouts repeat each row's source across the columns so the print
// can be cut in two.
func grid(name string, w, h, cols, rows int, m, top, bottom float64, strip bool) Layout {
	cellW := (1 - m*float64(cols+1)) / float64(cols)
	cellH := (1 - top - bottom - m*float64(rows+1)) / float64(rows)

	l := Layout{Name: name, Width: w, Height: h}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			src := r*cols + c
			if strip {
				src = r
			}
			l.slots = append(l.slots, slot{
				source: src,
				x:      m + float64(c)*(cellW+m),
				y:      top + m + float64(r)*(cellH+m),
				w:      cellW,
				h:      cellH,
			})
		}
	}
	l.Sources = sourceCount(l.slots)
	return l
}

// heroSide puts one large image next to a column of small ones. With heroRight
// the column comes first.
func heroSide(name string, small int, heroRight bool) Layout {
	heroW := 0.6
	sideW := 1 - heroW - 3*margin
	sideH := (1 - margin*float64(small+1)) / float64(small)

	heroX, sideX := margin, heroW+2*margin
	if heroRight {
		heroX, sideX = sideW+2*margin, margin
	}

	l := Layout{Name: name, Width: landscapeW, Height: landscapeH}
	first := 0
	if heroRight {
		first = small
	}
	l.slots = append(l.slots, slot{source: first, x: heroX, y: margin, w: heroW, h: 1 - 2*margin})
	for i := 0; i < small; i++ {
		src := i + 1
		if heroRight {
			src = i
		}
		l.slots = append(l.slots, slot{
			source: src,
			x:      sideX,
			y:      margin + float64(i)*(sideH+margin),
			w:      sideW,
			h:      sideH,
		})
	}
	l.Sources = sourceCount(l.slots)
	return l
}

func heroTop(name string, small int) Layout {
	heroH := 0.6
	rowH := 1 - heroH - 3*margin
	cellW := (1 - margin*float64(small+1)) / float64(small)

	l := Layout{Name: name, Width: landscapeW, Height: landscapeH}
	l.slots = append(l.slots, slot{source: 0, x: margin, y: margin, w: 1 - 2*margin, h: heroH})
	for i := 0; i < small; i++ {
		l.slots = append(l.slots, slot{
			source: i + 1,
			x:      margin + float64(i)*(cellW+margin),
			y:      heroH + 2*margin,
			w:      cellW,
			h:      rowH,
		})
	}
	l.Sources = sourceCount(l.slots)
	return l
}

func sourceCount(slots []slot) int {
	n := 0
	for _, s := range slots {
		n = max(n, s.source+1)
	}
	return n
}

func (l Layout) rect(s slot) image.Rectangle {
	x := int(s.x * float64(l.Width))
	y := int(s.y * float64(l.Height))
	w := int(s.w * float64(l.Width))
	h := int(s.h * float64(l.Height))
	return image.Rect(x, y, x+w, y+h)
}

// CollageMembers resolves the temp paths of the single shots that make up the
// collage for file, in slot order.
func CollageMembers(b config.Booth, file, layout string) ([]string, error) {
	l, err := LookupLayout(layout)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	members := make([]string, l.Sources)
	for i := range members {
		members[i] = filepath.Join(b.Folders.Temp, fmt.Sprintf("%s-%d.jpg", stem, i))
	}
	return members, nil
}

type Assembler struct{}

// Assemble merges sources into a single JPEG at dest. Missing sources are
// replaced by the placeholder when the CollageSpec allows it; otherwise nothing is
// written. A placeholder pinned to a slot replaces that slot's source.
func (Assembler) Assemble(ctx context.Context, sources []string, spec CollageSpec, filter domain.Filter, dest string) error {
	layout, err := LookupLayout(spec.Layout)
	if err != nil {
		return err
	}
	if len(sources) != layout.Sources {
		return fmt.Errorf("collage layout %s needs %d images, got %d", layout.Name, layout.Sources, len(sources))
	}
	if spec.Placeholder && (spec.PlaceholderPosition < 0 || spec.PlaceholderPosition > layout.Sources) {
		return fmt.Errorf("collage layout %s has no slot %d for the placeholder", layout.Name, spec.PlaceholderPosition)
	}

	images := make([]image.Image, len(sources))
	var missing []string
	for i, path := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := loadMember(path, i, spec)
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, filepath.Base(path))
			continue
		}
		if err != nil {
			return fmt.Errorf("collage member %d: %w", i, err)
		}
		if filter.Active() {
			img, err = effects.ApplyFilter(img, filter)
			if err != nil {
				return fmt.Errorf("collage member %d filter: %w", i, err)
			}
		}
		images[i] = img
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSources, strings.Join(missing, ", "))
	}

	bg, err := effects.ParseColor(spec.Background)
	if err != nil {
		return err
	}
	var canvas image.Image = imaging.New(layout.Width, layout.Height, bg)
	for _, s := range layout.slots {
		r := layout.rect(s)
		cell := imaging.Fill(images[s.source], r.Dx(), r.Dy(), imaging.Center, imaging.Lanczos)
		canvas = imaging.Paste(canvas, cell, r.Min)
	}

	if spec.FrameRule == FrameAlways {
		canvas, err = effects.ApplyFrame(canvas, effects.FrameOptions{Path: spec.Frame})
		if err != nil {
			return fmt.Errorf("collage frame: %w", err)
		}
	}

	partial := dest + ".part"
	if err := effects.SaveJPEG(canvas, partial, 100); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("write collage: %w", err)
	}
	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("write collage: %w", err)
	}
	return nil
}

func loadMember(path string, index int, spec CollageSpec) (image.Image, error) {
	if spec.Placeholder && spec.PlaceholderPosition == index+1 {
		return effects.Load(spec.PlaceholderPath)
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || !spec.Placeholder || spec.PlaceholderPosition != 0 {
			return nil, err
		}
		path = spec.PlaceholderPath
	}
	return effects.Load(path)
}
