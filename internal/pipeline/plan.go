// Package pipeline turns a captured file into its finished artifacts: it plans
// the effect stages for every asset, assembles collages and executes the plans.
package pipeline

import (
	"fmt"

	"github.com/dunamismax/boothflow/internal/config"
	"github.com/dunamismax/boothflow/internal/domain"
	"github.com/dunamismax/boothflow/internal/effects"
)

type StageName string

const (
	StageFilter    StageName = "filter"
	StageFlip      StageName = "flip"
	StageRotate    StageName = "rotate"
	StagePolaroid  StageName = "polaroid"
	StageFrame     StageName = "frame"
	StageText      StageName = "text"
	StageThumbnail StageName = "thumbnail"
	StageChroma    StageName = "chroma"
)

// Role says how an asset relates to the request that produced it.
type Role int

const (
	RoleSingle Role = iota
	RoleCollageMerged
	RoleCollageMember
	// RoleVideoStill is a frame or collage derived from a video capture. It
	// only gets a thumbnail.
	RoleVideoStill
)

func (r Role) String() string {
	switch r {
	case RoleSingle:
		return "single"
	case RoleCollageMerged:
		return "collage-merged"
	case RoleCollageMember:
		return "collage-member"
	case RoleVideoStill:
		return "video-still"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Stage is one step of a plan. Only the fields relevant to Name are set.
type Stage struct {
	Name    StageName
	Filter  domain.Filter
	Flip    effects.FlipMode
	Degrees int
	Frame   effects.FrameOptions
	Text    effects.TextOptions
	Size    int
	Quality int
}

// Fatal reports whether a failure of the stage aborts the request.
func (s Stage) Fatal() bool {
	return s.Name != StageThumbnail && s.Name != StageChroma
}

type Plan []Stage

// Names lists the stage names in execution order.
func (p Plan) Names() []StageName {
	names := make([]StageName, len(p))
	for i, s := range p {
		names[i] = s.Name
	}
	return names
}

func (p Plan) Has(name StageName) bool {
	for _, s := range p {
		if s.Name == name {
			return true
		}
	}
	return false
}

type PlanInput struct {
	Style  domain.Style
	Filter domain.Filter
	Role   Role
}

// BuildPlan computes the ordered stage list for one asset. The same input and
// settings always produce the same plan.
func BuildPlan(in PlanInput, b config.Booth) (Plan, error) {
	chroma := in.Style == domain.StyleChroma
	cosmetic := !chroma && in.Role != RoleCollageMerged && in.Role != RoleVideoStill

	plan := make(Plan, 0, 8)
	if cosmetic {
		if in.Filter.Active() {
			plan = append(plan, Stage{Name: StageFilter, Filter: in.Filter})
		}

		if mode, ok := flipMode(b.Picture.Flip); ok {
			plan = append(plan, Stage{Name: StageFlip, Flip: mode})
		}

		degrees, err := b.Picture.RotationDegrees()
		if err != nil {
			return nil, err
		}
		if degrees != 0 {
			plan = append(plan, Stage{Name: StageRotate, Degrees: degrees})
		}

		if b.Picture.PolaroidEffect {
			plan = append(plan, Stage{Name: StagePolaroid, Degrees: b.Picture.PolaroidRotation})
		}

		if frame, ok := frameFor(in.Role, b); ok {
			plan = append(plan, Stage{Name: StageFrame, Frame: frame})
		}

		if b.TextOnPicture.Enabled {
			plan = append(plan, Stage{Name: StageText, Text: textOptions(b.TextOnPicture)})
		}
	}

	thumbSize, err := config.PixelSize(b.Picture.ThumbSize)
	if err != nil {
		return nil, fmt.Errorf("picture.thumb_size: %w", err)
	}
	plan = append(plan, Stage{Name: StageThumbnail, Size: thumbSize, Quality: b.JPEGQuality.Thumb})

	if (b.Keying.Enabled || chroma) && in.Role != RoleVideoStill {
		size, err := config.PixelSize(b.Keying.Size)
		if err != nil {
			return nil, fmt.Errorf("keying.size: %w", err)
		}
		plan = append(plan, Stage{Name: StageChroma, Size: size, Quality: b.JPEGQuality.Chroma})
	}

	return plan, nil
}

func flipMode(value string) (effects.FlipMode, bool) {
	switch value {
	case config.FlipHorizontal:
		return effects.FlipHorizontal, true
	case config.FlipVertical:
		return effects.FlipVertical, true
	case config.FlipBoth:
		return effects.FlipBoth, true
	default:
		return "", false
	}
}

// frameFor picks the frame for a single picture or a kept collage member. The
// merged collage is framed by the assembler, never here.
func frameFor(role Role, b config.Booth) (effects.FrameOptions, bool) {
	switch role {
	case RoleSingle:
		if b.Picture.TakeFrame {
			return pictureFrame(b.Picture), true
		}
	case RoleCollageMember:
		switch b.Collage.TakeFrame {
		case config.CollageFrameAlways:
			return effects.FrameOptions{Path: b.Collage.Frame}, true
		case config.CollageFramePicture:
			if b.Picture.TakeFrame {
				return pictureFrame(b.Picture), true
			}
		}
	}
	return effects.FrameOptions{}, false
}

func pictureFrame(p config.Picture) effects.FrameOptions {
	opts := effects.FrameOptions{Path: p.Frame}
	if p.ExtendByFrame {
		opts.Extend = true
		opts.Left = p.FrameLeftPercentage
		opts.Right = p.FrameRightPercentage
		opts.Top = p.FrameTopPercentage
		opts.Bottom = p.FrameBottomPercentage
	}
	return opts
}

func textOptions(t config.TextOnPicture) effects.TextOptions {
	return effects.TextOptions{
		FontPath:  t.Font,
		FontSize:  t.FontSize,
		Color:     t.FontColor,
		Rotation:  t.Rotation,
		X:         t.LocationX,
		Y:         t.LocationY,
		Lines:     []string{t.Line1, t.Line2, t.Line3},
		LineSpace: t.LineSpace,
	}
}
