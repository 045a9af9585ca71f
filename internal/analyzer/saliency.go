package analyzer

import (
	"context"
	"image"
	"math"

	"github.com/ivlev/screenzoom/internal/director"
	"github.com/ivlev/screenzoom/internal/system"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// FrameSource provides decoded frames of the recording.
type FrameSource interface {
	Frame(ctx context.Context, t float64) (image.Image, error)
}

// FrameSaliency moves a zoom session's center onto the UI region the
// activity happened in. It samples the frame in the middle of the session
// and picks the smallest detected block containing the activity centroid,
// or else the nearest block within MaxDistance.
type FrameSaliency struct {
	Source      FrameSource
	Detector    Detector
	MaxDistance float64 // Normalized distance from the centroid to a block center
	MaxCoverage float64 // Blocks covering more of the frame are treated as background
}

// NewFrameSaliency creates a FrameSaliency with default limits.
func NewFrameSaliency(src FrameSource, det Detector) *FrameSaliency {
	return &FrameSaliency{
		Source:      src,
		Detector:    det,
		MaxDistance: director.DefaultSettings().Zoom.SessionDistance,
		MaxCoverage: 0.5,
	}
}

// Center implements director.SaliencyProvider.
func (s *FrameSaliency) Center(ctx context.Context, sess *director.Session) (timeline.Point, bool) {
	if s.Source == nil || s.Detector == nil || sess == nil {
		return timeline.Point{}, false
	}
	at := (sess.Start + sess.End) / 2
	frame, err := s.Source.Frame(ctx, at)
	if err != nil {
		system.Logger().Debug("saliency frame unavailable", "time", at, "error", err)
		return timeline.Point{}, false
	}
	blocks, err := s.Detector.Detect(ctx, frame)
	if err != nil {
		system.Logger().Debug("saliency detection failed", "time", at, "error", err)
		return timeline.Point{}, false
	}
	return s.pick(frame.Bounds(), blocks, sess.Centroid())
}

func (s *FrameSaliency) pick(bounds image.Rectangle, blocks []Block, c timeline.Point) (timeline.Point, bool) {
	frameArea := float64(bounds.Dx() * bounds.Dy())
	if frameArea == 0 {
		return timeline.Point{}, false
	}
	px := image.Point{
		X: bounds.Min.X + int(c.X*float64(bounds.Dx())),
		Y: bounds.Min.Y + int(c.Y*float64(bounds.Dy())),
	}

	var (
		best     *Block
		bestArea = math.Inf(1)
		near     *Block
		nearDist = math.Inf(1)
	)
	for i := range blocks {
		b := &blocks[i]
		area := float64(b.Rect.Dx() * b.Rect.Dy())
		if s.MaxCoverage > 0 && area/frameArea > s.MaxCoverage {
			continue
		}
		if px.In(b.Rect) {
			if area < bestArea {
				best, bestArea = b, area
			}
			continue
		}
		x, y := b.Center(bounds)
		if d := c.Distance(timeline.Point{X: x, Y: y}); d <= s.MaxDistance && d < nearDist {
			near, nearDist = b, d
		}
	}
	if best == nil {
		best = near
	}
	if best == nil {
		return timeline.Point{}, false
	}
	x, y := best.Center(bounds)
	return timeline.Point{X: x, Y: y}.Clamped(), true
}
