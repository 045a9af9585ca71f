package director

import (
	"math"

	"github.com/ivlev/screenzoom/internal/activity"
	"github.com/ivlev/screenzoom/internal/easing"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// resample returns pointer positions on a fixed grid starting at the first
// sample, linearly interpolated between raw samples.
func resample(samples []activity.PositionSample, rate float64) (start float64, pts []timeline.Point) {
	if len(samples) == 0 {
		return 0, nil
	}
	start = samples[0].Time
	end := samples[len(samples)-1].Time
	n := int(math.Floor((end-start)*rate)) + 1
	pts = make([]timeline.Point, n)

	j := 0
	for i := range pts {
		t := start + float64(i)/rate
		for j+1 < len(samples) && samples[j+1].Time <= t {
			j++
		}
		if j+1 >= len(samples) {
			pts[i] = samples[j].Position
			continue
		}
		a, b := samples[j], samples[j+1]
		p := 0.0
		if span := b.Time - a.Time; span > 0 {
			p = (t - a.Time) / span
		}
		pts[i] = a.Position.Lerp(b.Position, p)
	}
	return start, pts
}

// smooth applies a centered moving average; the window shrinks at the edges.
func smooth(pts []timeline.Point, taps int) []timeline.Point {
	if taps <= 1 {
		return pts
	}
	half := taps / 2
	out := make([]timeline.Point, len(pts))
	for i := range pts {
		lo := max(0, i-half)
		hi := min(len(pts)-1, i+half)
		var sx, sy float64
		for k := lo; k <= hi; k++ {
			sx += pts[k].X
			sy += pts[k].Y
		}
		n := float64(hi - lo + 1)
		out[i] = timeline.Point{X: sx / n, Y: sy / n}
	}
	return out
}

// cursorKeyframes resamples and smooths the pointer path, attaches motion
// and keeps only ticks where the pointer moved or a click happened.
func cursorKeyframes(rec *activity.Recording, s CursorSettings) []timeline.Keyframe[timeline.Cursor] {
	start, raw := resample(rec.Positions, s.SampleRate)
	if len(raw) == 0 {
		return nil
	}
	pts := smooth(raw, s.Smoothing)

	clickTick := make(map[int]bool, len(rec.Clicks))
	for _, c := range rec.Clicks {
		i := int(math.Round((c.Time - start) * s.SampleRate))
		if i >= 0 && i < len(pts) {
			clickTick[i] = true
		}
	}

	var kfs []timeline.Keyframe[timeline.Cursor]
	var last timeline.Point
	pressed := false
	for i, p := range pts {
		click := clickTick[i]
		keep := i == 0 || i == len(pts)-1 || click || pressed || p.Distance(last) > s.MinMove
		pressed = click
		if !keep {
			continue
		}

		var velocity, direction float64
		if i > 0 {
			dx, dy := p.X-pts[i-1].X, p.Y-pts[i-1].Y
			velocity = math.Hypot(dx, dy) * s.SampleRate
			if velocity > 0 {
				direction = math.Atan2(dy, dx)
			}
		}
		scale := s.Scale
		if click {
			scale = s.ClickScale
		}

		t := start + float64(i)/s.SampleRate
		pos := p
		kfs = append(kfs, timeline.Keyframe[timeline.Cursor]{
			ID:   timeline.GeneratedID(timeline.KindCursor, len(kfs), t),
			Time: t,
			Value: timeline.Cursor{
				Position:  &pos,
				Style:     timeline.CursorArrow,
				Visible:   true,
				Scale:     scale,
				Velocity:  &velocity,
				Direction: &direction,
			},
			Easing: easing.Linear(),
		})
		last = p
	}

	return kfs
}
