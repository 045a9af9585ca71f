// Package timeline holds the keyframe document: four typed tracks, the edits
// that change them and an undo/redo history over immutable snapshots.
package timeline

import (
	"fmt"
	"math"
)

// Timeline owns exactly one track per kind. Values are treated as immutable:
// edits return a new Timeline that shares unchanged tracks.
type Timeline struct {
	Duration  float64
	TrimStart float64
	TrimEnd   *float64

	Transform Track[Transform]
	Ripple    Track[Ripple]
	Cursor    Track[Cursor]
	Keystroke Track[Keystroke]
}

// New returns an empty timeline of the given length.
func New(duration float64) Timeline {
	return Timeline{
		Duration:  math.Max(duration, 0),
		Transform: newTrack[Transform]("Transform"),
		Ripple:    newTrack[Ripple]("Click Ripple"),
		Cursor:    newTrack[Cursor]("Cursor"),
		Keystroke: newTrack[Keystroke]("Keystroke"),
	}
}

// TrackOf returns a pointer to the track of tl that holds payloads of type P.
func TrackOf[P Payload](tl *Timeline) *Track[P] {
	var t any
	switch KindOf[P]() {
	case KindTransform:
		t = &tl.Transform
	case KindRipple:
		t = &tl.Ripple
	case KindCursor:
		t = &tl.Cursor
	default:
		t = &tl.Keystroke
	}
	return t.(*Track[P])
}

// EffectiveTrimStart is the trim start clamped to [0, Duration].
func (tl Timeline) EffectiveTrimStart() float64 {
	return math.Min(math.Max(tl.TrimStart, 0), tl.Duration)
}

// EffectiveTrimEnd is the trim end (or Duration when unset) clamped to Duration.
func (tl Timeline) EffectiveTrimEnd() float64 {
	if tl.TrimEnd == nil {
		return tl.Duration
	}
	return math.Min(*tl.TrimEnd, tl.Duration)
}

func (tl Timeline) TrimmedDuration() float64 {
	return math.Max(tl.EffectiveTrimEnd()-tl.EffectiveTrimStart(), 0)
}

func (tl Timeline) IsTrimmed() bool {
	return tl.TrimStart > 0 || tl.TrimEnd != nil
}

// InTrimRange reports whether t falls inside the kept part of the recording.
func (tl Timeline) InTrimRange(t float64) bool {
	return t >= tl.EffectiveTrimStart() && t <= tl.EffectiveTrimEnd()
}

// Counts returns the number of keyframes per track kind.
func (tl Timeline) Counts() map[Kind]int {
	return map[Kind]int{
		KindTransform: tl.Transform.Len(),
		KindRipple:    tl.Ripple.Len(),
		KindCursor:    tl.Cursor.Len(),
		KindKeystroke: tl.Keystroke.Len(),
	}
}

func (tl Timeline) KeyframeCount() int {
	return tl.Transform.Len() + tl.Ripple.Len() + tl.Cursor.Len() + tl.Keystroke.Len()
}

func (tl Timeline) maxKeyframeTime() float64 {
	return math.Max(
		math.Max(tl.Transform.LastTime(), tl.Ripple.LastTime()),
		math.Max(tl.Cursor.LastTime(), tl.Keystroke.LastTime()),
	)
}

// Validate checks the model invariants: finite non-negative times, sorted
// tracks, valid payloads and Duration covering every keyframe.
func (tl Timeline) Validate() error {
	if !isFinite(tl.Duration) || tl.Duration < 0 {
		return fmt.Errorf("duration must be a non-negative number, got %v", tl.Duration)
	}
	if !isFinite(tl.TrimStart) || (tl.TrimEnd != nil && !isFinite(*tl.TrimEnd)) {
		return fmt.Errorf("trim range is not finite")
	}
	checks := []struct {
		kind   Kind
		sorted bool
		err    error
	}{
		{KindTransform, tl.Transform.Sorted(), tl.Transform.validate()},
		{KindRipple, tl.Ripple.Sorted(), tl.Ripple.validate()},
		{KindCursor, tl.Cursor.Sorted(), tl.Cursor.validate()},
		{KindKeystroke, tl.Keystroke.Sorted(), tl.Keystroke.validate()},
	}
	for _, c := range checks {
		if c.err != nil {
			return fmt.Errorf("%s track: %w", c.kind, c.err)
		}
		if !c.sorted {
			return fmt.Errorf("%s track: keyframes are not sorted by time", c.kind)
		}
	}
	if m := tl.maxKeyframeTime(); m > tl.Duration {
		return fmt.Errorf("keyframe at %v is past duration %v", m, tl.Duration)
	}
	return nil
}
