package timeline

import (
	"fmt"
	"math"
	"sort"

	zerr "github.com/ivlev/screenzoom/internal/errors"
)

// SnapGrid is the time grid (seconds) used when a move asks to snap.
const SnapGrid = 0.01

// Edit is a single change to a timeline. The set of edits is closed.
type Edit interface {
	apply(tl Timeline) (next Timeline, changed bool, err error)
	// undoable reports whether the edit is recorded in the history.
	undoable() bool
}

// Add inserts a keyframe. An empty ID is filled with a new one. A time past
// the end grows the timeline.
type Add[P Payload] struct {
	Keyframe Keyframe[P]
}

// Remove deletes a keyframe by ID. Removing an absent ID changes nothing.
type Remove[P Payload] struct {
	ID string
}

// Move changes a keyframe's time, clamped to [0, Duration].
type Move[P Payload] struct {
	ID   string
	Time float64
	Snap bool
}

// Update replaces a keyframe's payload and easing. Its time is kept.
type Update[P Payload] struct {
	Keyframe Keyframe[P]
}

// ReplaceTrack swaps the whole keyframe list of one track.
type ReplaceTrack[P Payload] struct {
	Keyframes []Keyframe[P]
}

// SetTrim changes the exported range.
type SetTrim struct {
	Start float64
	End   *float64
}

// Batch applies its edits in order as one step: either all of them or none.
// A document records it as a single history entry.
type Batch struct {
	Edits []Edit
}

// Load replaces the document wholesale and clears the history.
type Load struct {
	Timeline Timeline
}

// Apply returns the timeline with e applied. tl is never modified.
func (tl Timeline) Apply(e Edit) (Timeline, error) {
	next, _, err := e.apply(tl)
	if err != nil {
		return tl, err
	}
	return next, nil
}

func (e Add[P]) undoable() bool          { return true }
func (e Remove[P]) undoable() bool       { return true }
func (e Move[P]) undoable() bool         { return true }
func (e Update[P]) undoable() bool       { return true }
func (e ReplaceTrack[P]) undoable() bool { return true }
func (e SetTrim) undoable() bool         { return true }
func (e Load) undoable() bool            { return false }

// undoable is false when any edit in the batch is not, so a batched Load
// still clears the history.
func (e Batch) undoable() bool {
	for _, sub := range e.Edits {
		if !sub.undoable() {
			return false
		}
	}
	return true
}

func (e Add[P]) apply(tl Timeline) (Timeline, bool, error) {
	kf := e.Keyframe
	if err := kf.validate(); err != nil {
		return tl, false, invalid(err)
	}
	tr := TrackOf[P](&tl)
	if kf.ID == "" {
		kf.ID = NewID()
	} else if tr.Find(kf.ID) >= 0 {
		return tl, false, zerr.NewInvalidEdit(fmt.Sprintf("duplicate %s keyframe id: %s", KindOf[P](), kf.ID))
	}
	*tr = tr.withInserted(kf)
	tl.Duration = math.Max(tl.Duration, kf.Time)
	return tl, true, nil
}

func (e Remove[P]) apply(tl Timeline) (Timeline, bool, error) {
	tr := TrackOf[P](&tl)
	i := tr.Find(e.ID)
	if i < 0 {
		return tl, false, nil
	}
	*tr = tr.withRemoved(i)
	return tl, true, nil
}

func (e Move[P]) apply(tl Timeline) (Timeline, bool, error) {
	if !isFinite(e.Time) {
		return tl, false, invalid(errInvalidTime(e.Time))
	}
	tr := TrackOf[P](&tl)
	i := tr.Find(e.ID)
	if i < 0 {
		return tl, false, zerr.NewNotFound(string(KindOf[P]()), e.ID)
	}
	t := clamp(e.Time, 0, tl.Duration)
	if e.Snap {
		t = clamp(math.Round(t/SnapGrid)*SnapGrid, 0, tl.Duration)
	}
	kf := tr.Keyframes[i]
	if kf.Time == t {
		return tl, false, nil
	}
	kf.Time = t
	*tr = tr.withRemoved(i).withInserted(kf)
	return tl, true, nil
}

func (e Update[P]) apply(tl Timeline) (Timeline, bool, error) {
	tr := TrackOf[P](&tl)
	i := tr.Find(e.Keyframe.ID)
	if i < 0 {
		return tl, false, zerr.NewNotFound(string(KindOf[P]()), e.Keyframe.ID)
	}
	kf := e.Keyframe
	kf.Time = tr.Keyframes[i].Time
	if err := kf.validate(); err != nil {
		return tl, false, invalid(err)
	}
	*tr = tr.withReplaced(i, kf)
	return tl, true, nil
}

func (e ReplaceTrack[P]) apply(tl Timeline) (Timeline, bool, error) {
	kfs := make([]Keyframe[P], len(e.Keyframes))
	copy(kfs, e.Keyframes)
	seen := make(map[string]bool, len(kfs))
	for i := range kfs {
		if err := kfs[i].validate(); err != nil {
			return tl, false, invalid(err)
		}
		if kfs[i].ID == "" {
			kfs[i].ID = NewID()
		}
		if seen[kfs[i].ID] {
			return tl, false, zerr.NewInvalidEdit(fmt.Sprintf("duplicate %s keyframe id: %s", KindOf[P](), kfs[i].ID))
		}
		seen[kfs[i].ID] = true
	}
	sort.SliceStable(kfs, func(a, b int) bool { return kfs[a].Time < kfs[b].Time })

	tr := TrackOf[P](&tl)
	tr.Keyframes = kfs
	tl.Duration = math.Max(tl.Duration, tr.LastTime())
	return tl, true, nil
}

func (e SetTrim) apply(tl Timeline) (Timeline, bool, error) {
	if !isFinite(e.Start) || e.Start < 0 {
		return tl, false, invalid(errInvalidTime(e.Start))
	}
	if e.End != nil {
		if !isFinite(*e.End) || *e.End < e.Start {
			return tl, false, zerr.NewInvalidEdit(fmt.Sprintf("trim end %v is before start %v", *e.End, e.Start))
		}
		end := *e.End
		tl.TrimEnd = &end
	} else {
		tl.TrimEnd = nil
	}
	tl.TrimStart = e.Start
	return tl, true, nil
}

func (e Load) apply(tl Timeline) (Timeline, bool, error) {
	if err := e.Timeline.Validate(); err != nil {
		return tl, false, invalid(err)
	}
	return e.Timeline, true, nil
}

func (e Batch) apply(tl Timeline) (Timeline, bool, error) {
	next, changed := tl, false
	for _, sub := range e.Edits {
		var (
			c   bool
			err error
		)
		next, c, err = sub.apply(next)
		if err != nil {
			return tl, false, err
		}
		changed = changed || c
	}
	return next, changed, nil
}

func errInvalidTime(t float64) error {
	return fmt.Errorf("invalid keyframe time: %v", t)
}

func invalid(err error) error {
	e := zerr.NewInvalidEdit(err.Error())
	e.Err = err
	return e
}
