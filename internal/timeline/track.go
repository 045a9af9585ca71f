package timeline

import (
	"fmt"
	"sort"

	"github.com/ivlev/screenzoom/internal/easing"
)

// Kind identifies one of the four timeline tracks.
type Kind string

const (
	KindTransform Kind = "transform"
	KindRipple    Kind = "ripple"
	KindCursor    Kind = "cursor"
	KindKeystroke Kind = "keystroke"
)

// Kinds lists every track kind in document order.
var Kinds = []Kind{KindTransform, KindRipple, KindCursor, KindKeystroke}

// KindOf returns the track kind that holds payloads of type P.
func KindOf[P Payload]() Kind {
	var zero P
	switch any(zero).(type) {
	case Transform:
		return KindTransform
	case Ripple:
		return KindRipple
	case Cursor:
		return KindCursor
	default:
		return KindKeystroke
	}
}

// Keyframe is a timestamped payload. Easing shapes the segment ending at this keyframe.
type Keyframe[P Payload] struct {
	ID     string       `yaml:"id"`
	Time   float64      `yaml:"time"`
	Value  P            `yaml:"value"`
	Easing easing.Curve `yaml:"easing"`
}

// Track is an ordered sequence of keyframes of one kind.
type Track[P Payload] struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Enabled   bool          `yaml:"enabled"`
	Keyframes []Keyframe[P] `yaml:"keyframes"`
}

func newTrack[P Payload](name string) Track[P] {
	return Track[P]{
		ID:      "track-" + string(KindOf[P]()),
		Name:    name,
		Enabled: true,
	}
}

func (tr Track[P]) Len() int { return len(tr.Keyframes) }

// Bounding returns the keyframes around t: hi is the first index with
// time >= t and lo = hi-1. ok is false when t is outside the span
// (lo < 0 or hi == Len()).
func (tr Track[P]) Bounding(t float64) (lo, hi int, ok bool) {
	hi = sort.Search(len(tr.Keyframes), func(i int) bool {
		return tr.Keyframes[i].Time >= t
	})
	lo = hi - 1
	return lo, hi, lo >= 0 && hi < len(tr.Keyframes)
}

// Find returns the index of the keyframe with id, or -1.
func (tr Track[P]) Find(id string) int {
	for i, kf := range tr.Keyframes {
		if kf.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the keyframe with id.
func (tr Track[P]) Get(id string) (Keyframe[P], bool) {
	if i := tr.Find(id); i >= 0 {
		return tr.Keyframes[i], true
	}
	return Keyframe[P]{}, false
}

// Sorted reports whether keyframe times are non-decreasing.
func (tr Track[P]) Sorted() bool {
	for i := 1; i < len(tr.Keyframes); i++ {
		if tr.Keyframes[i].Time < tr.Keyframes[i-1].Time {
			return false
		}
	}
	return true
}

// LastTime returns the time of the last keyframe, or 0 for an empty track.
func (tr Track[P]) LastTime() float64 {
	if n := len(tr.Keyframes); n > 0 {
		return tr.Keyframes[n-1].Time
	}
	return 0
}

// withInserted returns a copy of the track with kf placed after any keyframes of equal time.
func (tr Track[P]) withInserted(kf Keyframe[P]) Track[P] {
	pos := sort.Search(len(tr.Keyframes), func(i int) bool {
		return tr.Keyframes[i].Time > kf.Time
	})
	kfs := make([]Keyframe[P], 0, len(tr.Keyframes)+1)
	kfs = append(kfs, tr.Keyframes[:pos]...)
	kfs = append(kfs, kf)
	kfs = append(kfs, tr.Keyframes[pos:]...)
	tr.Keyframes = kfs
	return tr
}

func (tr Track[P]) withRemoved(i int) Track[P] {
	kfs := make([]Keyframe[P], 0, len(tr.Keyframes)-1)
	kfs = append(kfs, tr.Keyframes[:i]...)
	kfs = append(kfs, tr.Keyframes[i+1:]...)
	tr.Keyframes = kfs
	return tr
}

func (tr Track[P]) withReplaced(i int, kf Keyframe[P]) Track[P] {
	kfs := make([]Keyframe[P], len(tr.Keyframes))
	copy(kfs, tr.Keyframes)
	kfs[i] = kf
	tr.Keyframes = kfs
	return tr
}

// validate checks every keyframe and that IDs are present and unique, so
// edits addressing a keyframe by ID are never ambiguous.
func (tr Track[P]) validate() error {
	seen := make(map[string]bool, len(tr.Keyframes))
	for i, kf := range tr.Keyframes {
		if err := kf.validate(); err != nil {
			return err
		}
		if kf.ID == "" {
			return fmt.Errorf("keyframe %d has no id", i)
		}
		if seen[kf.ID] {
			return fmt.Errorf("duplicate keyframe id: %s", kf.ID)
		}
		seen[kf.ID] = true
	}
	return nil
}

func (kf Keyframe[P]) validate() error {
	if !isFinite(kf.Time) || kf.Time < 0 {
		return errInvalidTime(kf.Time)
	}
	if err := kf.Easing.Validate(); err != nil {
		return err
	}
	return kf.Value.validate()
}
