package director

import (
	"sort"

	"github.com/ivlev/screenzoom/internal/activity"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// ActivityKind classifies a point of interest.
type ActivityKind string

const (
	ActivityClick     ActivityKind = "click"
	ActivityDragStart ActivityKind = "drag_start"
	ActivityDragEnd   ActivityKind = "drag_end"
	ActivityTyping    ActivityKind = "typing"
)

// Activity is a weighted point of interest derived from the recording.
type Activity struct {
	Time     float64
	Position timeline.Point
	Weight   float64
	Kind     ActivityKind
}

// burst is a run of plain key-downs without gaps longer than the typing
// timeout, or a single modifier chord.
type burst struct {
	Start float64
	End   float64
	Keys  []activity.Key
	Chord bool
}

// keyBursts splits key-downs into typing bursts and chords. A chord on a
// displayable key ends the current burst; chords on keys without a display
// name are skipped and break nothing.
func keyBursts(keys []activity.Key, timeout float64) []burst {
	var bursts []burst
	open := false
	for _, k := range keys {
		if k.Action != activity.KeyDown {
			continue
		}
		if k.Modifiers.Any() {
			if _, ok := KeyDisplayName(k.KeyCode, k.Character); !ok {
				continue
			}
			bursts = append(bursts, burst{Start: k.Time, End: k.Time, Keys: []activity.Key{k}, Chord: true})
			open = false
			continue
		}
		if n := len(bursts); open && k.Time-bursts[n-1].End <= timeout {
			bursts[n-1].End = k.Time
			bursts[n-1].Keys = append(bursts[n-1].Keys, k)
			continue
		}
		bursts = append(bursts, burst{Start: k.Time, End: k.Time, Keys: []activity.Key{k}})
		open = true
	}
	return bursts
}

// pointerAt is the last pointer sample at or before t, the first sample when
// t precedes all of them, or the frame center without samples.
func pointerAt(rec *activity.Recording, t float64) timeline.Point {
	if p, ok := rec.PositionAt(t); ok {
		return p
	}
	if len(rec.Positions) > 0 {
		return rec.Positions[0].Position
	}
	return timeline.Center
}

// CollectActivities merges clicks, drags and typing bursts into one
// time-ordered sequence.
func CollectActivities(rec *activity.Recording, s Settings) []Activity {
	var out []Activity
	for _, c := range rec.Clicks {
		if c.Button != activity.ButtonLeft {
			continue
		}
		out = append(out, Activity{Time: c.Time, Position: c.Position, Weight: s.Zoom.ClickWeight, Kind: ActivityClick})
	}
	for _, d := range rec.Drags {
		out = append(out,
			Activity{Time: d.StartTime, Position: d.StartPosition, Weight: s.Zoom.DragWeight, Kind: ActivityDragStart},
			Activity{Time: d.EndTime, Position: d.EndPosition, Weight: s.Zoom.DragWeight, Kind: ActivityDragEnd},
		)
	}
	for _, b := range keyBursts(rec.Keyboard, s.TypingTimeout) {
		if b.Chord {
			continue
		}
		pos := pointerAt(rec, b.Start)
		out = append(out, Activity{Time: b.Start, Position: pos, Weight: s.Zoom.TypingWeight, Kind: ActivityTyping})
		if b.End-b.Start > 0.5 {
			out = append(out, Activity{Time: b.End, Position: pos, Weight: s.Zoom.TypingWeight, Kind: ActivityTyping})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
