package director

import (
	"math"

	"github.com/ivlev/screenzoom/internal/easing"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// minStep separates keyframes that would otherwise share a time.
const minStep = 0.001

type zoomStop struct {
	time   float64
	value  timeline.Transform
	easing easing.Curve
}

// transformKeyframes emits the camera path for sessions. centers[i] is the
// resolved pan center of sessions[i].
//
// Per session: an optional neutral lead-in, a zoom-in at the session start,
// holds at the middle and at the end of the dwell, then a zoom-out back to
// the full frame. The zoom-out never starts before the dwell ends.
// When the next session starts before this zoom-out could finish, the
// zoom-out moves to the middle of the gap and the next lead-in is dropped.
func transformKeyframes(sessions []Session, centers []timeline.Point, z ZoomSettings, duration float64) []timeline.Keyframe[timeline.Transform] {
	var stops []zoomStop
	prevOut := math.Inf(-1)
	skipLeadIn := false

	for i := range sessions {
		s := &sessions[i]
		if s.Start > duration {
			break
		}
		zoom := s.Zoom(z)
		target := timeline.Transform{Zoom: zoom, Center: ClampCenter(centers[i], zoom)}

		dwellEnd := math.Max(s.End, s.Start+z.MinDwell)
		var next *Session
		if i+1 < len(sessions) {
			next = &sessions[i+1]
			dwellEnd = math.Min(dwellEnd, next.Start)
		}

		if !skipLeadIn {
			if lead := s.Start - z.Transition; lead > 0 && lead > prevOut {
				stops = append(stops, zoomStop{lead, timeline.NeutralTransform, easing.Linear()})
			}
		}
		stops = append(stops,
			zoomStop{s.Start, target, easing.EaseInOut()},
			zoomStop{(s.Start + dwellEnd) / 2, target, easing.Linear()},
			zoomStop{dwellEnd, target, easing.Linear()},
		)

		out := dwellEnd + z.Transition
		skipLeadIn = false
		if next != nil && next.Start < out+z.Transition {
			out = (dwellEnd + next.Start) / 2
			skipLeadIn = true
		}
		stops = append(stops, zoomStop{out, timeline.NeutralTransform, easing.EaseOut()})
		prevOut = out
	}

	stops = monotonic(stops, duration)

	kfs := make([]timeline.Keyframe[timeline.Transform], len(stops))
	for i, st := range stops {
		kfs[i] = timeline.Keyframe[timeline.Transform]{
			ID:     timeline.GeneratedID(timeline.KindTransform, i, st.time),
			Time:   st.time,
			Value:  st.value,
			Easing: st.easing,
		}
	}
	return kfs
}

// monotonic nudges equal or backwards times forward and folds every stop
// past duration onto duration, keeping the latest one there.
func monotonic(stops []zoomStop, duration float64) []zoomStop {
	for i := 1; i < len(stops); i++ {
		if stops[i].time <= stops[i-1].time {
			stops[i].time = stops[i-1].time + minStep
		}
	}
	out := stops[:0]
	for _, st := range stops {
		st.time = math.Max(0, math.Min(st.time, duration))
		if n := len(out); n > 0 && st.time <= out[n-1].time {
			out[n-1] = st
			continue
		}
		out = append(out, st)
	}
	return out
}
