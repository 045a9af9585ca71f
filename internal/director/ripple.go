package director

import (
	"github.com/ivlev/screenzoom/internal/activity"
	"github.com/ivlev/screenzoom/internal/easing"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// clickRipple returns the default ripple payload for a click.
func clickRipple(c activity.Click) timeline.Ripple {
	r := timeline.Ripple{
		Position:  c.Position,
		Intensity: 0.8,
		Duration:  0.4,
		Click:     timeline.ClickLeft,
		Color:     timeline.LeftClickColor,
	}
	switch {
	case c.Double:
		r.Click = timeline.ClickDouble
		r.Intensity = 1.0
		r.Duration = 0.5
	case c.Button == activity.ButtonRight:
		r.Click = timeline.ClickRight
		r.Color = timeline.RightClickColor
	case c.Button == activity.ButtonMiddle:
		r.Click = timeline.ClickMiddle
		r.Intensity = 0.6
	}
	return r
}

// rippleKeyframes emits one ripple per click.
func rippleKeyframes(clicks []activity.Click, s RippleSettings) []timeline.Keyframe[timeline.Ripple] {
	var kfs []timeline.Keyframe[timeline.Ripple]
	last := 0.0
	for _, c := range clicks {
		if s.MinInterval > 0 && len(kfs) > 0 && c.Time-last < s.MinInterval {
			continue
		}
		kfs = append(kfs, timeline.Keyframe[timeline.Ripple]{
			ID:     timeline.GeneratedID(timeline.KindRipple, len(kfs), c.Time),
			Time:   c.Time,
			Value:  clickRipple(c),
			Easing: easing.EaseOut(),
		})
		last = c.Time
	}
	return kfs
}
