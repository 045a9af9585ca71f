package renderer

import (
	"math"

	"github.com/ivlev/screenzoom/internal/timeline"
)

// TransformState is the camera at a moment in time.
type TransformState struct {
	timeline.Transform `yaml:",inline"`
	ProgressVelocity   float64 `yaml:"progress_velocity"` // Rate of eased progress, 1/s. Zero outside a segment
}

// RippleState is the interpolated value of the ripple track.
type RippleState struct {
	timeline.Ripple  `yaml:",inline"`
	ProgressVelocity float64 `yaml:"progress_velocity"`
}

// CursorState is the interpolated cursor.
type CursorState struct {
	timeline.Cursor  `yaml:",inline"`
	ProgressVelocity float64 `yaml:"progress_velocity"`
}

// KeystrokeState is the interpolated value of the keystroke track.
type KeystrokeState struct {
	timeline.Keystroke `yaml:",inline"`
	ProgressVelocity   float64 `yaml:"progress_velocity"`
}

// ActiveRipple is a ripple that is visible at the evaluated time.
type ActiveRipple struct {
	ID       string          `yaml:"id"`
	Ripple   timeline.Ripple `yaml:"ripple"`
	Progress float64         `yaml:"progress"` // Eased, 0..1
}

// Alpha is the ripple's opacity: it fades out as it expands.
func (r ActiveRipple) Alpha() float64 {
	return (1 - r.Progress) * r.Ripple.Intensity
}

// ActiveKeystroke is a keystroke overlay that is visible at the evaluated time.
type ActiveKeystroke struct {
	ID        string             `yaml:"id"`
	Keystroke timeline.Keystroke `yaml:"keystroke"`
	Opacity   float64            `yaml:"opacity"`
}

// RenderState holds everything needed to draw one frame.
type RenderState struct {
	Time             float64           `yaml:"time"`
	Transform        TransformState    `yaml:"transform"`
	Ripple           RippleState       `yaml:"ripple"`
	Cursor           CursorState       `yaml:"cursor"`
	Keystroke        KeystrokeState    `yaml:"keystroke"`
	ActiveRipples    []ActiveRipple    `yaml:"active_ripples,omitempty"`
	ActiveKeystrokes []ActiveKeystroke `yaml:"active_keystrokes,omitempty"`
}

// Evaluate computes the render state of tl at time t. It keeps no state
// between calls, so scrubbing in any order is safe.
func Evaluate(tl timeline.Timeline, t float64) RenderState {
	st := RenderState{Time: t}

	v, vel := sample(tl.Transform, t, timeline.NeutralTransform, lerpTransform)
	st.Transform = TransformState{Transform: v, ProgressVelocity: vel}

	r, vel := sample(tl.Ripple, t, timeline.NeutralRipple, lerpRipple)
	st.Ripple = RippleState{Ripple: r, ProgressVelocity: vel}

	c, vel := sample(tl.Cursor, t, timeline.NeutralCursor, lerpCursor)
	st.Cursor = CursorState{Cursor: c, ProgressVelocity: vel}

	k, vel := sample(tl.Keystroke, t, timeline.NeutralKeystroke, lerpKeystroke)
	st.Keystroke = KeystrokeState{Keystroke: k, ProgressVelocity: vel}

	st.ActiveRipples = activeRipples(tl.Ripple, t)
	st.ActiveKeystrokes = activeKeystrokes(tl.Keystroke, t)
	return st
}

// sample finds the keyframes bounding t and blends them with the easing of
// the later one.
func sample[P timeline.Payload](tr timeline.Track[P], t float64, neutral P, blend func(a, b P, p float64) P) (P, float64) {
	n := len(tr.Keyframes)
	if !tr.Enabled || n == 0 {
		return neutral, 0
	}
	if t <= tr.Keyframes[0].Time {
		return tr.Keyframes[0].Value, 0
	}
	if t >= tr.Keyframes[n-1].Time {
		return tr.Keyframes[n-1].Value, 0
	}

	lo, hi, ok := tr.Bounding(t)
	if !ok {
		return tr.Keyframes[n-1].Value, 0
	}
	a, b := tr.Keyframes[lo], tr.Keyframes[hi]
	span := b.Time - a.Time
	if span <= 0 {
		return blend(a.Value, b.Value, b.Easing.Apply(0)), 0
	}
	p := (t - a.Time) / span
	return blend(a.Value, b.Value, b.Easing.Apply(p)), b.Easing.Derivative(p) / span
}

func lerpTransform(a, b timeline.Transform, p float64) timeline.Transform {
	return timeline.Transform{
		Zoom:   lerp(a.Zoom, b.Zoom, p),
		Center: a.Center.Lerp(b.Center, p),
	}
}

func lerpRipple(a, b timeline.Ripple, p float64) timeline.Ripple {
	out := step(a, b, p)
	out.Position = a.Position.Lerp(b.Position, p)
	out.Intensity = lerp(a.Intensity, b.Intensity, p)
	out.Duration = lerp(a.Duration, b.Duration, p)
	return out
}

func lerpCursor(a, b timeline.Cursor, p float64) timeline.Cursor {
	out := step(a, b, p)
	out.Scale = lerp(a.Scale, b.Scale, p)
	if a.Position != nil && b.Position != nil {
		pos := a.Position.Lerp(*b.Position, p)
		out.Position = &pos
	}
	if a.Velocity != nil && b.Velocity != nil {
		v := lerp(*a.Velocity, *b.Velocity, p)
		out.Velocity = &v
	}
	if a.Direction != nil && b.Direction != nil {
		d := lerpAngle(*a.Direction, *b.Direction, p)
		out.Direction = &d
	}
	return out
}

func lerpKeystroke(a, b timeline.Keystroke, p float64) timeline.Keystroke {
	out := step(a, b, p)
	out.Duration = lerp(a.Duration, b.Duration, p)
	out.FadeIn = lerp(a.FadeIn, b.FadeIn, p)
	out.FadeOut = lerp(a.FadeOut, b.FadeOut, p)
	out.Position = a.Position.Lerp(b.Position, p)
	return out
}

// step picks the discrete fields: the later value wins from the midpoint on.
func step[P any](a, b P, p float64) P {
	if p >= 0.5 {
		return b
	}
	return a
}

// activeRipples lists ripples whose animation covers t.
func activeRipples(tr timeline.Track[timeline.Ripple], t float64) []ActiveRipple {
	if !tr.Enabled {
		return nil
	}
	var out []ActiveRipple
	for _, kf := range tr.Keyframes {
		if kf.Time > t {
			break
		}
		d := kf.Value.Duration
		if d <= 0 || t > kf.Time+d {
			continue
		}
		out = append(out, ActiveRipple{
			ID:       kf.ID,
			Ripple:   kf.Value,
			Progress: kf.Easing.Apply((t - kf.Time) / d),
		})
	}
	return out
}

// activeKeystrokes lists overlays visible at t with their fade opacity.
func activeKeystrokes(tr timeline.Track[timeline.Keystroke], t float64) []ActiveKeystroke {
	if !tr.Enabled {
		return nil
	}
	var out []ActiveKeystroke
	for _, kf := range tr.Keyframes {
		if kf.Time > t {
			break
		}
		if t > kf.Time+kf.Value.Duration {
			continue
		}
		if op := kf.Value.Opacity(t - kf.Time); op > 0 {
			out = append(out, ActiveKeystroke{ID: kf.ID, Keystroke: kf.Value, Opacity: op})
		}
	}
	return out
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// lerpAngle interpolates along the shorter arc and returns a value in (-π, π].
func lerpAngle(a, b, t float64) float64 {
	d := math.Mod(b-a, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d < -math.Pi {
		d += 2 * math.Pi
	}
	r := math.Mod(a+d*t, 2*math.Pi)
	if r > math.Pi {
		r -= 2 * math.Pi
	} else if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}
