package timeline

import (
	"fmt"
	"math"
)

// Point is a normalized coordinate (0-1, top-left origin).
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Center is the middle of the frame.
var Center = Point{X: 0.5, Y: 0.5}

func (p Point) Clamped() Point {
	return Point{X: clamp(p.X, 0, 1), Y: clamp(p.Y, 0, 1)}
}

func (p Point) Distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

func (p Point) Lerp(o Point, t float64) Point {
	return Point{X: lerp(p.X, o.X, t), Y: lerp(p.Y, o.Y, t)}
}

func (p Point) finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Payload is the closed set of per-track keyframe values.
type Payload interface {
	Transform | Ripple | Cursor | Keystroke
	validate() error
}

// Transform is a pan/zoom camera state.
type Transform struct {
	Zoom   float64 `yaml:"zoom"`
	Center Point   `yaml:"center"`
}

// NeutralTransform shows the whole frame.
var NeutralTransform = Transform{Zoom: 1, Center: Center}

func (v Transform) validate() error {
	if !isFinite(v.Zoom) || v.Zoom <= 0 {
		return fmt.Errorf("transform zoom must be a positive number, got %v", v.Zoom)
	}
	if !v.Center.finite() {
		return fmt.Errorf("transform center is not finite")
	}
	return nil
}

// ClickType is the kind of click a ripple visualizes.
type ClickType string

const (
	ClickLeft   ClickType = "left"
	ClickRight  ClickType = "right"
	ClickDouble ClickType = "double"
	ClickMiddle ClickType = "middle"
)

// RippleColor is a tagged color: one of the two presets or a custom RGBA.
type RippleColor struct {
	Type string  `yaml:"type"`
	R    float64 `yaml:"r,omitempty"`
	G    float64 `yaml:"g,omitempty"`
	B    float64 `yaml:"b,omitempty"`
	A    float64 `yaml:"a,omitempty"`
}

const (
	ColorLeftClick  = "leftClick"
	ColorRightClick = "rightClick"
	ColorCustom     = "custom"
)

var (
	LeftClickColor  = RippleColor{Type: ColorLeftClick}
	RightClickColor = RippleColor{Type: ColorRightClick}
)

func CustomColor(r, g, b, a float64) RippleColor {
	return RippleColor{Type: ColorCustom, R: r, G: g, B: b, A: a}
}

// RGBA returns the color components in 0..1.
func (c RippleColor) RGBA() (r, g, b, a float64) {
	switch c.Type {
	case ColorRightClick:
		return 1.0, 0.5, 0.2, 0.6
	case ColorCustom:
		return c.R, c.G, c.B, c.A
	default:
		return 0.2, 0.5, 1.0, 0.6
	}
}

// Ripple is click feedback drawn at a position for Duration seconds.
type Ripple struct {
	Position  Point       `yaml:"position"`
	Intensity float64     `yaml:"intensity"`
	Duration  float64     `yaml:"duration"`
	Click     ClickType   `yaml:"click"`
	Color     RippleColor `yaml:"color"`
}

// NeutralRipple is an invisible ripple.
var NeutralRipple = Ripple{Position: Center, Click: ClickLeft, Color: LeftClickColor}

func (v Ripple) validate() error {
	if !v.Position.finite() || !isFinite(v.Intensity) || !isFinite(v.Duration) {
		return fmt.Errorf("ripple has non-finite fields")
	}
	if v.Duration < 0 {
		return fmt.Errorf("ripple duration must be non-negative, got %v", v.Duration)
	}
	switch v.Click {
	case ClickLeft, ClickRight, ClickDouble, ClickMiddle:
	default:
		return fmt.Errorf("unknown click type: %q", v.Click)
	}
	switch v.Color.Type {
	case ColorLeftClick, ColorRightClick, ColorCustom:
	default:
		return fmt.Errorf("unknown ripple color: %q", v.Color.Type)
	}
	return nil
}

// CursorStyle is the pointer shape drawn over the recording.
type CursorStyle string

const (
	CursorArrow       CursorStyle = "arrow"
	CursorPointer     CursorStyle = "pointer"
	CursorIBeam       CursorStyle = "iBeam"
	CursorCrosshair   CursorStyle = "crosshair"
	CursorOpenHand    CursorStyle = "openHand"
	CursorClosedHand  CursorStyle = "closedHand"
	CursorContextMenu CursorStyle = "contextMenu"
)

// Cursor controls pointer rendering. A nil Position means the raw pointer path is used.
type Cursor struct {
	Position  *Point      `yaml:"position,omitempty"`
	Style     CursorStyle `yaml:"style"`
	Visible   bool        `yaml:"visible"`
	Scale     float64     `yaml:"scale"`
	Velocity  *float64    `yaml:"velocity,omitempty"`
	Direction *float64    `yaml:"direction,omitempty"`
}

// NeutralCursor is a visible arrow at the default scale.
var NeutralCursor = Cursor{Style: CursorArrow, Visible: true, Scale: 2.5}

func (v Cursor) validate() error {
	if !isFinite(v.Scale) || v.Scale <= 0 {
		return fmt.Errorf("cursor scale must be a positive number, got %v", v.Scale)
	}
	if v.Position != nil && !v.Position.finite() {
		return fmt.Errorf("cursor position is not finite")
	}
	if (v.Velocity != nil && !isFinite(*v.Velocity)) || (v.Direction != nil && !isFinite(*v.Direction)) {
		return fmt.Errorf("cursor motion is not finite")
	}
	switch v.Style {
	case CursorArrow, CursorPointer, CursorIBeam, CursorCrosshair, CursorOpenHand, CursorClosedHand, CursorContextMenu:
	default:
		return fmt.Errorf("unknown cursor style: %q", v.Style)
	}
	return nil
}

// Keystroke is an on-screen text overlay such as "Ctrl+C".
type Keystroke struct {
	Text     string  `yaml:"text"`
	Duration float64 `yaml:"duration"`
	FadeIn   float64 `yaml:"fadeIn"`
	FadeOut  float64 `yaml:"fadeOut"`
	Position Point   `yaml:"position"`
}

// Keystroke overlay defaults.
const (
	DefaultKeystrokeDuration = 1.5
	DefaultKeystrokeFadeIn   = 0.15
	DefaultKeystrokeFadeOut  = 0.3
)

// KeystrokePosition is the default overlay anchor (bottom center).
var KeystrokePosition = Point{X: 0.5, Y: 0.95}

// NeutralKeystroke shows nothing.
var NeutralKeystroke = Keystroke{
	FadeIn:   DefaultKeystrokeFadeIn,
	FadeOut:  DefaultKeystrokeFadeOut,
	Position: KeystrokePosition,
}

func (v Keystroke) validate() error {
	for _, f := range []float64{v.Duration, v.FadeIn, v.FadeOut} {
		if !isFinite(f) || f < 0 {
			return fmt.Errorf("keystroke durations must be non-negative numbers")
		}
	}
	if !v.Position.finite() {
		return fmt.Errorf("keystroke position is not finite")
	}
	return nil
}

// Opacity returns the overlay opacity at local time elapsed since the keyframe started.
func (v Keystroke) Opacity(elapsed float64) float64 {
	if elapsed < 0 || elapsed > v.Duration {
		return 0
	}
	remaining := v.Duration - elapsed
	if v.FadeIn > 0 && elapsed < v.FadeIn {
		return elapsed / v.FadeIn
	}
	if v.FadeOut > 0 && remaining < v.FadeOut {
		return remaining / v.FadeOut
	}
	return 1
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
