// Package easing maps linear progress in [0,1] to eased progress.
// All functions are pure and safe for concurrent use.
package easing

import (
	"fmt"
	"math"
)

// Kind identifies an easing function.
type Kind string

const (
	KindLinear      Kind = "linear"
	KindEaseIn      Kind = "easeIn"
	KindEaseOut     Kind = "easeOut"
	KindEaseInOut   Kind = "easeInOut"
	KindCubicBezier Kind = "cubicBezier"
	KindSpring      Kind = "spring"
)

// Curve is an easing function plus its parameters.
// Control points are only meaningful for KindCubicBezier.
type Curve struct {
	Kind Kind    `yaml:"type"`
	P1X  float64 `yaml:"p1x,omitempty"`
	P1Y  float64 `yaml:"p1y,omitempty"`
	P2X  float64 `yaml:"p2x,omitempty"`
	P2Y  float64 `yaml:"p2y,omitempty"`
}

const (
	newtonIterations = 10
	newtonEpsilon    = 1e-4

	// springOmega is the natural frequency of the unit-duration spring:
	// 2π / (0.5 * 1s).
	springOmega = 4 * math.Pi
)

func Linear() Curve    { return Curve{Kind: KindLinear} }
func EaseIn() Curve    { return Curve{Kind: KindEaseIn} }
func EaseOut() Curve   { return Curve{Kind: KindEaseOut} }
func EaseInOut() Curve { return Curve{Kind: KindEaseInOut} }
func Spring() Curve    { return Curve{Kind: KindSpring} }

// CubicBezier returns a CSS-style cubic-bezier(p1x, p1y, p2x, p2y) curve.
func CubicBezier(p1x, p1y, p2x, p2y float64) Curve {
	return Curve{Kind: KindCubicBezier, P1X: p1x, P1Y: p1y, P2X: p2x, P2Y: p2y}
}

// CSS timing-function presets.
func CSSEase() Curve      { return CubicBezier(0.25, 0.1, 0.25, 1.0) }
func CSSEaseIn() Curve    { return CubicBezier(0.42, 0.0, 1.0, 1.0) }
func CSSEaseOut() Curve   { return CubicBezier(0.0, 0.0, 0.58, 1.0) }
func CSSEaseInOut() Curve { return CubicBezier(0.42, 0.0, 0.58, 1.0) }

type bezierDoc struct {
	Kind Kind    `yaml:"type"`
	P1X  float64 `yaml:"p1x"`
	P1Y  float64 `yaml:"p1y"`
	P2X  float64 `yaml:"p2x"`
	P2Y  float64 `yaml:"p2y"`
}

// MarshalYAML writes every control point of a bezier curve, zeros included,
// and only the type for the other kinds.
func (c Curve) MarshalYAML() (any, error) {
	if c.Kind == KindCubicBezier {
		return bezierDoc(c), nil
	}
	return struct {
		Kind Kind `yaml:"type"`
	}{c.Kind}, nil
}

// ParseKind validates a kind name from a persisted document.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLinear, KindEaseIn, KindEaseOut, KindEaseInOut, KindCubicBezier, KindSpring:
		return k, nil
	}
	return "", fmt.Errorf("unknown easing kind: %q", s)
}

// Validate reports curves that cannot be evaluated deterministically.
func (c Curve) Validate() error {
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if c.Kind == KindCubicBezier {
		for _, v := range []float64{c.P1X, c.P1Y, c.P2X, c.P2Y} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("cubicBezier control point is not finite")
			}
		}
	}
	return nil
}

// Apply returns the eased progress for t. The input is clamped to [0,1].
// Every kind except spring returns a value in [0,1].
func (c Curve) Apply(t float64) float64 {
	t = clamp01(t)
	switch c.Kind {
	case KindEaseIn:
		return t * t
	case KindEaseOut:
		return t * (2 - t)
	case KindEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	case KindCubicBezier:
		s := solveBezierX(t, c.P1X, c.P2X)
		return clamp01(bezier(s, c.P1Y, c.P2Y))
	case KindSpring:
		return 1 - (1+springOmega*t)*math.Exp(-springOmega*t)
	default:
		return t
	}
}

// Derivative returns d(Apply)/dt at t, clamped to [0,1].
func (c Curve) Derivative(t float64) float64 {
	t = clamp01(t)
	switch c.Kind {
	case KindEaseIn:
		return 2 * t
	case KindEaseOut:
		return 2 - 2*t
	case KindEaseInOut:
		if t < 0.5 {
			return 4 * t
		}
		return 4 - 4*t
	case KindCubicBezier:
		s := solveBezierX(t, c.P1X, c.P2X)
		dx := bezierDerivative(s, c.P1X, c.P2X)
		if math.Abs(dx) < newtonEpsilon {
			return 1
		}
		return bezierDerivative(s, c.P1Y, c.P2Y) / dx
	case KindSpring:
		return springOmega * springOmega * t * math.Exp(-springOmega*t)
	default:
		return 1
	}
}

// String returns a human-readable name.
func (c Curve) String() string {
	switch c.Kind {
	case KindLinear:
		return "Linear"
	case KindEaseIn:
		return "Ease In"
	case KindEaseOut:
		return "Ease Out"
	case KindEaseInOut:
		return "Ease In Out"
	case KindCubicBezier:
		return fmt.Sprintf("Cubic Bezier(%g, %g, %g, %g)", c.P1X, c.P1Y, c.P2X, c.P2Y)
	case KindSpring:
		return "Spring"
	}
	return string(c.Kind)
}

// bezier evaluates one axis of a cubic bezier with endpoints fixed at 0 and 1.
func bezier(s, p1, p2 float64) float64 {
	ms := 1 - s
	return 3*ms*ms*s*p1 + 3*ms*s*s*p2 + s*s*s
}

func bezierDerivative(s, p1, p2 float64) float64 {
	ms := 1 - s
	return 3*ms*ms*p1 + 6*ms*s*(p2-p1) + 3*s*s*(1-p2)
}

// solveBezierX finds s with x(s) = t using Newton-Raphson.
func solveBezierX(t, p1x, p2x float64) float64 {
	s := t
	for i := 0; i < newtonIterations; i++ {
		diff := bezier(s, p1x, p2x) - t
		if math.Abs(diff) < newtonEpsilon {
			break
		}
		d := bezierDerivative(s, p1x, p2x)
		if math.Abs(d) < newtonEpsilon {
			break
		}
		s -= diff / d
	}
	return s
}

func clamp01(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
