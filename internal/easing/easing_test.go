package easing

import (
	"math"
	"testing"
)

func TestApplyGoldenValues(t *testing.T) {
	tests := []struct {
		name  string
		curve Curve
		t     float64
		want  float64
	}{
		{"linear mid", Linear(), 0.5, 0.5},
		{"easeIn mid", EaseIn(), 0.5, 0.25},
		{"easeIn quarter", EaseIn(), 0.25, 0.0625},
		{"easeOut mid", EaseOut(), 0.5, 0.75},
		{"easeOut quarter", EaseOut(), 0.25, 0.4375},
		{"easeInOut mid", EaseInOut(), 0.5, 0.5},
		{"easeInOut quarter", EaseInOut(), 0.25, 0.125},
		{"easeInOut three quarters", EaseInOut(), 0.75, 0.875},
		{"css easeInOut mid", CSSEaseInOut(), 0.5, 0.5},
		{"css ease start", CSSEase(), 0, 0},
		{"css ease end", CSSEase(), 1, 1},
		{"spring start", Spring(), 0, 0},
		{"spring mid", Spring(), 0.5, 1 - (1+2*math.Pi)*math.Exp(-2*math.Pi)},
		{"spring end", Spring(), 1, 1 - (1+4*math.Pi)*math.Exp(-4*math.Pi)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.curve.Apply(tt.t)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("%s.Apply(%v) = %.12f, want %.12f", tt.curve, tt.t, got, tt.want)
			}
		})
	}
}

func TestApplyClampsInput(t *testing.T) {
	curves := []Curve{Linear(), EaseIn(), EaseOut(), EaseInOut(), CSSEase(), Spring()}
	for _, c := range curves {
		if got, want := c.Apply(-3), c.Apply(0); got != want {
			t.Errorf("%s: Apply(-3) = %v, want Apply(0) = %v", c, got, want)
		}
		if got, want := c.Apply(7), c.Apply(1); got != want {
			t.Errorf("%s: Apply(7) = %v, want Apply(1) = %v", c, got, want)
		}
		if got := c.Apply(math.NaN()); got != c.Apply(0) {
			t.Errorf("%s: Apply(NaN) = %v, want %v", c, got, c.Apply(0))
		}
	}
}

func TestApplyMonotonicAndBounded(t *testing.T) {
	curves := []Curve{Linear(), EaseIn(), EaseOut(), EaseInOut(), CSSEase(), CSSEaseIn(), CSSEaseOut(), CSSEaseInOut()}
	for _, c := range curves {
		prev := c.Apply(0)
		for i := 1; i <= 200; i++ {
			v := c.Apply(float64(i) / 200)
			if v < 0 || v > 1 {
				t.Fatalf("%s: value %v out of [0,1] at step %d", c, v, i)
			}
			if v+1e-4 < prev {
				t.Fatalf("%s: not monotonic at step %d: %v < %v", c, i, v, prev)
			}
			prev = v
		}
	}
}

func TestDerivativeMatchesFiniteDifference(t *testing.T) {
	curves := []Curve{Linear(), EaseIn(), EaseOut(), EaseInOut(), Spring()}
	const h = 1e-6
	for _, c := range curves {
		for _, x := range []float64{0.1, 0.3, 0.6, 0.9} {
			numeric := (c.Apply(x+h) - c.Apply(x-h)) / (2 * h)
			closed := c.Derivative(x)
			if math.Abs(numeric-closed) > 1e-3 {
				t.Errorf("%s: Derivative(%v) = %v, finite difference %v", c, x, closed, numeric)
			}
		}
	}
}

func TestBezierDerivativeAtSymmetryPoint(t *testing.T) {
	// x(0.5) = 0.5 exactly for ease-in-out, so dy/dx = 1.5 / 0.87.
	got := CSSEaseInOut().Derivative(0.5)
	want := 1.5 / 0.87
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Derivative(0.5) = %v, want %v", got, want)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"linear", false},
		{"easeInOut", false},
		{"cubicBezier", false},
		{"spring", false},
		{"bounce", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRejectsNonFiniteBezier(t *testing.T) {
	if err := CubicBezier(0.1, math.NaN(), 0.2, 1).Validate(); err == nil {
		t.Error("Expected error for NaN control point")
	}
	if err := CSSEase().Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
