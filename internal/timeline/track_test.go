package timeline

import (
	"testing"

	"github.com/ivlev/screenzoom/internal/easing"
)

func transformKF(id string, t, zoom float64) Keyframe[Transform] {
	return Keyframe[Transform]{
		ID:     id,
		Time:   t,
		Value:  Transform{Zoom: zoom, Center: Center},
		Easing: easing.Linear(),
	}
}

func TestBounding(t *testing.T) {
	tr := newTrack[Transform]("Transform")
	tr.Keyframes = []Keyframe[Transform]{
		transformKF("a", 0, 1),
		transformKF("b", 1, 2),
		transformKF("c", 1, 3),
		transformKF("d", 2, 1),
	}

	tests := []struct {
		t      float64
		lo, hi int
		ok     bool
	}{
		{-1, -1, 0, false},
		{0, -1, 0, false},
		{0.5, 0, 1, true},
		{1, 0, 1, true},
		{1.5, 2, 3, true},
		{2, 2, 3, true},
		{3, 3, 4, false},
	}

	for _, tt := range tests {
		lo, hi, ok := tr.Bounding(tt.t)
		if lo != tt.lo || hi != tt.hi || ok != tt.ok {
			t.Errorf("Bounding(%v) = (%d, %d, %v), want (%d, %d, %v)", tt.t, lo, hi, ok, tt.lo, tt.hi, tt.ok)
		}
	}
}

func TestWithInsertedKeepsInsertionOrderForEqualTimes(t *testing.T) {
	tr := newTrack[Transform]("Transform")
	tr = tr.withInserted(transformKF("a", 1, 1))
	tr = tr.withInserted(transformKF("b", 0, 1))
	tr = tr.withInserted(transformKF("c", 1, 1))
	tr = tr.withInserted(transformKF("d", 0.5, 1))

	want := []string{"b", "d", "a", "c"}
	for i, id := range want {
		if tr.Keyframes[i].ID != id {
			t.Fatalf("position %d: got %s, want %s (order %v)", i, tr.Keyframes[i].ID, id, ids(tr))
		}
	}
}

func TestTrimHelpers(t *testing.T) {
	end := 8.0
	past := 20.0
	tests := []struct {
		name      string
		tl        Timeline
		start     float64
		end       float64
		trimmed   float64
		isTrimmed bool
	}{
		{"untrimmed", Timeline{Duration: 10}, 0, 10, 10, false},
		{"both ends", Timeline{Duration: 10, TrimStart: 2, TrimEnd: &end}, 2, 8, 6, true},
		{"end past duration", Timeline{Duration: 10, TrimEnd: &past}, 0, 10, 10, true},
		{"negative start", Timeline{Duration: 10, TrimStart: -3}, 0, 10, 10, false},
		{"start past end", Timeline{Duration: 10, TrimStart: 9, TrimEnd: &end}, 9, 8, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tl.EffectiveTrimStart(); got != tt.start {
				t.Errorf("EffectiveTrimStart() = %v, want %v", got, tt.start)
			}
			if got := tt.tl.EffectiveTrimEnd(); got != tt.end {
				t.Errorf("EffectiveTrimEnd() = %v, want %v", got, tt.end)
			}
			if got := tt.tl.TrimmedDuration(); got != tt.trimmed {
				t.Errorf("TrimmedDuration() = %v, want %v", got, tt.trimmed)
			}
			if got := tt.tl.IsTrimmed(); got != tt.isTrimmed {
				t.Errorf("IsTrimmed() = %v, want %v", got, tt.isTrimmed)
			}
		})
	}
}

func TestGeneratedIDIsDeterministic(t *testing.T) {
	a := GeneratedID(KindRipple, 3, 1.25)
	b := GeneratedID(KindRipple, 3, 1.25)
	if a != b {
		t.Errorf("GeneratedID not deterministic: %s != %s", a, b)
	}
	if c := GeneratedID(KindCursor, 3, 1.25); c == a {
		t.Errorf("different kinds produced the same id %s", c)
	}
	if d := GeneratedID(KindRipple, 4, 1.25); d == a {
		t.Errorf("different indexes produced the same id %s", d)
	}
}

func TestKeystrokeOpacity(t *testing.T) {
	k := Keystroke{Duration: 1.5, FadeIn: 0.15, FadeOut: 0.3}
	tests := []struct {
		elapsed float64
		want    float64
	}{
		{-0.1, 0},
		{0, 0},
		{0.075, 0.5},
		{0.5, 1},
		{1.35, 0.5},
		{1.5, 0},
		{1.6, 0},
	}
	for _, tt := range tests {
		if got := k.Opacity(tt.elapsed); abs(got-tt.want) > 1e-9 {
			t.Errorf("Opacity(%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func ids[P Payload](tr Track[P]) []string {
	out := make([]string, len(tr.Keyframes))
	for i, kf := range tr.Keyframes {
		out[i] = kf.ID
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
