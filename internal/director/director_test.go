package director

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/ivlev/screenzoom/internal/activity"
	"github.com/ivlev/screenzoom/internal/easing"
	"github.com/ivlev/screenzoom/internal/renderer"
	"github.com/ivlev/screenzoom/internal/timeline"
)

func click(t, x, y float64) activity.Click {
	return activity.Click{Time: t, Position: timeline.Point{X: x, Y: y}, Button: activity.ButtonLeft}
}

func keyDown(t float64, code uint16, ch string, mods activity.Modifiers) activity.Key {
	return activity.Key{Time: t, Action: activity.KeyDown, KeyCode: code, Character: ch, Modifiers: mods}
}

func TestGenerateEmptyInput(t *testing.T) {
	tl, report := Generate(context.Background(), &activity.Recording{}, DefaultSettings())

	if tl.KeyframeCount() != 0 {
		t.Errorf("Expected empty timeline, got %d keyframes", tl.KeyframeCount())
	}
	for _, kind := range timeline.Kinds {
		if n, ok := report.Counts[kind]; !ok || n != 0 {
			t.Errorf("Count for %s = %d (present %v), want 0", kind, n, ok)
		}
	}
	if report.Sessions != 0 {
		t.Errorf("Expected 0 sessions, got %d", report.Sessions)
	}

	if tl, _ := Generate(context.Background(), nil, DefaultSettings()); tl.KeyframeCount() != 0 {
		t.Error("nil recording must produce an empty timeline")
	}
}

func TestClusterSessions(t *testing.T) {
	z := DefaultSettings().Zoom
	tests := []struct {
		name     string
		a, b     Activity
		sessions int
	}{
		{
			"far in time and space",
			Activity{Time: 0, Position: timeline.Point{X: 0.2, Y: 0.5}, Weight: 1},
			Activity{Time: 3.5, Position: timeline.Point{X: 0.7, Y: 0.5}, Weight: 1},
			2,
		},
		{
			"close in time and space",
			Activity{Time: 0, Position: timeline.Point{X: 0.4, Y: 0.5}, Weight: 1},
			Activity{Time: 1, Position: timeline.Point{X: 0.5, Y: 0.5}, Weight: 1},
			1,
		},
		{
			"close in time only",
			Activity{Time: 0, Position: timeline.Point{X: 0.1, Y: 0.5}, Weight: 1},
			Activity{Time: 1, Position: timeline.Point{X: 0.9, Y: 0.5}, Weight: 1},
			2,
		},
		{
			"close in space only",
			Activity{Time: 0, Position: timeline.Point{X: 0.4, Y: 0.5}, Weight: 1},
			Activity{Time: 3.5, Position: timeline.Point{X: 0.45, Y: 0.5}, Weight: 1},
			2,
		},
		{
			"gap exactly at limit",
			Activity{Time: 0, Position: timeline.Point{X: 0.4, Y: 0.5}, Weight: 1},
			Activity{Time: 3, Position: timeline.Point{X: 0.4, Y: 0.5}, Weight: 1},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := Cluster([]Activity{tt.a, tt.b}, z)
			if len(sessions) != tt.sessions {
				t.Errorf("Cluster() produced %d sessions, want %d", len(sessions), tt.sessions)
			}
		})
	}
}

func TestClusterUsesWeightedCentroid(t *testing.T) {
	sessions := Cluster([]Activity{
		{Time: 0, Position: timeline.Point{X: 0.4, Y: 0.4}, Weight: 1},
		{Time: 1, Position: timeline.Point{X: 0.6, Y: 0.4}, Weight: 0.5},
	}, DefaultSettings().Zoom)
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	c := sessions[0].Centroid()
	if math.Abs(c.X-(0.4+0.6*0.5)/1.5) > 1e-12 || math.Abs(c.Y-0.4) > 1e-12 {
		t.Errorf("Centroid() = %+v", c)
	}
}

func TestSessionZoom(t *testing.T) {
	z := DefaultSettings().Zoom
	single := Cluster([]Activity{{Time: 1, Position: timeline.Point{X: 0.5, Y: 0.5}, Weight: 1}}, z)[0]
	if got := single.Zoom(z); math.Abs(got-3.5) > 1e-9 {
		t.Errorf("single point zoom = %v, want 3.5", got)
	}

	noMargin := z
	noMargin.Margin = 0
	if got := single.Zoom(noMargin); got != z.MaxZoom {
		t.Errorf("degenerate bbox zoom = %v, want MaxZoom %v", got, z.MaxZoom)
	}

	wide := Cluster([]Activity{
		{Time: 0, Position: timeline.Point{X: 0.3, Y: 0.5}, Weight: 1},
		{Time: 1, Position: timeline.Point{X: 0.55, Y: 0.5}, Weight: 1},
		{Time: 2, Position: timeline.Point{X: 0.65, Y: 0.5}, Weight: 1},
	}, z)
	if len(wide) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(wide))
	}
	if got, want := wide[0].Zoom(z), 0.7/0.55; math.Abs(got-want) > 1e-9 {
		t.Errorf("wide session zoom = %v, want %v", got, want)
	}
}

func TestTransformKeyframesForSingleClick(t *testing.T) {
	rec := &activity.Recording{Duration: 20, Clicks: []activity.Click{click(5, 0.3, 0.4)}}
	tl, report := Generate(context.Background(), rec, DefaultSettings())

	if report.Sessions != 1 {
		t.Fatalf("Expected 1 session, got %d", report.Sessions)
	}
	kfs := tl.Transform.Keyframes
	want := []struct {
		time   float64
		zoom   float64
		easing easing.Kind
	}{
		{4.4, 1, easing.KindLinear},
		{5, 3.5, easing.KindEaseInOut},
		{5.5, 3.5, easing.KindLinear},
		{6, 3.5, easing.KindLinear},
		{6.6, 1, easing.KindEaseOut},
	}
	if len(kfs) != len(want) {
		t.Fatalf("Expected %d transform keyframes, got %d", len(want), len(kfs))
	}
	for i, w := range want {
		kf := kfs[i]
		t.Logf("Keyframe %d: time=%.3fs, zoom=%.2f, center=%+v, easing=%s", i, kf.Time, kf.Value.Zoom, kf.Value.Center, kf.Easing)
		if math.Abs(kf.Time-w.time) > 1e-9 || math.Abs(kf.Value.Zoom-w.zoom) > 1e-9 || kf.Easing.Kind != w.easing {
			t.Errorf("keyframe %d = (%v, %v, %s), want (%v, %v, %s)", i, kf.Time, kf.Value.Zoom, kf.Easing.Kind, w.time, w.zoom, w.easing)
		}
	}
	if kfs[1].Value.Center != (timeline.Point{X: 0.3, Y: 0.4}) {
		t.Errorf("zoom-in center = %+v, want the click position", kfs[1].Value.Center)
	}
	if kfs[4].Value != timeline.NeutralTransform {
		t.Errorf("zoom-out value = %+v, want neutral", kfs[4].Value)
	}
}

func TestZoomHoldsUntilSessionEnds(t *testing.T) {
	rec := &activity.Recording{Duration: 30}
	for i := 0; i <= 10; i++ {
		rec.Clicks = append(rec.Clicks, click(5+float64(i), 0.3, 0.3))
	}
	tl, report := Generate(context.Background(), rec, DefaultSettings())
	if report.Sessions != 1 {
		t.Fatalf("Expected 1 session, got %d", report.Sessions)
	}

	kfs := tl.Transform.Keyframes
	held := kfs[1].Value.Zoom
	for _, at := range []float64{5, 10, 12, 14, 14.9, 15} {
		if got := renderer.Evaluate(tl, at).Transform.Zoom; math.Abs(got-held) > 1e-9 {
			t.Errorf("zoom at %vs = %v, want %v while the user is still clicking", at, got, held)
		}
	}
	if got := renderer.Evaluate(tl, 15.3).Transform.Zoom; got >= held || got <= 1 {
		t.Errorf("zoom at 15.3s = %v, want mid zoom-out", got)
	}
	last := kfs[len(kfs)-1]
	if last.Value != timeline.NeutralTransform || math.Abs(last.Time-15.6) > 1e-9 {
		t.Errorf("zoom-out = (%v, %+v), want neutral at 15.6", last.Time, last.Value)
	}
}

func TestTransformKeyframesStrictlyIncreasingForCloseSessions(t *testing.T) {
	rec := &activity.Recording{
		Duration: 10,
		Clicks: []activity.Click{
			click(1, 0.2, 0.2),
			click(2, 0.8, 0.8),
			click(2.1, 0.1, 0.9),
			click(9.9, 0.5, 0.5),
		},
	}
	tl, report := Generate(context.Background(), rec, DefaultSettings())
	if report.Sessions != 4 {
		t.Fatalf("Expected 4 sessions, got %d", report.Sessions)
	}

	kfs := tl.Transform.Keyframes
	for i := 1; i < len(kfs); i++ {
		if kfs[i].Time <= kfs[i-1].Time {
			t.Errorf("keyframe %d at %v is not after %v", i, kfs[i].Time, kfs[i-1].Time)
		}
	}
	last := kfs[len(kfs)-1]
	if last.Time > 10 {
		t.Errorf("last keyframe at %v is past the duration", last.Time)
	}
	if last.Value != timeline.NeutralTransform {
		t.Errorf("timeline must end on the full frame, got %+v", last.Value)
	}
}

func TestCentersStayInsideFrame(t *testing.T) {
	rec := &activity.Recording{Duration: 10, Clicks: []activity.Click{click(2, 0.01, 0.99)}}
	tl, _ := Generate(context.Background(), rec, DefaultSettings())
	for _, kf := range tl.Transform.Keyframes {
		half := 0.5 / kf.Value.Zoom
		c := kf.Value.Center
		if kf.Value.Zoom > 1 && (c.X < half-1e-12 || c.X > 1-half+1e-12 || c.Y < half-1e-12 || c.Y > 1-half+1e-12) {
			t.Errorf("center %+v leaves the frame at zoom %v", c, kf.Value.Zoom)
		}
	}
}

type fixedSaliency timeline.Point

func (f fixedSaliency) Center(context.Context, *Session) (timeline.Point, bool) {
	return timeline.Point(f), true
}

func TestSaliencyOverridesCentroid(t *testing.T) {
	d := NewDirector()
	d.Saliency = fixedSaliency{X: 0.6, Y: 0.6}
	rec := &activity.Recording{Duration: 10, Clicks: []activity.Click{click(2, 0.4, 0.4)}}
	tl, _ := d.Generate(context.Background(), rec)

	for _, kf := range tl.Transform.Keyframes {
		if kf.Value.Zoom > 1 && kf.Value.Center != (timeline.Point{X: 0.6, Y: 0.6}) {
			t.Errorf("center = %+v, want saliency center", kf.Value.Center)
		}
	}
}

func richRecording() *activity.Recording {
	rec := &activity.Recording{Duration: 30}
	for i := 0; i < 300; i++ {
		tt := float64(i) / 10
		rec.Positions = append(rec.Positions, activity.PositionSample{
			Time:     tt,
			Position: timeline.Point{X: 0.5 + 0.3*math.Sin(tt/3), Y: 0.5 + 0.2*math.Cos(tt/5)},
		})
	}
	rec.Clicks = []activity.Click{
		click(1, 0.2, 0.3),
		click(1.8, 0.25, 0.3),
		{Time: 6, Position: timeline.Point{X: 0.7, Y: 0.7}, Button: activity.ButtonRight},
		{Time: 12, Position: timeline.Point{X: 0.6, Y: 0.2}, Button: activity.ButtonLeft, Double: true},
	}
	rec.Drags = []activity.Drag{{StartTime: 15, EndTime: 16.5, StartPosition: timeline.Point{X: 0.1, Y: 0.1}, EndPosition: timeline.Point{X: 0.3, Y: 0.2}}}
	rec.Keyboard = []activity.Key{
		keyDown(20, 4, "h", activity.Modifiers{}),
		keyDown(20.2, 14, "i", activity.Modifiers{}),
		keyDown(22, 0x43, "c", activity.Modifiers{Command: true}),
	}
	return rec
}

func TestGenerateIsDeterministic(t *testing.T) {
	first, _ := Generate(context.Background(), richRecording(), DefaultSettings())
	second, _ := Generate(context.Background(), richRecording(), DefaultSettings())

	a, err := timeline.Encode(first)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	b, err := timeline.Encode(second)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("regeneration produced different documents")
	}
	if first.KeyframeCount() == 0 {
		t.Error("Expected keyframes from a rich recording")
	}
	t.Logf("Generated %d keyframes: %v", first.KeyframeCount(), first.Counts())
}

func TestRegenerateReplacesTracksUndoably(t *testing.T) {
	generated, _ := Generate(context.Background(), richRecording(), DefaultSettings())
	doc := timeline.NewDocument(timeline.New(30))
	if _, err := doc.Apply(Regenerate(generated)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if doc.Snapshot().KeyframeCount() != generated.KeyframeCount() {
		t.Errorf("document has %d keyframes, want %d", doc.Snapshot().KeyframeCount(), generated.KeyframeCount())
	}
	if doc.UndoDepth() != 1 {
		t.Errorf("UndoDepth() = %d, want one step per regeneration", doc.UndoDepth())
	}

	tl, ok := doc.Undo()
	if !ok || tl.KeyframeCount() != 0 {
		t.Errorf("Undo() = %d keyframes (ok %v), want the empty document back", tl.KeyframeCount(), ok)
	}
}
