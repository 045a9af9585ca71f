package analyzer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ivlev/screenzoom/internal/director"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// frameWithRects draws white rectangles on a black background.
func frameWithRects(w, h int, rects ...image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestContrastDetector(t *testing.T) {
	img := frameWithRects(200, 200, image.Rect(50, 50, 150, 150))

	detector := NewContrastDetector()
	blocks, err := detector.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blocks) == 0 {
		t.Fatal("Expected at least one block, got none")
	}

	// Verify the detected block roughly matches our white rectangle
	block := blocks[0]
	if block.Rect.Dx() < 80 || block.Rect.Dy() < 80 {
		t.Errorf("Block too small: %v", block.Rect)
	}

	t.Logf("Detected %d blocks", len(blocks))
	for i, b := range blocks {
		t.Logf("Block %d: %v (kind: %s, confidence: %.2f)", i, b.Rect, b.Kind, b.Confidence)
	}
}

func TestContrastDetectorDownscales(t *testing.T) {
	img := frameWithRects(1920, 1080, image.Rect(400, 300, 800, 600))

	blocks, err := NewContrastDetector().Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("Expected one block, got %d", len(blocks))
	}
	// Rect is reported in source pixels and encloses the drawn rectangle.
	want := image.Rect(400, 300, 800, 600)
	if got := blocks[0].Rect; !want.In(got.Inset(-1)) || got.Dx() > 480 {
		t.Errorf("block %v does not match %v", got, want)
	}
	if blocks[0].Confidence <= 0 || blocks[0].Confidence > 1 {
		t.Errorf("confidence out of range: %v", blocks[0].Confidence)
	}
}

func TestContrastDetectorHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewContrastDetector().Detect(ctx, frameWithRects(100, 100)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		rect    image.Rectangle
		density float64
		want    BlockKind
	}{
		{"toolbar", image.Rect(0, 10, 1000, 60), 0.5, BlockHeader},
		{"text line", image.Rect(100, 500, 600, 530), 0.5, BlockText},
		{"picture", image.Rect(100, 300, 500, 700), 0.1, BlockImage},
		{"button", image.Rect(100, 300, 160, 330), 0.8, BlockUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.rect, 0, 1000, tt.density); got != tt.want {
				t.Errorf("classify(%v) = %s, want %s", tt.rect, got, tt.want)
			}
		})
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"contrast", false},
		{"", false}, // default
		{"contrast-fine", false},
		{"ocr", true},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if detector == nil {
					t.Error("Expected detector, got nil")
				}
			}
		})
	}
}

type staticSource struct {
	img   image.Image
	err   error
	asked []float64
}

func (s *staticSource) Frame(_ context.Context, t float64) (image.Image, error) {
	s.asked = append(s.asked, t)
	return s.img, s.err
}

type fixedDetector []Block

func (d fixedDetector) Detect(context.Context, image.Image) ([]Block, error) {
	return d, nil
}

func sessionAt(t *testing.T, p timeline.Point, times ...float64) *director.Session {
	t.Helper()
	var acts []director.Activity
	for _, ts := range times {
		acts = append(acts, director.Activity{Time: ts, Position: p, Weight: 1, Kind: director.ActivityClick})
	}
	sessions := director.Cluster(acts, director.DefaultSettings().Zoom)
	if len(sessions) != 1 {
		t.Fatalf("Expected one session, got %d", len(sessions))
	}
	return &sessions[0]
}

func TestFrameSaliencyCentersOnContainingBlock(t *testing.T) {
	src := &staticSource{img: frameWithRects(1000, 500)}
	det := fixedDetector{
		{Rect: image.Rect(0, 0, 1000, 500)},     // whole frame, ignored
		{Rect: image.Rect(100, 100, 500, 300)}, // contains, larger
		{Rect: image.Rect(200, 150, 300, 250)}, // contains, smallest
		{Rect: image.Rect(600, 100, 700, 200)}, // elsewhere
	}
	s := NewFrameSaliency(src, det)

	c, ok := s.Center(context.Background(), sessionAt(t, timeline.Point{X: 0.22, Y: 0.45}, 2, 4))
	if !ok {
		t.Fatal("Expected a saliency center")
	}
	if math.Abs(c.X-0.25) > 1e-9 || math.Abs(c.Y-0.4) > 1e-9 {
		t.Errorf("center = %+v, want (0.25, 0.4)", c)
	}
	if len(src.asked) != 1 || src.asked[0] != 3 {
		t.Errorf("frame requested at %v, want the session midpoint 3", src.asked)
	}
}

func TestFrameSaliencyNearestBlock(t *testing.T) {
	src := &staticSource{img: frameWithRects(1000, 500)}
	det := fixedDetector{
		{Rect: image.Rect(600, 100, 700, 200)},
		{Rect: image.Rect(300, 200, 400, 300)},
	}
	s := NewFrameSaliency(src, det)

	c, ok := s.Center(context.Background(), sessionAt(t, timeline.Point{X: 0.28, Y: 0.38}, 1))
	if !ok {
		t.Fatal("Expected the nearby block")
	}
	if math.Abs(c.X-0.35) > 1e-9 || math.Abs(c.Y-0.5) > 1e-9 {
		t.Errorf("center = %+v, want (0.35, 0.5)", c)
	}

	if _, ok := s.Center(context.Background(), sessionAt(t, timeline.Point{X: 0.05, Y: 0.9}, 1)); ok {
		t.Error("Expected no center when every block is far away")
	}
}

func TestFrameSaliencySourceError(t *testing.T) {
	s := NewFrameSaliency(&staticSource{err: errors.New("decode failed")}, NewContrastDetector())
	if _, ok := s.Center(context.Background(), sessionAt(t, timeline.Center, 1)); ok {
		t.Error("Expected no center when the frame cannot be read")
	}
}
