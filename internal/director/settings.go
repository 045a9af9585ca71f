package director

import (
	"fmt"
)

// ZoomSettings control session clustering and camera keyframe emission.
type ZoomSettings struct {
	SessionGap      float64 `yaml:"session_gap"`      // Max seconds between activities of one session
	SessionDistance float64 `yaml:"session_distance"` // Max normalized distance to the running centroid
	Margin          float64 `yaml:"margin"`           // Padding around the session bounding box
	TargetCoverage  float64 `yaml:"target_coverage"`  // Fraction of the frame the bbox should fill
	MinZoom         float64 `yaml:"min_zoom"`
	MaxZoom         float64 `yaml:"max_zoom"`
	Transition      float64 `yaml:"transition"` // Seconds spent zooming in or out
	MinDwell        float64 `yaml:"min_dwell"`  // Minimum seconds a session stays zoomed

	ClickWeight  float64 `yaml:"click_weight"`
	DragWeight   float64 `yaml:"drag_weight"`
	TypingWeight float64 `yaml:"typing_weight"`
}

type RippleSettings struct {
	// MinInterval drops clicks closer than this to the previous ripple. 0 keeps every click.
	MinInterval float64 `yaml:"min_interval"`
}

type KeystrokeSettings struct {
	DisplayDuration float64 `yaml:"display_duration"` // Added to the burst span
	FadeIn          float64 `yaml:"fade_in"`
	FadeOut         float64 `yaml:"fade_out"`
	MaxChars        int     `yaml:"max_chars"`
	ShortcutsOnly   bool    `yaml:"shortcuts_only"`
}

type CursorSettings struct {
	SampleRate float64 `yaml:"sample_rate"` // Hz
	Smoothing  int     `yaml:"smoothing"`   // Moving-average taps
	MinMove    float64 `yaml:"min_move"`    // Thinning threshold in normalized units
	Scale      float64 `yaml:"scale"`
	ClickScale float64 `yaml:"click_scale"`
}

// Settings groups every generator knob.
type Settings struct {
	TypingTimeout float64           `yaml:"typing_timeout"` // Gap that ends a typing burst
	Zoom          ZoomSettings      `yaml:"zoom"`
	Ripple        RippleSettings    `yaml:"ripple"`
	Keystroke     KeystrokeSettings `yaml:"keystroke"`
	Cursor        CursorSettings    `yaml:"cursor"`
}

func DefaultSettings() Settings {
	return Settings{
		TypingTimeout: 1.5,
		Zoom: ZoomSettings{
			SessionGap:      3.0,
			SessionDistance: 0.3,
			Margin:          0.1,
			TargetCoverage:  0.7,
			MinZoom:         1.0,
			MaxZoom:         10.0,
			Transition:      0.6,
			MinDwell:        1.0,
			ClickWeight:     1.0,
			DragWeight:      0.7,
			TypingWeight:    0.5,
		},
		Keystroke: KeystrokeSettings{
			DisplayDuration: 1.5,
			FadeIn:          0.15,
			FadeOut:         0.3,
			MaxChars:        24,
		},
		Cursor: CursorSettings{
			SampleRate: 30,
			Smoothing:  5,
			MinMove:    0.002,
			Scale:      2.5,
			ClickScale: 2.0,
		},
	}
}

// Validate rejects settings the generators cannot work with.
func (s Settings) Validate() error {
	z := s.Zoom
	switch {
	case s.TypingTimeout < 0:
		return fmt.Errorf("typing_timeout must be non-negative")
	case z.MinZoom <= 0 || z.MaxZoom < z.MinZoom:
		return fmt.Errorf("invalid zoom range [%v, %v]", z.MinZoom, z.MaxZoom)
	case z.TargetCoverage <= 0:
		return fmt.Errorf("target_coverage must be positive")
	case z.Transition < 0 || z.MinDwell < 0 || z.Margin < 0:
		return fmt.Errorf("zoom durations and margin must be non-negative")
	case s.Cursor.SampleRate <= 0:
		return fmt.Errorf("cursor sample_rate must be positive")
	case s.Cursor.Scale <= 0 || s.Cursor.ClickScale <= 0:
		return fmt.Errorf("cursor scale must be positive")
	case s.Keystroke.MaxChars < 0:
		return fmt.Errorf("keystroke max_chars must be non-negative")
	}
	return nil
}
