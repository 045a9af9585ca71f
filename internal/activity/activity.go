// Package activity holds the input samples captured alongside a screen
// recording: pointer positions, clicks, drags, scrolls and key events.
package activity

import (
	"github.com/ivlev/screenzoom/internal/timeline"
)

// PositionSample is a pointer position at a moment of the recording.
type PositionSample struct {
	Time     float64        `yaml:"time"`
	Position timeline.Point `yaml:"position"`
	Velocity float64        `yaml:"velocity,omitempty"`
}

type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Click is a button press. Duration is how long the button was held.
type Click struct {
	Time     float64        `yaml:"time"`
	Position timeline.Point `yaml:"position"`
	Button   Button         `yaml:"button"`
	Double   bool           `yaml:"double,omitempty"`
	Duration float64        `yaml:"duration,omitempty"`
}

type KeyAction string

const (
	KeyDown KeyAction = "down"
	KeyUp   KeyAction = "up"
)

type Modifiers struct {
	Command bool `yaml:"command,omitempty"`
	Shift   bool `yaml:"shift,omitempty"`
	Alt     bool `yaml:"alt,omitempty"`
	Control bool `yaml:"control,omitempty"`
}

// Any reports whether any modifier is held.
func (m Modifiers) Any() bool {
	return m.Command || m.Shift || m.Alt || m.Control
}

// Key is a keyboard event. KeyCode is the platform virtual key code.
type Key struct {
	Time      float64   `yaml:"time"`
	Action    KeyAction `yaml:"event_type"`
	KeyCode   uint16    `yaml:"key_code"`
	Character string    `yaml:"character,omitempty"`
	Modifiers Modifiers `yaml:"modifiers"`
}

type Scroll struct {
	Time       float64        `yaml:"time"`
	Position   timeline.Point `yaml:"position"`
	DeltaX     float64        `yaml:"delta_x"`
	DeltaY     float64        `yaml:"delta_y"`
	IsTrackpad bool           `yaml:"is_trackpad,omitempty"`
}

type Drag struct {
	StartTime     float64        `yaml:"start_time"`
	EndTime       float64        `yaml:"end_time"`
	StartPosition timeline.Point `yaml:"start_position"`
	EndPosition   timeline.Point `yaml:"end_position"`
}
