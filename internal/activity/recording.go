package activity

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/screenzoom/internal/system"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// Recording is the complete input capture for one screen recording.
// Generators treat it as read-only.
type Recording struct {
	Duration  float64          `yaml:"duration,omitempty"`
	Positions []PositionSample `yaml:"positions"`
	Clicks    []Click          `yaml:"clicks"`
	Keyboard  []Key            `yaml:"keyboard"`
	Scrolls   []Scroll         `yaml:"scrolls,omitempty"`
	Drags     []Drag           `yaml:"drags"`
}

// Load reads a recording from a YAML or JSON file and validates it.
func Load(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записи активности: %w", err)
	}
	rec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Parse decodes and validates a recording.
func Parse(data []byte) (*Recording, error) {
	var rec Recording
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка разбора записи активности: %w", err)
	}
	clamped, err := rec.Validate()
	if err != nil {
		return nil, err
	}
	if clamped > 0 {
		system.Logger().Warn("recording coordinates clamped to frame", "count", clamped)
	}
	return &rec, nil
}

// Save writes the recording as YAML.
func (r *Recording) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects non-finite samples, clamps positions into the frame and
// sorts every sample list by time, keeping the order of equal times. It
// returns the number of clamped coordinates.
func (r *Recording) Validate() (int, error) {
	clamped := 0
	fix := func(p *timeline.Point) error {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("non-finite position")
		}
		c := p.Clamped()
		if c != *p {
			clamped++
			*p = c
		}
		return nil
	}

	if !finite(r.Duration) || r.Duration < 0 {
		return 0, fmt.Errorf("invalid recording duration: %v", r.Duration)
	}
	for i := range r.Positions {
		s := &r.Positions[i]
		if !validTime(s.Time) || !finite(s.Velocity) {
			return 0, fmt.Errorf("position sample %d: invalid value", i)
		}
		if err := fix(&s.Position); err != nil {
			return 0, fmt.Errorf("position sample %d: %w", i, err)
		}
	}
	for i := range r.Clicks {
		c := &r.Clicks[i]
		if !validTime(c.Time) || !finite(c.Duration) {
			return 0, fmt.Errorf("click %d: invalid value", i)
		}
		switch c.Button {
		case ButtonLeft, ButtonRight, ButtonMiddle:
		case "":
			c.Button = ButtonLeft
		default:
			return 0, fmt.Errorf("click %d: unknown button %q", i, c.Button)
		}
		if err := fix(&c.Position); err != nil {
			return 0, fmt.Errorf("click %d: %w", i, err)
		}
	}
	for i := range r.Keyboard {
		k := &r.Keyboard[i]
		if !validTime(k.Time) {
			return 0, fmt.Errorf("key event %d: invalid time", i)
		}
		switch k.Action {
		case KeyDown, KeyUp:
		default:
			return 0, fmt.Errorf("key event %d: unknown action %q", i, k.Action)
		}
	}
	for i := range r.Scrolls {
		s := &r.Scrolls[i]
		if !validTime(s.Time) || !finite(s.DeltaX) || !finite(s.DeltaY) {
			return 0, fmt.Errorf("scroll %d: invalid value", i)
		}
		if err := fix(&s.Position); err != nil {
			return 0, fmt.Errorf("scroll %d: %w", i, err)
		}
	}
	for i := range r.Drags {
		d := &r.Drags[i]
		if !validTime(d.StartTime) || !validTime(d.EndTime) {
			return 0, fmt.Errorf("drag %d: invalid time", i)
		}
		if d.EndTime < d.StartTime {
			return 0, fmt.Errorf("drag %d: ends before it starts", i)
		}
		if err := fix(&d.StartPosition); err != nil {
			return 0, fmt.Errorf("drag %d: %w", i, err)
		}
		if err := fix(&d.EndPosition); err != nil {
			return 0, fmt.Errorf("drag %d: %w", i, err)
		}
	}

	sort.SliceStable(r.Positions, func(a, b int) bool { return r.Positions[a].Time < r.Positions[b].Time })
	sort.SliceStable(r.Clicks, func(a, b int) bool { return r.Clicks[a].Time < r.Clicks[b].Time })
	sort.SliceStable(r.Keyboard, func(a, b int) bool { return r.Keyboard[a].Time < r.Keyboard[b].Time })
	sort.SliceStable(r.Scrolls, func(a, b int) bool { return r.Scrolls[a].Time < r.Scrolls[b].Time })
	sort.SliceStable(r.Drags, func(a, b int) bool { return r.Drags[a].StartTime < r.Drags[b].StartTime })
	return clamped, nil
}

// End is the recording length: Duration when set, otherwise the last sample time.
func (r *Recording) End() float64 {
	if r.Duration > 0 {
		return r.Duration
	}
	end := 0.0
	for _, s := range r.Positions {
		end = math.Max(end, s.Time)
	}
	for _, c := range r.Clicks {
		end = math.Max(end, c.Time+c.Duration)
	}
	for _, k := range r.Keyboard {
		end = math.Max(end, k.Time)
	}
	for _, d := range r.Drags {
		end = math.Max(end, d.EndTime)
	}
	return end
}

// PositionAt returns the last pointer sample at or before t, or false when
// there is none.
func (r *Recording) PositionAt(t float64) (timeline.Point, bool) {
	i := sort.Search(len(r.Positions), func(i int) bool { return r.Positions[i].Time > t })
	if i == 0 {
		return timeline.Point{}, false
	}
	return r.Positions[i-1].Position, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func validTime(t float64) bool {
	return finite(t) && t >= 0
}
