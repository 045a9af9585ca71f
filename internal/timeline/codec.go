package timeline

import (
	"bytes"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	zerr "github.com/ivlev/screenzoom/internal/errors"
)

// FormatVersion is the document schema version written by Encode.
const FormatVersion = 1

type trackDoc[P Payload] struct {
	Kind  Kind     `yaml:"kind"`
	Track Track[P] `yaml:",inline"`
}

type timelineOut struct {
	Version   int      `yaml:"version"`
	Duration  float64  `yaml:"duration"`
	TrimStart *float64 `yaml:"trimStart,omitempty"`
	TrimEnd   *float64 `yaml:"trimEnd,omitempty"`
	Tracks    []any    `yaml:"tracks"`
}

type timelineIn struct {
	Version   int         `yaml:"version"`
	Duration  float64     `yaml:"duration"`
	TrimStart float64     `yaml:"trimStart"`
	TrimEnd   *float64    `yaml:"trimEnd"`
	Tracks    []yaml.Node `yaml:"tracks"`
}

// MarshalYAML writes each track as a tagged variant keyed by kind.
func (tl Timeline) MarshalYAML() (any, error) {
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	doc := timelineOut{
		Version:  FormatVersion,
		Duration: tl.Duration,
		TrimEnd:  tl.TrimEnd,
		Tracks: []any{
			trackDoc[Transform]{Kind: KindTransform, Track: tl.Transform},
			trackDoc[Ripple]{Kind: KindRipple, Track: tl.Ripple},
			trackDoc[Cursor]{Kind: KindCursor, Track: tl.Cursor},
			trackDoc[Keystroke]{Kind: KindKeystroke, Track: tl.Keystroke},
		},
	}
	if tl.TrimStart != 0 || math.Signbit(tl.TrimStart) {
		start := tl.TrimStart
		doc.TrimStart = &start
	}
	var n yaml.Node
	if err := n.Encode(doc); err != nil {
		return nil, err
	}
	keepNegativeZero(&n)
	return &n, nil
}

// keepNegativeZero rewrites plain "-0" scalars as "-0.0". yaml resolves "-0"
// to the integer zero, which drops the sign bit on decode. Only float fields
// can produce a plain "-0"; strings that look like numbers are quoted.
func keepNegativeZero(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Style == 0 && n.Value == "-0" {
		n.Value = "-0.0"
		n.Tag = "!!float"
	}
	for _, c := range n.Content {
		keepNegativeZero(c)
	}
}

// UnmarshalYAML reads a timeline without re-sorting anything. Missing
// tracks decode as empty ones; an unsorted track is rejected.
func (tl *Timeline) UnmarshalYAML(n *yaml.Node) error {
	var in timelineIn
	if err := n.Decode(&in); err != nil {
		return err
	}
	if in.Version > FormatVersion {
		return fmt.Errorf("unsupported timeline version %d", in.Version)
	}

	out := New(in.Duration)
	out.Duration = in.Duration
	out.TrimStart = in.TrimStart
	out.TrimEnd = in.TrimEnd

	seen := make(map[Kind]bool, len(Kinds))
	for i := range in.Tracks {
		var head struct {
			Kind Kind `yaml:"kind"`
		}
		if err := in.Tracks[i].Decode(&head); err != nil {
			return err
		}
		if seen[head.Kind] {
			return fmt.Errorf("duplicate %s track", head.Kind)
		}
		seen[head.Kind] = true

		var err error
		switch head.Kind {
		case KindTransform:
			err = decodeTrack(&in.Tracks[i], &out.Transform)
		case KindRipple:
			err = decodeTrack(&in.Tracks[i], &out.Ripple)
		case KindCursor:
			err = decodeTrack(&in.Tracks[i], &out.Cursor)
		case KindKeystroke:
			err = decodeTrack(&in.Tracks[i], &out.Keystroke)
		default:
			err = fmt.Errorf("unknown track kind: %q", head.Kind)
		}
		if err != nil {
			return err
		}
	}

	if err := out.Validate(); err != nil {
		return err
	}
	*tl = out
	return nil
}

func decodeTrack[P Payload](n *yaml.Node, dst *Track[P]) error {
	doc := trackDoc[P]{Track: *dst}
	if err := n.Decode(&doc); err != nil {
		return fmt.Errorf("%s track: %w", KindOf[P](), err)
	}
	if len(doc.Track.Keyframes) == 0 {
		doc.Track.Keyframes = nil
	}
	*dst = doc.Track
	return nil
}

// Encode serializes a timeline to YAML. Floats are written in their
// shortest round-trip form so decoding is bit-exact.
func Encode(tl Timeline) ([]byte, error) {
	data, err := yaml.Marshal(tl)
	if err != nil {
		e := zerr.NewCorruptDocument(fmt.Sprintf("cannot encode timeline: %v", err))
		e.Err = err
		return nil, e
	}
	return data, nil
}

// Decode parses a YAML timeline. Any model violation is a CORRUPT_DOCUMENT error.
func Decode(data []byte) (Timeline, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Timeline{}, zerr.NewCorruptDocument("empty timeline document")
	}
	var tl Timeline
	if err := yaml.Unmarshal(data, &tl); err != nil {
		e := zerr.NewCorruptDocument(err.Error())
		e.Err = err
		return Timeline{}, e
	}
	return tl, nil
}
