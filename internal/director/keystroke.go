package director

import (
	"strings"

	"github.com/ivlev/screenzoom/internal/activity"
	"github.com/ivlev/screenzoom/internal/easing"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// KeyDisplayName returns the label for a key code, or false for keys that
// are shown only as part of a chord (the modifiers themselves). Codes cover
// both Windows virtual keys and macOS key codes.
func KeyDisplayName(code uint16, character string) (string, bool) {
	switch code {
	case 0x0D, 36:
		return "Enter", true
	case 0x09, 48:
		return "Tab", true
	case 0x20, 49:
		return "Space", true
	case 0x08, 51:
		return "Backspace", true
	case 0x1B, 53:
		return "Escape", true
	case 0x2E, 117:
		return "Delete", true
	case 0x25, 123:
		return "Left", true
	case 0x27, 124:
		return "Right", true
	case 0x28, 125:
		return "Down", true
	case 0x26, 126:
		return "Up", true
	case 115:
		return "Home", true
	case 0x23, 119:
		return "End", true
	case 0x21, 116:
		return "PageUp", true
	case 0x22, 121:
		return "PageDown", true
	case 54, 55, 56, 58, 59, 60, 61, 62, 63,
		0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5:
		return "", false
	}
	if character == "" {
		return "", false
	}
	return strings.ToUpper(character), true
}

// ModifierSymbols renders held modifiers as a chord prefix.
func ModifierSymbols(m activity.Modifiers) string {
	var b strings.Builder
	if m.Control {
		b.WriteString("Ctrl+")
	}
	if m.Alt {
		b.WriteString("Alt+")
	}
	if m.Shift {
		b.WriteString("Shift+")
	}
	if m.Command {
		b.WriteString("Cmd+")
	}
	return b.String()
}

// overlay is one keystroke keyframe before IDs are assigned.
type overlay struct {
	start, end float64
	text       []rune
}

// typedText applies one plain key-down to the text of a typing burst.
func typedText(text []rune, k activity.Key) []rune {
	name, ok := KeyDisplayName(k.KeyCode, k.Character)
	if !ok {
		return text
	}
	switch name {
	case "Space":
		return append(text, ' ')
	case "Backspace":
		if len(text) > 0 {
			return text[:len(text)-1]
		}
		return text
	case "Enter", "Tab", "Escape", "Delete", "Left", "Right", "Up", "Down", "Home", "End", "PageUp", "PageDown":
		return append(text, []rune("<"+name+">")...)
	}
	return append(text, []rune(k.Character)...)
}

// keystrokeKeyframes emits one overlay per typing burst and one per chord.
// Bursts come from keyBursts, so overlays start where typing activities do.
func keystrokeKeyframes(keys []activity.Key, timeout float64, s KeystrokeSettings) []timeline.Keyframe[timeline.Keystroke] {
	var overlays []overlay
	for _, b := range keyBursts(keys, timeout) {
		if b.Chord {
			k := b.Keys[0]
			name, _ := KeyDisplayName(k.KeyCode, k.Character)
			overlays = append(overlays, overlay{start: b.Start, end: b.End, text: []rune(ModifierSymbols(k.Modifiers) + name)})
			continue
		}
		if s.ShortcutsOnly {
			continue
		}
		var text []rune
		for _, k := range b.Keys {
			text = typedText(text, k)
		}
		if len(text) > 0 {
			overlays = append(overlays, overlay{start: b.Start, end: b.End, text: text})
		}
	}

	kfs := make([]timeline.Keyframe[timeline.Keystroke], 0, len(overlays))
	for _, o := range overlays {
		kfs = append(kfs, timeline.Keyframe[timeline.Keystroke]{
			ID:   timeline.GeneratedID(timeline.KindKeystroke, len(kfs), o.start),
			Time: o.start,
			Value: timeline.Keystroke{
				Text:     truncateRunes(o.text, s.MaxChars),
				Duration: o.end - o.start + s.DisplayDuration,
				FadeIn:   s.FadeIn,
				FadeOut:  s.FadeOut,
				Position: timeline.KeystrokePosition,
			},
			Easing: easing.EaseOut(),
		})
	}
	return kfs
}

// truncateRunes keeps the tail of long text, marking the cut with "...".
func truncateRunes(text []rune, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return string(text)
	}
	if limit <= 3 {
		return string(text[len(text)-limit:])
	}
	return "..." + string(text[len(text)-(limit-3):])
}
