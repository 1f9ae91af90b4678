package action

import (
	"fmt"
	"strings"
)

// Describe derives the human-readable summary of an action from its kind,
// target and payload. It is pure and never fails; a sparse payload just
// produces a less detailed description.
func Describe(a Action) string {
	switch a.Kind {
	case KindClick:
		if a.Payload.Text != "" {
			return fmt.Sprintf("clicked %q matching %q", a.Payload.Text, a.Target)
		}
		return fmt.Sprintf("clicked element matching %q", a.Target)
	case KindText:
		if a.Payload.Redacted {
			return fmt.Sprintf("entered redacted text into %q", a.Target)
		}
		return fmt.Sprintf("entered %d characters into %q", len([]rune(a.Payload.Value)), a.Target)
	case KindKey:
		if mods := describeModifiers(a.Payload.Modifiers); mods != "" {
			return fmt.Sprintf("pressed %s+%s on %q", mods, a.Payload.Key, a.Target)
		}
		return fmt.Sprintf("pressed %s on %q", a.Payload.Key, a.Target)
	case KindScroll:
		return fmt.Sprintf("scrolled to %d,%d", a.Payload.ScrollX, a.Payload.ScrollY)
	case KindNavigation:
		if a.Target == TargetSession {
			return fmt.Sprintf("session boundary at %s", a.Payload.URL)
		}
		return fmt.Sprintf("navigated to %s", a.Payload.URL)
	default:
		return fmt.Sprintf("%s on %q", a.Kind, a.Target)
	}
}

func describeModifiers(m Modifiers) string {
	var parts []string
	if m.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if m.Alt {
		parts = append(parts, "Alt")
	}
	if m.Shift {
		parts = append(parts, "Shift")
	}
	if m.Meta {
		parts = append(parts, "Meta")
	}
	return strings.Join(parts, "+")
}
