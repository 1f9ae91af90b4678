package selector

import (
	"github.com/formpilot/engine/internal/action"
)

// Element is a handle to a live interface element in the host page. The
// getters reflect a snapshot taken when the handle was obtained; the
// operations are synthesized against the live element.
type Element interface {
	// Tag returns the lowercase tag name
	Tag() string
	// Attr returns the value of an attribute, or "" when absent
	Attr(name string) string
	// Classes returns the element's class tokens
	Classes() []string
	// Text returns the element's visible text content
	Text() string
	// Ordinal returns the 1-based position among same-tag siblings
	Ordinal() int
	// Visible reports whether the element has on-screen geometry
	Visible() bool
	// Enabled reports whether the element accepts input
	Enabled() bool

	ScrollIntoView() error
	Click() error
	// Clear empties an input-capable element's value
	Clear() error
	// InsertChar appends one character, firing an input notification
	InsertChar(c rune) error
	// CommitInput fires the final change notification after typing
	CommitInput() error
	SendKey(key string, mods action.Modifiers) error
}

// Finder resolves a locator string to a live element. It is the engine's
// window into the host page; hosts return false when nothing matches.
type Finder interface {
	Query(locator string) (Element, bool)
}
