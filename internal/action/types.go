package action

import (
	"time"
)

// Kind classifies a recorded interaction
type Kind string

const (
	// KindClick is a pointer click on an element
	KindClick Kind = "click"
	// KindText is a text entry into an input-capable element
	KindText Kind = "text"
	// KindKey is a semantically meaningful key press (Enter, Tab, arrows...)
	KindKey Kind = "key"
	// KindScroll is a window scroll position change
	KindScroll Kind = "scroll"
	// KindNavigation is a page URL change or a session boundary marker
	KindNavigation Kind = "navigation"
)

// Pseudo-targets used when an action is not bound to a page element
const (
	TargetWindow  = "window"
	TargetPage    = "page"
	TargetSession = "session"
)

// Redacted is the sentinel persisted in place of secret field values.
// The literal entered value never reaches the store.
const Redacted = "[REDACTED]"

// Modifiers holds the modifier flags of a key press
type Modifiers struct {
	Alt   bool `json:"alt,omitempty"`
	Ctrl  bool `json:"ctrl,omitempty"`
	Shift bool `json:"shift,omitempty"`
	Meta  bool `json:"meta,omitempty"`
}

// Payload carries the kind-specific data of an action. Fields not relevant
// to the action's kind stay zero and are omitted from JSON.
type Payload struct {
	// Click diagnostics
	Tag       string `json:"tag,omitempty"`
	Text      string `json:"text,omitempty"`
	ElementID string `json:"element_id,omitempty"`
	Class     string `json:"class,omitempty"`

	// Text entry
	Value    string `json:"value,omitempty"`
	Redacted bool   `json:"redacted,omitempty"`

	// Key press
	Key       string    `json:"key,omitempty"`
	Modifiers Modifiers `json:"modifiers,omitzero"`

	// Scroll offsets
	ScrollX int `json:"scroll_x,omitempty"`
	ScrollY int `json:"scroll_y,omitempty"`

	// Navigation destination
	URL string `json:"url,omitempty"`
}

// Action is one observed or replayed interaction. Actions belong to exactly
// one session and are immutable once appended.
type Action struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Target      string    `json:"target"`
	Timestamp   time.Time `json:"timestamp"`
	PageURL     string    `json:"page_url"`
	Payload     Payload   `json:"payload"`
	Description string    `json:"description"`
}
