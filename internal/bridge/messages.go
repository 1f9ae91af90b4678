package bridge

import (
	"github.com/formpilot/engine/internal/action"
)

// Message types on the extension socket
const (
	msgHello    = "hello"    // extension connected, carries the page URL
	msgEvent    = "event"    // captured interface event
	msgResult   = "result"   // reply to a command
	msgMutation = "mutation" // page structure changed
	msgURL      = "url"      // page URL changed
	msgCommand  = "command"  // engine -> extension operation
	msgNotice   = "notice"   // engine -> extension user signal
)

// Command operations understood by the content script
const (
	opQuery          = "query"
	opClick          = "click"
	opClear          = "clear"
	opInsertChar     = "insert_char"
	opCommitInput    = "commit_input"
	opSendKey        = "send_key"
	opScrollIntoView = "scroll_into_view"
	opNavigate       = "navigate"
	opSetScroll      = "set_scroll"
)

// nodeSnapshot is the extension's serialized view of one element. The
// node id stays valid until the page navigates.
type nodeSnapshot struct {
	NodeID  int64             `json:"node_id"`
	Tag     string            `json:"tag"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Classes []string          `json:"classes,omitempty"`
	Text    string            `json:"text,omitempty"`
	Ordinal int               `json:"ordinal,omitempty"`
	Visible bool              `json:"visible"`
	Enabled bool              `json:"enabled"`
}

// wireEvent is one captured interface event
type wireEvent struct {
	Kind      string           `json:"kind"`
	Node      *nodeSnapshot    `json:"node,omitempty"`
	Value     string           `json:"value,omitempty"`
	Key       string           `json:"key,omitempty"`
	Modifiers action.Modifiers `json:"modifiers,omitzero"`
	ScrollX   int              `json:"scroll_x,omitempty"`
	ScrollY   int              `json:"scroll_y,omitempty"`
	URL       string           `json:"url,omitempty"`
}

// inbound is any message received from the extension
type inbound struct {
	Type string `json:"type"`

	// hello / url
	URL string `json:"url,omitempty"`

	// event
	Event *wireEvent `json:"event,omitempty"`

	// result
	ID    string        `json:"id,omitempty"`
	OK    bool          `json:"ok,omitempty"`
	Error string        `json:"error,omitempty"`
	Found bool          `json:"found,omitempty"`
	Node  *nodeSnapshot `json:"node,omitempty"`
}

// outbound is any message sent to the extension
type outbound struct {
	Type string `json:"type"`

	// command
	ID        string            `json:"id,omitempty"`
	Op        string            `json:"op,omitempty"`
	Locator   string            `json:"locator,omitempty"`
	NodeID    int64             `json:"node_id,omitempty"`
	Value     string            `json:"value,omitempty"`
	Key       string            `json:"key,omitempty"`
	Modifiers *action.Modifiers `json:"modifiers,omitempty"`
	X         int               `json:"x,omitempty"`
	Y         int               `json:"y,omitempty"`
	URL       string            `json:"url,omitempty"`

	// notice
	Message  string            `json:"message,omitempty"`
	Severity string            `json:"severity,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}
