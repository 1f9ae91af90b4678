package bridge

import (
	"github.com/formpilot/engine/internal/action"
)

// remoteElement is a handle to an element living in the extension's
// page. Getters serve from the snapshot taken at query time; operations
// round-trip to the extension by node id.
type remoteElement struct {
	bridge *Bridge
	node   nodeSnapshot
}

func (e *remoteElement) Tag() string {
	return e.node.Tag
}

func (e *remoteElement) Attr(name string) string {
	return e.node.Attrs[name]
}

func (e *remoteElement) Classes() []string {
	return e.node.Classes
}

func (e *remoteElement) Text() string {
	return e.node.Text
}

func (e *remoteElement) Ordinal() int {
	return e.node.Ordinal
}

func (e *remoteElement) Visible() bool {
	return e.node.Visible
}

func (e *remoteElement) Enabled() bool {
	return e.node.Enabled
}

func (e *remoteElement) ScrollIntoView() error {
	return e.op(outbound{Op: opScrollIntoView})
}

func (e *remoteElement) Click() error {
	return e.op(outbound{Op: opClick})
}

func (e *remoteElement) Clear() error {
	return e.op(outbound{Op: opClear})
}

func (e *remoteElement) InsertChar(c rune) error {
	return e.op(outbound{Op: opInsertChar, Value: string(c)})
}

func (e *remoteElement) CommitInput() error {
	return e.op(outbound{Op: opCommitInput})
}

func (e *remoteElement) SendKey(key string, mods action.Modifiers) error {
	msg := outbound{Op: opSendKey, Key: key}
	if mods != (action.Modifiers{}) {
		msg.Modifiers = &mods
	}
	return e.op(msg)
}

func (e *remoteElement) op(msg outbound) error {
	msg.NodeID = e.node.NodeID
	_, err := e.bridge.command(msg)
	return err
}
