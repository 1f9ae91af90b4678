// Package bridge connects the engine to the browser extension over a
// websocket. Captured interface events flow in and feed the recorder;
// element queries and synthesized operations flow out as commands with
// correlation ids; user signals are broadcast to the extension UI.
package bridge

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/formpilot/engine/internal/action"
	"github.com/formpilot/engine/internal/logger"
	"github.com/formpilot/engine/internal/notify"
	"github.com/formpilot/engine/internal/recorder"
	"github.com/formpilot/engine/internal/selector"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from the peer
	maxMessageSize = 512 * 1024

	// commandTimeout bounds the wait for a command reply
	commandTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The socket only listens on loopback; the extension connects
		// with a browser origin that cannot be allow-listed statically.
		return true
	},
}

// NotConnectedError indicates no extension is attached to the bridge
type NotConnectedError struct{}

func (NotConnectedError) Error() string {
	return "browser extension is not connected"
}

// CommandError indicates the extension rejected a command
type CommandError struct {
	Op     string
	Reason string
}

func (e CommandError) Error() string {
	return fmt.Sprintf("%s command failed: %s", e.Op, e.Reason)
}

// Bridge is the engine side of the extension connection. One page
// connection is active at a time; a newer connection replaces the old.
type Bridge struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	pending map[string]chan inbound
	subs    map[action.Kind]map[int]func(recorder.Event)
	subSeq  int
	cmdSeq  uint64
	url     string

	mutations atomic.Uint64
	log       zerolog.Logger
}

// New creates a bridge with no extension attached
func New() *Bridge {
	return &Bridge{
		pending: make(map[string]chan inbound),
		subs:    make(map[action.Kind]map[int]func(recorder.Event)),
		log:     logger.WithComponent("bridge"),
	}
}

// ServeHTTP upgrades an extension connection and runs its read loop
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	b.mu.Lock()
	if b.conn != nil {
		b.log.Warn().Msg("Replacing existing extension connection")
		//nolint:errcheck // Old connection is being discarded
		_ = b.conn.Close()
		b.failPendingLocked("connection replaced")
	}
	b.conn = conn
	b.mu.Unlock()

	b.log.Info().Str("remote", r.RemoteAddr).Msg("Extension connected")
	b.readLoop(conn)
}

// Connected reports whether an extension is attached
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Close drops the active connection and fails outstanding commands
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	b.failPendingLocked("bridge closed")
	return err
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
			b.failPendingLocked("connection lost")
		}
		b.mu.Unlock()
		//nolint:errcheck // Connection is already going away
		_ = conn.Close()
		b.log.Info().Msg("Extension disconnected")
	}()

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.log.Warn().Err(err).Msg("Websocket read error")
			}
			return
		}

		switch msg.Type {
		case msgHello, msgURL:
			b.mu.Lock()
			b.url = msg.URL
			b.mu.Unlock()
		case msgMutation:
			b.mutations.Add(1)
		case msgEvent:
			b.dispatchEvent(msg.Event)
		case msgResult:
			b.mu.Lock()
			ch, ok := b.pending[msg.ID]
			if ok {
				delete(b.pending, msg.ID)
			}
			b.mu.Unlock()
			if ok {
				ch <- msg
			}
		default:
			b.log.Warn().Str("type", msg.Type).Msg("Unknown message from extension")
		}
	}
}

// Subscribe implements the recorder's EventSource port
func (b *Bridge) Subscribe(kind action.Kind, handler func(recorder.Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subSeq++
	id := b.subSeq
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]func(recorder.Event))
	}
	b.subs[kind][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[kind], id)
	}
}

func (b *Bridge) dispatchEvent(ev *wireEvent) {
	if ev == nil {
		return
	}
	kind, ok := eventKind(ev.Kind)
	if !ok {
		b.log.Warn().Str("kind", ev.Kind).Msg("Unknown event kind from extension")
		return
	}

	event := recorder.Event{
		Kind:    kind,
		Value:   ev.Value,
		Key:     ev.Key,
		Mods:    ev.Modifiers,
		ScrollX: ev.ScrollX,
		ScrollY: ev.ScrollY,
		URL:     ev.URL,
	}
	if ev.Node != nil {
		event.Element = &remoteElement{bridge: b, node: *ev.Node}
	}

	b.mu.Lock()
	handlers := make([]func(recorder.Event), 0, len(b.subs[kind]))
	for _, h := range b.subs[kind] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

func eventKind(kind string) (action.Kind, bool) {
	switch action.Kind(kind) {
	case action.KindClick, action.KindText, action.KindKey, action.KindScroll:
		return action.Kind(kind), true
	default:
		return "", false
	}
}

// Query implements the selector Finder port
func (b *Bridge) Query(locator string) (selector.Element, bool) {
	resp, err := b.command(outbound{Op: opQuery, Locator: locator})
	if err != nil || !resp.Found || resp.Node == nil {
		return nil, false
	}
	return &remoteElement{bridge: b, node: *resp.Node}, true
}

// URL implements the recorder PageInfo and replay Page ports
func (b *Bridge) URL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url
}

// Navigate implements the replay Page port
func (b *Bridge) Navigate(url string) error {
	_, err := b.command(outbound{Op: opNavigate, URL: url})
	return err
}

// SetScroll implements the replay Page port
func (b *Bridge) SetScroll(x, y int) error {
	_, err := b.command(outbound{Op: opSetScroll, X: x, Y: y})
	return err
}

// MutationCount implements the replay Page port
func (b *Bridge) MutationCount() uint64 {
	return b.mutations.Load()
}

// Notify implements the user-signal port: signals are forwarded to the
// extension UI, fire-and-forget
func (b *Bridge) Notify(message string, severity notify.Severity, context map[string]string) {
	err := b.send(outbound{
		Type:     msgNotice,
		Message:  message,
		Severity: string(severity),
		Context:  context,
	})
	if err != nil {
		b.log.Debug().Err(err).Msg("Signal not delivered to extension")
	}
}

// command sends one operation to the extension and waits for its reply
func (b *Bridge) command(msg outbound) (inbound, error) {
	b.mu.Lock()
	if b.conn == nil {
		b.mu.Unlock()
		return inbound{}, NotConnectedError{}
	}
	b.cmdSeq++
	id := strconv.FormatUint(b.cmdSeq, 10)
	ch := make(chan inbound, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	msg.Type = msgCommand
	msg.ID = id
	if err := b.send(msg); err != nil {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return inbound{}, err
	}

	select {
	case resp := <-ch:
		if !resp.OK && resp.Error != "" {
			return resp, CommandError{Op: msg.Op, Reason: resp.Error}
		}
		return resp, nil
	case <-time.After(commandTimeout):
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return inbound{}, CommandError{Op: msg.Op, Reason: "timed out waiting for extension"}
	}
}

func (b *Bridge) send(msg outbound) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return NotConnectedError{}
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	//nolint:errcheck // Deadline errors surface on the write itself
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// failPendingLocked resolves every outstanding command with an error
// reply. Caller holds b.mu.
func (b *Bridge) failPendingLocked(reason string) {
	for id, ch := range b.pending {
		ch <- inbound{Type: msgResult, ID: id, OK: false, Error: reason}
		delete(b.pending, id)
	}
}
