// Package recorder observes interface events from the host page and
// persists them as structured actions.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/formpilot/engine/internal/action"
	"github.com/formpilot/engine/internal/exclusive"
	"github.com/formpilot/engine/internal/logger"
	"github.com/formpilot/engine/internal/metrics"
	"github.com/formpilot/engine/internal/notify"
	"github.com/formpilot/engine/internal/selector"
	"github.com/formpilot/engine/internal/session"
)

// maxTextSnippet bounds the element text captured for click diagnostics
const maxTextSnippet = 40

// keyAllowList is the fixed set of semantically meaningful keys recorded
// as key-signal actions; everything else is typing noise already covered
// by text-entry events.
var keyAllowList = map[string]bool{
	"Enter":      true,
	"Tab":        true,
	"Escape":     true,
	"ArrowUp":    true,
	"ArrowDown":  true,
	"ArrowLeft":  true,
	"ArrowRight": true,
}

// inputCapable lists tags whose value changes are recorded as text entry
var inputCapable = map[string]bool{
	"input":    true,
	"textarea": true,
	"select":   true,
}

// Event is one user-generated interface event delivered by the host
type Event struct {
	Kind    action.Kind
	Element selector.Element // nil for scroll events
	Value   string
	Key     string
	Mods    action.Modifiers
	ScrollX int
	ScrollY int
	URL     string
}

// EventSource delivers document-level interface events, captured before
// any page handler can stop propagation. The returned func unsubscribes
// the handler and must be safe to call more than once.
type EventSource interface {
	Subscribe(kind action.Kind, handler func(Event)) (unsubscribe func())
}

// PageInfo exposes the active page URL at session-open time
type PageInfo interface {
	URL() string
}

// SessionStore is the recorder's view of the durable store
type SessionStore interface {
	Create(ctx context.Context, startURL string) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	AppendAction(ctx context.Context, sessionID string, a action.Action) error
	UpdateStatus(ctx context.Context, sessionID string, status session.Status) error
}

type state int

const (
	stateIdle state = iota
	stateRecording
)

// Recorder converts interface events to actions and appends them to the
// active session
type Recorder struct {
	mu        sync.Mutex
	state     state
	sessionID string
	seq       int
	unsubs    []func()
	release   func()

	source  EventSource
	page    PageInfo
	store   SessionStore
	signals notify.Signaler
	gate    *exclusive.Gate
	met     *metrics.Metrics
	log     zerolog.Logger
}

// New creates a recorder over the host ports
func New(source EventSource, page PageInfo, store SessionStore, signals notify.Signaler, gate *exclusive.Gate, met *metrics.Metrics) *Recorder {
	return &Recorder{
		source:  source,
		page:    page,
		store:   store,
		signals: signals,
		gate:    gate,
		met:     met,
		log:     logger.WithComponent("recorder"),
	}
}

// Recording reports whether a recording is active
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateRecording
}

// SessionID returns the active session id, or "" when idle
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Start opens a session, subscribes the document-level event handlers and
// appends the synthetic session-start marker. Rejected while recording or
// while replay holds the page.
func (r *Recorder) Start(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateRecording {
		return "", AlreadyRecordingError{}
	}

	release, err := r.gate.TryAcquire("recorder")
	if err != nil {
		return "", err
	}

	startURL := r.page.URL()
	sess, err := r.store.Create(ctx, startURL)
	if err != nil {
		release()
		return "", err
	}

	r.state = stateRecording
	r.sessionID = sess.ID
	r.seq = 0
	r.release = release

	// Every subscription is tracked individually so Stop can remove
	// exactly the handlers it added.
	r.unsubs = []func(){
		r.source.Subscribe(action.KindClick, r.handleClick),
		r.source.Subscribe(action.KindText, r.handleText),
		r.source.Subscribe(action.KindKey, r.handleKey),
		r.source.Subscribe(action.KindScroll, r.handleScroll),
	}

	start := r.newAction(action.KindNavigation, action.TargetSession, startURL, action.Payload{URL: startURL})
	r.persist(ctx, sess.ID, start)

	r.log.Info().
		Str("session", sess.ID).
		Str("platform", string(sess.Platform)).
		Msg("Recording started")
	r.signals.Notify("recording started", notify.SeverityInfo, map[string]string{"session": sess.ID})

	return sess.ID, nil
}

// Stop appends the end-of-session marker, completes the session and tears
// down every listener. The reported action count comes from the persisted
// session's log, not a separately tracked counter.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()

	if r.state != stateRecording {
		r.mu.Unlock()
		return NotRecordingError{}
	}

	sessionID := r.sessionID
	end := r.newAction(action.KindNavigation, action.TargetSession, r.page.URL(), action.Payload{URL: r.page.URL()})
	r.persist(ctx, sessionID, end)

	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
	r.state = stateIdle
	r.sessionID = ""
	r.seq = 0
	release := r.release
	r.release = nil
	r.mu.Unlock()

	if release != nil {
		release()
	}

	if err := r.store.UpdateStatus(ctx, sessionID, session.StatusCompleted); err != nil {
		return err
	}

	count := 0
	if sess, err := r.store.Get(ctx, sessionID); err == nil {
		count = len(sess.Actions)
	}

	if r.met != nil {
		r.met.SessionsRecorded.Inc()
	}
	r.log.Info().Str("session", sessionID).Int("actions", count).Msg("Recording complete")
	r.signals.Notify(
		fmt.Sprintf("recording complete: %d actions captured", count),
		notify.SeverityInfo,
		map[string]string{"session": sessionID},
	)
	return nil
}

func (r *Recorder) handleClick(ev Event) {
	if ev.Element == nil {
		return
	}
	r.mu.Lock()
	if r.state != stateRecording {
		r.mu.Unlock()
		return
	}
	sessionID := r.sessionID
	a := r.newAction(action.KindClick, selector.Derive(ev.Element), ev.URL, action.Payload{
		Tag:       ev.Element.Tag(),
		Text:      snippet(ev.Element.Text()),
		ElementID: ev.Element.Attr("id"),
		Class:     firstClass(ev.Element),
	})
	r.mu.Unlock()
	r.persist(context.Background(), sessionID, a)
}

func (r *Recorder) handleText(ev Event) {
	if ev.Element == nil || !inputCapable[ev.Element.Tag()] {
		return
	}
	payload := action.Payload{Value: ev.Value}
	if isSecret(ev.Element) {
		payload.Value = action.Redacted
		payload.Redacted = true
	}

	r.mu.Lock()
	if r.state != stateRecording {
		r.mu.Unlock()
		return
	}
	sessionID := r.sessionID
	a := r.newAction(action.KindText, selector.Derive(ev.Element), ev.URL, payload)
	r.mu.Unlock()
	r.persist(context.Background(), sessionID, a)
}

func (r *Recorder) handleKey(ev Event) {
	if ev.Element == nil || !keyAllowList[ev.Key] {
		return
	}
	r.mu.Lock()
	if r.state != stateRecording {
		r.mu.Unlock()
		return
	}
	sessionID := r.sessionID
	a := r.newAction(action.KindKey, selector.Derive(ev.Element), ev.URL, action.Payload{
		Key:       ev.Key,
		Modifiers: ev.Mods,
	})
	r.mu.Unlock()
	r.persist(context.Background(), sessionID, a)
}

func (r *Recorder) handleScroll(ev Event) {
	r.mu.Lock()
	if r.state != stateRecording {
		r.mu.Unlock()
		return
	}
	sessionID := r.sessionID
	a := r.newAction(action.KindScroll, action.TargetWindow, ev.URL, action.Payload{
		ScrollX: ev.ScrollX,
		ScrollY: ev.ScrollY,
	})
	r.mu.Unlock()
	r.persist(context.Background(), sessionID, a)
}

// newAction allocates the next monotonically numbered action. Caller holds
// r.mu.
func (r *Recorder) newAction(kind action.Kind, target, pageURL string, payload action.Payload) action.Action {
	r.seq++
	a := action.Action{
		ID:        fmt.Sprintf("act-%06d", r.seq),
		Kind:      kind,
		Target:    target,
		Timestamp: time.Now(),
		PageURL:   pageURL,
		Payload:   payload,
	}
	a.Description = action.Describe(a)
	return a
}

// persist appends the action, emitting the brief feedback signal. A store
// write failure is reported but never halts recording.
func (r *Recorder) persist(ctx context.Context, sessionID string, a action.Action) {
	if err := r.store.AppendAction(ctx, sessionID, a); err != nil {
		r.log.Error().Err(err).Str("session", sessionID).Str("action", a.ID).Msg("Failed to persist action")
		if r.met != nil {
			r.met.StoreWriteFailures.Inc()
		}
		r.signals.Notify(
			"action could not be saved: "+a.Description,
			notify.SeverityError,
			map[string]string{"session": sessionID, "action": a.ID},
		)
		return
	}

	if r.met != nil {
		r.met.ActionsRecorded.WithLabelValues(string(a.Kind)).Inc()
	}
	r.signals.Notify("recorded: "+a.Description, notify.SeverityInfo, map[string]string{"action": a.ID})
}

func isSecret(el selector.Element) bool {
	if el.Attr("type") == "password" {
		return true
	}
	switch el.Attr("autocomplete") {
	case "current-password", "new-password", "one-time-code":
		return true
	}
	return false
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > maxTextSnippet {
		return string(runes[:maxTextSnippet])
	}
	return text
}

func firstClass(el selector.Element) string {
	classes := el.Classes()
	if len(classes) == 0 {
		return ""
	}
	return classes[0]
}
