package recorder

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpilot/engine/internal/action"
	"github.com/formpilot/engine/internal/exclusive"
	"github.com/formpilot/engine/internal/notify"
	"github.com/formpilot/engine/internal/session"
)

// fakeSource lets tests deliver events as if the page emitted them
type fakeSource struct {
	mu       sync.Mutex
	handlers map[action.Kind][]func(Event)
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[action.Kind][]func(Event))}
}

func (f *fakeSource) Subscribe(kind action.Kind, handler func(Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[kind] = append(f.handlers[kind], handler)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[kind] = nil
	}
}

func (f *fakeSource) emit(ev Event) {
	f.mu.Lock()
	handlers := append([]func(Event){}, f.handlers[ev.Kind]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (f *fakeSource) subscribed(kind action.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[kind])
}

type fakePage struct{ url string }

func (p *fakePage) URL() string { return p.url }

// memStore is an in-memory SessionStore
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*session.Session)}
}

func (m *memStore) Create(ctx context.Context, startURL string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sess := &session.Session{
		ID:       fmt.Sprintf("sess-%d", m.nextID),
		StartURL: startURL,
		Platform: session.ClassifyPlatform(startURL),
		Status:   session.StatusRecording,
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *memStore) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	copied := *sess
	copied.Actions = append([]action.Action{}, sess.Actions...)
	return &copied, nil
}

func (m *memStore) AppendAction(ctx context.Context, sessionID string, a action.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	sess.Actions = append(sess.Actions, a)
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, sessionID string, status session.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	sess.Status = status
	return nil
}

// capturedSignal is one notification observed by the fake signaler
type capturedSignal struct {
	message  string
	severity notify.Severity
	context  map[string]string
}

type captureSignaler struct {
	mu      sync.Mutex
	signals []capturedSignal
}

func (c *captureSignaler) Notify(message string, severity notify.Severity, context map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = append(c.signals, capturedSignal{message, severity, context})
}

func (c *captureSignaler) bySeverity(severity notify.Severity) []capturedSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []capturedSignal
	for _, s := range c.signals {
		if s.severity == severity {
			out = append(out, s)
		}
	}
	return out
}

// testElement mirrors a page element with the fields the recorder reads
type testElement struct {
	tag     string
	attrs   map[string]string
	classes []string
	text    string
	ordinal int
}

func (e *testElement) Tag() string          { return e.tag }
func (e *testElement) Attr(n string) string { return e.attrs[n] }
func (e *testElement) Classes() []string    { return e.classes }
func (e *testElement) Text() string         { return e.text }
func (e *testElement) Ordinal() int         { return e.ordinal }
func (e *testElement) Visible() bool        { return true }
func (e *testElement) Enabled() bool        { return true }

func (e *testElement) ScrollIntoView() error { return nil }
func (e *testElement) Click() error          { return nil }
func (e *testElement) Clear() error          { return nil }
func (e *testElement) InsertChar(rune) error { return nil }
func (e *testElement) CommitInput() error    { return nil }

func (e *testElement) SendKey(string, action.Modifiers) error { return nil }

type recorderHarness struct {
	recorder *Recorder
	source   *fakeSource
	store    *memStore
	signals  *captureSignaler
	gate     *exclusive.Gate
}

func setupTestRecorder(t *testing.T) *recorderHarness {
	t.Helper()
	h := &recorderHarness{
		source:  newFakeSource(),
		store:   newMemStore(),
		signals: &captureSignaler{},
		gate:    exclusive.NewGate(),
	}
	h.recorder = New(h.source, &fakePage{url: "https://jobs.example.com/apply"}, h.store, h.signals, h.gate, nil)
	return h
}

func TestRecorderStartStop(t *testing.T) {
	h := setupTestRecorder(t)
	ctx := context.Background()

	id, err := h.recorder.Start(ctx)
	require.NoError(t, err)
	assert.True(t, h.recorder.Recording())
	assert.Equal(t, id, h.recorder.SessionID())
	assert.Equal(t, "recorder", h.gate.Holder())

	require.NoError(t, h.recorder.Stop(ctx))
	assert.False(t, h.recorder.Recording())
	assert.Empty(t, h.gate.Holder())

	sess, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, sess.Status)

	// Start and end markers bracket the session
	require.Len(t, sess.Actions, 2)
	first, last := sess.Actions[0], sess.Actions[1]
	assert.Equal(t, action.KindNavigation, first.Kind)
	assert.Equal(t, action.TargetSession, first.Target)
	assert.Equal(t, action.KindNavigation, last.Kind)
	assert.Equal(t, action.TargetSession, last.Target)
}

func TestRecorderDoubleStart(t *testing.T) {
	h := setupTestRecorder(t)
	ctx := context.Background()

	first, err := h.recorder.Start(ctx)
	require.NoError(t, err)

	_, err = h.recorder.Start(ctx)
	var already AlreadyRecordingError
	require.ErrorAs(t, err, &already)

	// The original session is unaffected
	assert.Equal(t, first, h.recorder.SessionID())
	require.NoError(t, h.recorder.Stop(ctx))
}

func TestRecorderStopWithoutStart(t *testing.T) {
	h := setupTestRecorder(t)

	err := h.recorder.Stop(context.Background())
	var notRecording NotRecordingError
	require.ErrorAs(t, err, &notRecording)
}

func TestRecorderRejectedWhileGateHeld(t *testing.T) {
	h := setupTestRecorder(t)
	release, err := h.gate.TryAcquire("replay")
	require.NoError(t, err)
	defer release()

	_, err = h.recorder.Start(context.Background())
	var busy exclusive.BusyError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, "replay", busy.Holder)
}

func TestRecorderCapturesClick(t *testing.T) {
	h := setupTestRecorder(t)
	ctx := context.Background()
	id, err := h.recorder.Start(ctx)
	require.NoError(t, err)

	h.source.emit(Event{
		Kind: action.KindClick,
		Element: &testElement{
			tag:   "button",
			attrs: map[string]string{"id": "apply-btn"},
			text:  "Apply Now",
		},
		URL: "https://jobs.example.com/apply",
	})

	sess, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, sess.Actions, 2)

	click := sess.Actions[1]
	assert.Equal(t, action.KindClick, click.Kind)
	assert.Equal(t, "#apply-btn", click.Target)
	assert.Equal(t, "Apply Now", click.Payload.Text)
	assert.Equal(t, `clicked "Apply Now" matching "#apply-btn"`, click.Description)
}

func TestRecorderRedactsSecrets(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]string
		value string
	}{
		{"password type", map[string]string{"id": "pw", "type": "password"}, "hunter2"},
		{"current password autocomplete", map[string]string{"id": "pw", "autocomplete": "current-password"}, "hunter2"},
		{"new password autocomplete", map[string]string{"id": "pw", "autocomplete": "new-password"}, "hunter2"},
		{"one time code", map[string]string{"id": "otp", "autocomplete": "one-time-code"}, "123456"},
		{"empty secret value", map[string]string{"id": "pw", "type": "password"}, ""},
		{"unicode secret value", map[string]string{"id": "pw", "type": "password"}, "pässwörd🔑"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestRecorder(t)
			ctx := context.Background()
			id, err := h.recorder.Start(ctx)
			require.NoError(t, err)

			h.source.emit(Event{
				Kind:    action.KindText,
				Element: &testElement{tag: "input", attrs: tt.attrs},
				Value:   tt.value,
			})

			sess, err := h.store.Get(ctx, id)
			require.NoError(t, err)
			require.Len(t, sess.Actions, 2)

			text := sess.Actions[1]
			assert.Equal(t, action.Redacted, text.Payload.Value)
			assert.True(t, text.Payload.Redacted)
			if tt.value != "" {
				assert.NotContains(t, text.Payload.Value, tt.value)
				assert.NotContains(t, text.Description, tt.value)
			}
		})
	}
}

func TestRecorderKeepsPlainText(t *testing.T) {
	h := setupTestRecorder(t)
	ctx := context.Background()
	id, err := h.recorder.Start(ctx)
	require.NoError(t, err)

	h.source.emit(Event{
		Kind:    action.KindText,
		Element: &testElement{tag: "input", attrs: map[string]string{"id": "name"}},
		Value:   "Ada Lovelace",
	})

	sess, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, sess.Actions, 2)
	assert.Equal(t, "Ada Lovelace", sess.Actions[1].Payload.Value)
	assert.False(t, sess.Actions[1].Payload.Redacted)
}

func TestRecorderKeyAllowList(t *testing.T) {
	h := setupTestRecorder(t)
	ctx := context.Background()
	id, err := h.recorder.Start(ctx)
	require.NoError(t, err)

	el := &testElement{tag: "input", attrs: map[string]string{"id": "search"}}
	h.source.emit(Event{Kind: action.KindKey, Element: el, Key: "Enter"})
	h.source.emit(Event{Kind: action.KindKey, Element: el, Key: "a"})
	h.source.emit(Event{Kind: action.KindKey, Element: el, Key: "ArrowDown"})

	sess, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	// Start marker plus the two allow-listed keys; "a" is covered by the
	// text capture path instead
	require.Len(t, sess.Actions, 3)
	assert.Equal(t, "Enter", sess.Actions[1].Payload.Key)
	assert.Equal(t, "ArrowDown", sess.Actions[2].Payload.Key)
}

func TestRecorderIgnoresEventsAfterStop(t *testing.T) {
	h := setupTestRecorder(t)
	ctx := context.Background()
	id, err := h.recorder.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, h.recorder.Stop(ctx))

	assert.Zero(t, h.source.subscribed(action.KindClick))
	h.source.emit(Event{
		Kind:    action.KindClick,
		Element: &testElement{tag: "button", attrs: map[string]string{"id": "late"}},
	})

	sess, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.Actions, 2)
}

func TestRecorderScrollUsesWindowTarget(t *testing.T) {
	h := setupTestRecorder(t)
	ctx := context.Background()
	id, err := h.recorder.Start(ctx)
	require.NoError(t, err)

	h.source.emit(Event{Kind: action.KindScroll, ScrollX: 0, ScrollY: 640})

	sess, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, sess.Actions, 2)
	assert.Equal(t, action.TargetWindow, sess.Actions[1].Target)
	assert.Equal(t, 640, sess.Actions[1].Payload.ScrollY)
}

func TestRecorderSignalsFeedback(t *testing.T) {
	h := setupTestRecorder(t)
	ctx := context.Background()
	_, err := h.recorder.Start(ctx)
	require.NoError(t, err)

	h.source.emit(Event{
		Kind:    action.KindClick,
		Element: &testElement{tag: "button", attrs: map[string]string{"id": "next"}},
	})
	require.NoError(t, h.recorder.Stop(ctx))

	infos := h.signals.bySeverity(notify.SeverityInfo)
	require.NotEmpty(t, infos)
	assert.Contains(t, infos[len(infos)-1].message, "recording complete")
}
