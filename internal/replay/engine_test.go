package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpilot/engine/internal/action"
	"github.com/formpilot/engine/internal/exclusive"
	"github.com/formpilot/engine/internal/notify"
	"github.com/formpilot/engine/internal/pattern"
	"github.com/formpilot/engine/internal/selector"
	"github.com/formpilot/engine/internal/session"
)

const waitFor = 5 * time.Second

// scriptedElement records operations and fails a scripted number of clicks
type scriptedElement struct {
	mu         sync.Mutex
	locator    string
	enabled    bool
	visible    bool
	failClicks int
	calls      *callLog
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.calls...)
}

func (e *scriptedElement) Tag() string        { return "button" }
func (e *scriptedElement) Attr(string) string { return "" }
func (e *scriptedElement) Classes() []string  { return nil }
func (e *scriptedElement) Text() string       { return "" }
func (e *scriptedElement) Ordinal() int       { return 1 }

func (e *scriptedElement) Visible() bool { return e.visible }
func (e *scriptedElement) Enabled() bool { return e.enabled }

func (e *scriptedElement) ScrollIntoView() error { return nil }

func (e *scriptedElement) Click() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.add("click " + e.locator)
	if e.failClicks > 0 {
		e.failClicks--
		return errors.New("click did not register")
	}
	return nil
}

func (e *scriptedElement) Clear() error {
	e.calls.add("clear " + e.locator)
	return nil
}

func (e *scriptedElement) InsertChar(c rune) error {
	e.calls.add(fmt.Sprintf("insert %c %s", c, e.locator))
	return nil
}

func (e *scriptedElement) CommitInput() error {
	e.calls.add("commit " + e.locator)
	return nil
}

func (e *scriptedElement) SendKey(key string, _ action.Modifiers) error {
	e.calls.add("key " + key + " " + e.locator)
	return nil
}

// scriptedFinder serves elements by locator, including challenge toggles
type scriptedFinder struct {
	mu       sync.Mutex
	elements map[string]selector.Element
}

func (f *scriptedFinder) Query(locator string) (selector.Element, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[locator]
	return el, ok
}

func (f *scriptedFinder) set(locator string, el selector.Element) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.elements == nil {
		f.elements = make(map[string]selector.Element)
	}
	f.elements[locator] = el
}

func (f *scriptedFinder) remove(locator string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, locator)
}

// scriptedPage is an in-memory replay.Page
type scriptedPage struct {
	mu        sync.Mutex
	url       string
	scrollX   int
	scrollY   int
	mutations uint64
	calls     *callLog
}

func (p *scriptedPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *scriptedPage) Navigate(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.calls.add("navigate " + url)
	return nil
}

func (p *scriptedPage) SetScroll(x, y int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollX, p.scrollY = x, y
	p.calls.add(fmt.Sprintf("scroll %d,%d", x, y))
	return nil
}

func (p *scriptedPage) MutationCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutations
}

// sessionMap is an in-memory SessionSource and pattern corpus
type sessionMap struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func (m *sessionMap) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return sess, nil
}

func (m *sessionMap) List(ctx context.Context) ([]*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*session.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out, nil
}

type signalLog struct {
	mu      sync.Mutex
	signals []capturedSignal
}

type capturedSignal struct {
	message  string
	severity notify.Severity
	context  map[string]string
}

func (s *signalLog) Notify(message string, severity notify.Severity, context map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, capturedSignal{message, severity, context})
}

func (s *signalLog) bySeverity(severity notify.Severity) []capturedSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []capturedSignal
	for _, sig := range s.signals {
		if sig.severity == severity {
			out = append(out, sig)
		}
	}
	return out
}

type engineHarness struct {
	engine  *Engine
	store   *sessionMap
	finder  *scriptedFinder
	page    *scriptedPage
	signals *signalLog
	gate    *exclusive.Gate
	calls   *callLog
}

func setupTestEngine(t *testing.T, threshold int) *engineHarness {
	t.Helper()
	calls := &callLog{}
	h := &engineHarness{
		store:   &sessionMap{sessions: make(map[string]*session.Session)},
		finder:  &scriptedFinder{},
		page:    &scriptedPage{url: "https://jobs.example.com/apply", calls: calls},
		signals: &signalLog{},
		gate:    exclusive.NewGate(),
		calls:   calls,
	}
	filter := pattern.New(h.store, threshold)
	h.engine = New(h.store, filter, h.finder, h.page, h.signals, h.gate, nil)
	return h
}

// fastConfig disables pacing so tests run in milliseconds
func fastConfig() Config {
	return Config{
		HumanLikeDelays:  false,
		TypingDelay:      0,
		PauseOnChallenge: true,
		MaxRetries:       3,
		ResolveWait:      time.Millisecond,
		QuietInterval:    time.Millisecond,
		QuietTimeout:     5 * time.Millisecond,
	}
}

func recordedAction(seq int, kind action.Kind, target string, payload action.Payload) action.Action {
	a := action.Action{
		ID:        fmt.Sprintf("act-%06d", seq),
		Kind:      kind,
		Target:    target,
		Timestamp: time.Now(),
		PageURL:   "https://jobs.example.com/apply",
		Payload:   payload,
	}
	a.Description = action.Describe(a)
	return a
}

func (h *engineHarness) addSession(id string, actions ...action.Action) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.sessions[id] = &session.Session{
		ID:      id,
		Status:  session.StatusCompleted,
		Actions: actions,
	}
}

func (h *engineHarness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.engine.State() == StateIdle
	}, waitFor, time.Millisecond)
}

func (h *engineHarness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.engine.State() == want
	}, waitFor, time.Millisecond)
}

func TestEngineReplaysStableActionsInOrder(t *testing.T) {
	h := setupTestEngine(t, 1)

	submit := &scriptedElement{locator: "#submit", enabled: true, visible: true, calls: h.calls}
	email := &scriptedElement{locator: "#email", enabled: true, visible: true, calls: h.calls}
	h.finder.set("#submit", submit)
	h.finder.set("#email", email)

	h.addSession("sess-1",
		recordedAction(1, action.KindText, "#email", action.Payload{Value: "ada@example.com"}),
		recordedAction(2, action.KindScroll, action.TargetWindow, action.Payload{ScrollY: 400}),
		recordedAction(3, action.KindClick, "#submit", action.Payload{}),
	)

	require.NoError(t, h.engine.Start(context.Background(), "sess-1", fastConfig()))
	h.waitIdle(t)

	p := h.engine.Progress()
	assert.Equal(t, OutcomeCompleted, p.Outcome)
	assert.Empty(t, h.gate.Holder())

	calls := h.calls.snapshot()
	require.NotEmpty(t, calls)
	// Typing happens first, one insert per character, then scroll and click
	assert.Equal(t, "clear #email", calls[0])
	assert.Equal(t, "insert a #email", calls[1])
	assert.Contains(t, calls, "commit #email")
	assert.Equal(t, "scroll 0,400", calls[len(calls)-2])
	assert.Equal(t, "click #submit", calls[len(calls)-1])
}

func TestEngineSkipsUnstableActions(t *testing.T) {
	h := setupTestEngine(t, 3)

	submit := &scriptedElement{locator: "#submit", enabled: true, visible: true, calls: h.calls}
	oneOff := &scriptedElement{locator: "#one-off", enabled: true, visible: true, calls: h.calls}
	h.finder.set("#submit", submit)
	h.finder.set("#one-off", oneOff)

	// "#submit" recurs in three completed sessions, "#one-off" only once
	h.addSession("sess-1",
		recordedAction(1, action.KindClick, "#submit", action.Payload{}),
		recordedAction(2, action.KindClick, "#one-off", action.Payload{}),
	)
	h.addSession("sess-2", recordedAction(1, action.KindClick, "#submit", action.Payload{}))
	h.addSession("sess-3", recordedAction(1, action.KindClick, "#submit", action.Payload{}))

	require.NoError(t, h.engine.Start(context.Background(), "sess-1", fastConfig()))
	h.waitIdle(t)

	assert.Equal(t, OutcomeCompleted, h.engine.Progress().Outcome)
	calls := h.calls.snapshot()
	assert.Contains(t, calls, "click #submit")
	assert.NotContains(t, calls, "click #one-off")
}

func TestEngineRetryBudgetExhaustion(t *testing.T) {
	h := setupTestEngine(t, 1)

	ok1 := &scriptedElement{locator: "#step-1", enabled: true, visible: true, calls: h.calls}
	ok2 := &scriptedElement{locator: "#step-2", enabled: true, visible: true, calls: h.calls}
	ok3 := &scriptedElement{locator: "#step-3", enabled: true, visible: true, calls: h.calls}
	broken := &scriptedElement{locator: "#broken", enabled: true, visible: true, failClicks: 99, calls: h.calls}
	after := &scriptedElement{locator: "#after", enabled: true, visible: true, calls: h.calls}
	for _, el := range []*scriptedElement{ok1, ok2, ok3, broken, after} {
		h.finder.set(el.locator, el)
	}

	h.addSession("sess-1",
		recordedAction(1, action.KindClick, "#step-1", action.Payload{}),
		recordedAction(2, action.KindClick, "#step-2", action.Payload{}),
		recordedAction(3, action.KindClick, "#step-3", action.Payload{}),
		recordedAction(4, action.KindClick, "#broken", action.Payload{}),
		recordedAction(5, action.KindClick, "#after", action.Payload{}),
	)

	cfg := fastConfig()
	cfg.MaxRetries = 2
	require.NoError(t, h.engine.Start(context.Background(), "sess-1", cfg))
	h.waitIdle(t)

	assert.Equal(t, OutcomeFailed, h.engine.Progress().Outcome)
	assert.Empty(t, h.gate.Holder())

	// Initial attempt plus two retries, then the run stops dead
	var brokenClicks int
	for _, call := range h.calls.snapshot() {
		assert.NotEqual(t, "click #after", call)
		if call == "click #broken" {
			brokenClicks++
		}
	}
	assert.Equal(t, 3, brokenClicks)

	// The failure signal carries the recently executed steps
	failures := h.signals.bySeverity(notify.SeverityError)
	require.Len(t, failures, 1)
	recent := failures[0].context["recent_actions"]
	assert.Contains(t, recent, `"#step-1"`)
	assert.Contains(t, recent, `"#step-2"`)
	assert.Contains(t, recent, `"#step-3"`)
	assert.NotContains(t, recent, `"#broken"`)
}

func TestEngineRetryBudgetResetsAfterSuccess(t *testing.T) {
	h := setupTestEngine(t, 1)

	flaky1 := &scriptedElement{locator: "#flaky-1", enabled: true, visible: true, failClicks: 2, calls: h.calls}
	flaky2 := &scriptedElement{locator: "#flaky-2", enabled: true, visible: true, failClicks: 2, calls: h.calls}
	h.finder.set("#flaky-1", flaky1)
	h.finder.set("#flaky-2", flaky2)

	h.addSession("sess-1",
		recordedAction(1, action.KindClick, "#flaky-1", action.Payload{}),
		recordedAction(2, action.KindClick, "#flaky-2", action.Payload{}),
	)

	// Each action burns its full budget, but the budget belongs to the
	// action, not the run
	cfg := fastConfig()
	cfg.MaxRetries = 2
	require.NoError(t, h.engine.Start(context.Background(), "sess-1", cfg))
	h.waitIdle(t)

	assert.Equal(t, OutcomeCompleted, h.engine.Progress().Outcome)
}

func TestEnginePausesOnChallenge(t *testing.T) {
	h := setupTestEngine(t, 1)

	captcha := &scriptedElement{locator: ".g-recaptcha", enabled: true, visible: true, calls: h.calls}
	submit := &scriptedElement{locator: "#submit", enabled: true, visible: true, calls: h.calls}
	h.finder.set(".g-recaptcha", captcha)
	h.finder.set("#submit", submit)

	h.addSession("sess-1", recordedAction(1, action.KindClick, "#submit", action.Payload{}))

	require.NoError(t, h.engine.Start(context.Background(), "sess-1", fastConfig()))
	h.waitState(t, StatePaused)

	// Nothing executed while paused
	assert.NotContains(t, h.calls.snapshot(), "click #submit")
	pauses := h.signals.bySeverity(notify.SeverityPause)
	require.NotEmpty(t, pauses)

	t.Run("resume with the challenge still present re-pauses", func(t *testing.T) {
		require.NoError(t, h.engine.Resume())
		// The second pause signal proves the scan ran again at the same index
		require.Eventually(t, func() bool {
			return len(h.signals.bySeverity(notify.SeverityPause)) >= 2
		}, waitFor, time.Millisecond)
		h.waitState(t, StatePaused)
		assert.NotContains(t, h.calls.snapshot(), "click #submit")
	})

	t.Run("resume after the challenge clears proceeds", func(t *testing.T) {
		h.finder.remove(".g-recaptcha")
		require.NoError(t, h.engine.Resume())
		h.waitIdle(t)
		assert.Equal(t, OutcomeCompleted, h.engine.Progress().Outcome)
		assert.Contains(t, h.calls.snapshot(), "click #submit")
	})
}

func TestEngineStopWhilePaused(t *testing.T) {
	h := setupTestEngine(t, 1)

	captcha := &scriptedElement{locator: ".h-captcha", enabled: true, visible: true, calls: h.calls}
	h.finder.set(".h-captcha", captcha)
	h.finder.set("#submit", &scriptedElement{locator: "#submit", enabled: true, visible: true, calls: h.calls})

	h.addSession("sess-1", recordedAction(1, action.KindClick, "#submit", action.Payload{}))

	require.NoError(t, h.engine.Start(context.Background(), "sess-1", fastConfig()))
	h.waitState(t, StatePaused)

	// Stop takes effect immediately, without a resume first
	start := time.Now()
	require.NoError(t, h.engine.Stop())
	assert.Less(t, time.Since(start), waitFor)
	assert.Equal(t, StateIdle, h.engine.State())
	assert.Equal(t, OutcomeStopped, h.engine.Progress().Outcome)
	assert.Empty(t, h.gate.Holder())
}

func TestEngineStopWhileIdleIsNoOp(t *testing.T) {
	h := setupTestEngine(t, 1)
	require.NoError(t, h.engine.Stop())
	assert.Equal(t, StateIdle, h.engine.State())
}

func TestEngineRejectsConcurrentStart(t *testing.T) {
	h := setupTestEngine(t, 1)

	captcha := &scriptedElement{locator: ".g-recaptcha", enabled: true, visible: true, calls: h.calls}
	h.finder.set(".g-recaptcha", captcha)
	h.finder.set("#submit", &scriptedElement{locator: "#submit", enabled: true, visible: true, calls: h.calls})
	h.addSession("sess-1", recordedAction(1, action.KindClick, "#submit", action.Payload{}))

	require.NoError(t, h.engine.Start(context.Background(), "sess-1", fastConfig()))
	h.waitState(t, StatePaused)

	err := h.engine.Start(context.Background(), "sess-1", fastConfig())
	var already AlreadyReplayingError
	require.ErrorAs(t, err, &already)

	require.NoError(t, h.engine.Stop())
}

func TestEngineRejectedWhileRecorderHoldsGate(t *testing.T) {
	h := setupTestEngine(t, 1)
	release, err := h.gate.TryAcquire("recorder")
	require.NoError(t, err)
	defer release()

	h.addSession("sess-1", recordedAction(1, action.KindClick, "#submit", action.Payload{}))

	err = h.engine.Start(context.Background(), "sess-1", fastConfig())
	var busy exclusive.BusyError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, "recorder", busy.Holder)
}

func TestEngineResumeRequiresPaused(t *testing.T) {
	h := setupTestEngine(t, 1)

	err := h.engine.Resume()
	var invalid InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StateIdle, invalid.State)
}

func TestEngineSkipsRedactedText(t *testing.T) {
	h := setupTestEngine(t, 1)

	password := &scriptedElement{locator: "#password", enabled: true, visible: true, calls: h.calls}
	h.finder.set("#password", password)

	h.addSession("sess-1",
		recordedAction(1, action.KindText, "#password", action.Payload{Value: action.Redacted, Redacted: true}),
	)

	require.NoError(t, h.engine.Start(context.Background(), "sess-1", fastConfig()))
	h.waitIdle(t)

	assert.Equal(t, OutcomeCompleted, h.engine.Progress().Outcome)
	// The sentinel is never typed into the field
	for _, call := range h.calls.snapshot() {
		assert.NotContains(t, call, "insert")
	}
	warnings := h.signals.bySeverity(notify.SeverityWarning)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0].message, "redacted")
}

func TestEngineNavigationSkipsCurrentURL(t *testing.T) {
	h := setupTestEngine(t, 1)

	h.addSession("sess-1",
		recordedAction(1, action.KindNavigation, action.TargetSession, action.Payload{URL: "https://jobs.example.com/apply"}),
		recordedAction(2, action.KindNavigation, action.TargetPage, action.Payload{URL: "https://jobs.example.com/apply/step-2"}),
	)

	require.NoError(t, h.engine.Start(context.Background(), "sess-1", fastConfig()))
	h.waitIdle(t)

	assert.Equal(t, OutcomeCompleted, h.engine.Progress().Outcome)
	calls := h.calls.snapshot()
	// The session marker matches the current URL and is skipped; the real
	// navigation goes through
	assert.Equal(t, []string{"navigate https://jobs.example.com/apply/step-2"}, calls)
	assert.Equal(t, "https://jobs.example.com/apply/step-2", h.page.URL())
}

func TestEngineDisabledElementFailsAction(t *testing.T) {
	h := setupTestEngine(t, 1)

	disabled := &scriptedElement{locator: "#submit", enabled: false, visible: true, calls: h.calls}
	h.finder.set("#submit", disabled)

	h.addSession("sess-1", recordedAction(1, action.KindClick, "#submit", action.Payload{}))

	cfg := fastConfig()
	cfg.MaxRetries = 1
	require.NoError(t, h.engine.Start(context.Background(), "sess-1", cfg))
	h.waitIdle(t)

	assert.Equal(t, OutcomeFailed, h.engine.Progress().Outcome)
	assert.NotContains(t, h.calls.snapshot(), "click #submit")
}

func TestEngineSampleDelayBounds(t *testing.T) {
	h := setupTestEngine(t, 1)
	cfg := DefaultConfig()

	// Base in [500ms, 2s], multiplier in [0.8, 1.2]
	lower := time.Duration(float64(cfg.MinDelay) * 0.8)
	upper := time.Duration(float64(cfg.MaxDelay) * 1.2)
	for i := 0; i < 1000; i++ {
		d := h.engine.sampleDelay(cfg)
		assert.GreaterOrEqual(t, d, lower)
		assert.LessOrEqual(t, d, upper)
	}
}

func TestEngineProgressSnapshots(t *testing.T) {
	h := setupTestEngine(t, 1)

	captcha := &scriptedElement{locator: ".g-recaptcha", enabled: true, visible: true, calls: h.calls}
	h.finder.set(".g-recaptcha", captcha)
	h.finder.set("#submit", &scriptedElement{locator: "#submit", enabled: true, visible: true, calls: h.calls})
	h.addSession("sess-1",
		recordedAction(1, action.KindClick, "#submit", action.Payload{}),
		recordedAction(2, action.KindClick, "#submit", action.Payload{}),
	)

	assert.Equal(t, StateIdle, h.engine.Progress().State)

	require.NoError(t, h.engine.Start(context.Background(), "sess-1", fastConfig()))
	h.waitState(t, StatePaused)

	p := h.engine.Progress()
	assert.Equal(t, "sess-1", p.SessionID)
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, 2, p.Total)
	assert.NotEmpty(t, p.Description)

	require.NoError(t, h.engine.Stop())
	p = h.engine.Progress()
	assert.Equal(t, StateIdle, p.State)
	assert.Zero(t, p.Total)
}
