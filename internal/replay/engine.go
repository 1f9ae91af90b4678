// Package replay re-enacts the stable subset of a recorded session against
// the current page with human-plausible pacing, bounded per-action retries
// and a pause/resume protocol for manual-intervention points.
package replay

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/formpilot/engine/internal/action"
	"github.com/formpilot/engine/internal/exclusive"
	"github.com/formpilot/engine/internal/logger"
	"github.com/formpilot/engine/internal/metrics"
	"github.com/formpilot/engine/internal/notify"
	"github.com/formpilot/engine/internal/pattern"
	"github.com/formpilot/engine/internal/selector"
	"github.com/formpilot/engine/internal/session"
)

// recentWindow is how many executed-action descriptions accompany a
// failure signal
const recentWindow = 5

// quiescencePoll is the interval at which the mutation counter is sampled
const quiescencePoll = 50 * time.Millisecond

// Page is the engine's view of the host page
type Page interface {
	URL() string
	Navigate(url string) error
	SetScroll(x, y int) error
	// MutationCount increases whenever the page structure changes; the
	// engine treats a stretch without increases as quiescence
	MutationCount() uint64
}

// SessionSource loads the session to replay
type SessionSource interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Engine walks a session's stable actions and synthesizes them against
// the current page. States: Idle -> Running -> {Paused, Idle(completed),
// Idle(failed), Idle(stopped)}.
type Engine struct {
	mu       sync.Mutex
	state    State
	outcome  Outcome
	cursor   *Cursor
	cancel   context.CancelFunc
	resumeCh chan struct{}
	release  func()
	wg       sync.WaitGroup

	store   SessionSource
	filter  *pattern.Filter
	finder  selector.Finder
	page    Page
	signals notify.Signaler
	gate    *exclusive.Gate
	met     *metrics.Metrics
	log     zerolog.Logger
	rng     *rand.Rand
}

// New creates an idle engine over the host ports
func New(store SessionSource, filter *pattern.Filter, finder selector.Finder, page Page, signals notify.Signaler, gate *exclusive.Gate, met *metrics.Metrics) *Engine {
	return &Engine{
		state:   StateIdle,
		store:   store,
		filter:  filter,
		finder:  finder,
		page:    page,
		signals: signals,
		gate:    gate,
		met:     met,
		log:     logger.WithComponent("replay"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State returns the engine's current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress returns a read-only snapshot of the replay position; it is
// callable in any state and zero-valued when Idle
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := Progress{State: e.state, Outcome: e.outcome}
	if e.cursor == nil {
		return p
	}
	p.SessionID = e.cursor.SessionID
	p.Index = e.cursor.Index
	p.Total = len(e.cursor.Actions)
	if e.cursor.Index < len(e.cursor.Actions) {
		p.Description = e.cursor.Actions[e.cursor.Index].Description
	}
	return p
}

// Start loads a session, restricts it to the actions the pattern filter
// marked stable, and begins sequential execution on the engine's own
// goroutine. Rejected while a replay is in flight or recording holds the
// page.
func (e *Engine) Start(ctx context.Context, sessionID string, cfg Config) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return AlreadyReplayingError{}
	}
	e.mu.Unlock()

	release, err := e.gate.TryAcquire("replay")
	if err != nil {
		return err
	}

	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		release()
		return err
	}

	stable, err := e.filter.Stable(ctx)
	if err != nil {
		release()
		return err
	}
	// Only repeated steps get automated: one-off actions stay manual.
	actions := pattern.FilterStable(sess.Actions, stable)

	runCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		cancel()
		release()
		return AlreadyReplayingError{}
	}
	e.state = StateRunning
	e.outcome = OutcomeNone
	e.cursor = &Cursor{
		SessionID:   sessionID,
		Actions:     actions,
		RetriesLeft: cfg.MaxRetries,
		Config:      cfg,
	}
	e.cancel = cancel
	e.resumeCh = make(chan struct{}, 1)
	e.release = release
	e.wg.Add(1)
	e.mu.Unlock()

	if e.met != nil {
		e.met.ReplaysStarted.Inc()
	}
	e.log.Info().
		Str("session", sessionID).
		Int("stable_actions", len(actions)).
		Int("recorded_actions", len(sess.Actions)).
		Msg("Replay started")

	go e.run(runCtx)
	return nil
}

// Resume re-enters the execution loop at the retained index. Valid only
// from Paused; the challenge scan runs again first, so a still-present
// challenge re-pauses immediately.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused {
		return InvalidStateError{Operation: "resume", State: e.state}
	}

	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
	return nil
}

// Stop aborts the replay from Running or Paused. It always succeeds and
// takes effect without waiting out any pending suspension.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return nil
	}
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	return nil
}

// run is the sequential execution loop; it owns all cursor mutation
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	for {
		if ctx.Err() != nil {
			e.finish(OutcomeStopped)
			return
		}

		e.mu.Lock()
		cur := e.cursor
		if cur.Index >= len(cur.Actions) {
			e.mu.Unlock()
			e.complete()
			return
		}
		act := cur.Actions[cur.Index]
		index, total := cur.Index, len(cur.Actions)
		cfg := cur.Config
		e.mu.Unlock()

		e.signals.Notify(
			fmt.Sprintf("replaying %d/%d: %s", index+1, total, act.Description),
			notify.SeverityInfo,
			map[string]string{"session": cur.SessionID},
		)

		if cfg.HumanLikeDelays {
			if !sleepCtx(ctx, e.sampleDelay(cfg)) {
				e.finish(OutcomeStopped)
				return
			}
		}

		if cfg.PauseOnChallenge && e.challengeVisible() {
			if !e.awaitResume(ctx) {
				e.finish(OutcomeStopped)
				return
			}
			// Same index: the challenge scan re-runs before the action
			continue
		}

		start := time.Now()
		err := e.execute(ctx, act, cfg)
		if e.met != nil {
			e.met.ActionDuration.WithLabelValues(string(act.Kind)).Observe(time.Since(start).Seconds())
		}

		if err != nil {
			if ctx.Err() != nil {
				e.finish(OutcomeStopped)
				return
			}
			if !e.retry(act, err) {
				return
			}
			continue
		}

		e.mu.Lock()
		cur.recent = append(cur.recent, act.Description)
		if len(cur.recent) > recentWindow {
			cur.recent = cur.recent[len(cur.recent)-recentWindow:]
		}
		cur.RetriesLeft = cfg.MaxRetries
		cur.Index++
		e.mu.Unlock()
	}
}

// retry consumes one unit of the budget and reports whether the loop
// should try the same action again; on exhaustion it fails the replay.
func (e *Engine) retry(act action.Action, cause error) bool {
	e.mu.Lock()
	cur := e.cursor
	if cur.RetriesLeft > 0 {
		cur.RetriesLeft--
		e.mu.Unlock()

		if e.met != nil {
			e.met.ActionRetries.Inc()
		}
		e.log.Warn().Err(cause).Str("action", act.ID).Msg("Action failed, retrying")
		e.signals.Notify(
			"retrying: "+act.Description,
			notify.SeverityWarning,
			map[string]string{"error": cause.Error()},
		)
		return true
	}
	recent := strings.Join(cur.recent, " | ")
	e.mu.Unlock()

	e.log.Error().Err(cause).Str("action", act.ID).Msg("Retry budget exhausted")
	e.signals.Notify(
		"replay failed: "+act.Description,
		notify.SeverityError,
		map[string]string{
			"error":          cause.Error(),
			"recent_actions": recent,
		},
	)
	if e.met != nil {
		e.met.ReplaysFailed.Inc()
	}
	e.finish(OutcomeFailed)
	return false
}

func (e *Engine) complete() {
	e.mu.Lock()
	sessionID := e.cursor.SessionID
	total := len(e.cursor.Actions)
	e.mu.Unlock()

	if e.met != nil {
		e.met.ReplaysCompleted.Inc()
	}
	e.log.Info().Str("session", sessionID).Int("actions", total).Msg("Replay complete")
	e.signals.Notify(
		fmt.Sprintf("replay complete: %d actions executed", total),
		notify.SeverityInfo,
		map[string]string{"session": sessionID},
	)
	e.finish(OutcomeCompleted)
}

// finish destroys the cursor and returns the engine to Idle
func (e *Engine) finish(outcome Outcome) {
	e.mu.Lock()
	e.state = StateIdle
	e.outcome = outcome
	e.cursor = nil
	e.cancel = nil
	e.resumeCh = nil
	release := e.release
	e.release = nil
	e.mu.Unlock()

	if release != nil {
		release()
	}
}

// awaitResume parks the engine in Paused until Resume or cancellation.
// Returns false when the replay was stopped while paused.
func (e *Engine) awaitResume(ctx context.Context) bool {
	e.mu.Lock()
	e.state = StatePaused
	ch := e.resumeCh
	sessionID := e.cursor.SessionID
	index := e.cursor.Index
	e.mu.Unlock()

	if e.met != nil {
		e.met.ChallengePauses.Inc()
	}
	e.log.Warn().Str("session", sessionID).Int("index", index).Msg("Challenge detected, pausing")
	e.signals.Notify(
		"manual intervention required: complete the challenge, then resume",
		notify.SeverityPause,
		map[string]string{"session": sessionID},
	)

	select {
	case <-ctx.Done():
		return false
	case <-ch:
	}

	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()
	e.signals.Notify("replay resumed", notify.SeverityInfo, map[string]string{"session": sessionID})
	return true
}

// sampleDelay draws the pre-action pause: a uniform base in
// [MinDelay, MaxDelay] scaled by a multiplier in [0.8, 1.2]. The second
// stage widens and smooths the distribution so the cadence is not
// detectably flat.
func (e *Engine) sampleDelay(cfg Config) time.Duration {
	min, max := cfg.MinDelay, cfg.MaxDelay
	if max < min {
		max = min
	}
	base := float64(min) + e.rng.Float64()*float64(max-min)
	mult := 0.8 + e.rng.Float64()*0.4
	return time.Duration(base * mult)
}

// sleepCtx sleeps for d unless the context is cancelled first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
