package replay

import (
	"context"
	"time"

	"github.com/formpilot/engine/internal/action"
	"github.com/formpilot/engine/internal/notify"
	"github.com/formpilot/engine/internal/selector"
)

// challengeLocators are the known manual-verification indicators scanned
// before each action: interactive puzzle widgets and their image/iframe
// markers
var challengeLocators = []string{
	".g-recaptcha",
	".h-captcha",
	"[data-sitekey]",
	"[data-captcha]",
	`iframe[src*="recaptcha"]`,
	`iframe[src*="hcaptcha"]`,
	`iframe[title*="challenge"]`,
	"#challenge-form",
}

// challengeVisible reports whether any known challenge indicator is
// currently visible on the page
func (e *Engine) challengeVisible() bool {
	for _, locator := range challengeLocators {
		if el, ok := e.finder.Query(locator); ok && el.Visible() {
			return true
		}
	}
	return false
}

// execute re-synthesizes one recorded action against the current page
func (e *Engine) execute(ctx context.Context, act action.Action, cfg Config) error {
	switch act.Kind {
	case action.KindClick:
		return e.executeClick(ctx, act, cfg)
	case action.KindText:
		return e.executeText(ctx, act, cfg)
	case action.KindKey:
		return e.executeKey(ctx, act, cfg)
	case action.KindScroll:
		return e.page.SetScroll(act.Payload.ScrollX, act.Payload.ScrollY)
	case action.KindNavigation:
		return e.executeNavigation(ctx, act, cfg)
	default:
		return ActionSynthesisError{Target: act.Target, Reason: "unknown action kind " + string(act.Kind)}
	}
}

func (e *Engine) executeClick(ctx context.Context, act action.Action, cfg Config) error {
	el, err := e.resolve(ctx, act.Target, cfg)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return ActionSynthesisError{Target: act.Target, Reason: err.Error()}
	}
	if !el.Enabled() {
		return ActionSynthesisError{Target: act.Target, Reason: "element is disabled"}
	}
	if err := el.Click(); err != nil {
		return ActionSynthesisError{Target: act.Target, Reason: err.Error()}
	}
	e.awaitQuiescence(ctx, cfg)
	return nil
}

// executeText clears the field then inserts characters one at a time with
// a short delay to mimic typed cadence; the host fires an input
// notification per character and a final change notification.
func (e *Engine) executeText(ctx context.Context, act action.Action, cfg Config) error {
	if act.Payload.Redacted {
		// The literal value was never captured; nothing can be typed.
		e.signals.Notify(
			"skipping redacted field: "+act.Description,
			notify.SeverityWarning,
			map[string]string{"target": act.Target},
		)
		return nil
	}

	el, err := e.resolve(ctx, act.Target, cfg)
	if err != nil {
		return err
	}
	if !el.Enabled() {
		return ActionSynthesisError{Target: act.Target, Reason: "element is disabled"}
	}
	if err := el.Clear(); err != nil {
		return ActionSynthesisError{Target: act.Target, Reason: err.Error()}
	}
	for _, c := range act.Payload.Value {
		if err := el.InsertChar(c); err != nil {
			return ActionSynthesisError{Target: act.Target, Reason: err.Error()}
		}
		if !sleepCtx(ctx, cfg.TypingDelay) {
			return ctx.Err()
		}
	}
	if err := el.CommitInput(); err != nil {
		return ActionSynthesisError{Target: act.Target, Reason: err.Error()}
	}
	return nil
}

func (e *Engine) executeKey(ctx context.Context, act action.Action, cfg Config) error {
	el, err := e.resolve(ctx, act.Target, cfg)
	if err != nil {
		return err
	}
	if err := el.SendKey(act.Payload.Key, act.Payload.Modifiers); err != nil {
		return ActionSynthesisError{Target: act.Target, Reason: err.Error()}
	}
	return nil
}

// executeNavigation honors a recorded navigation only when its URL differs
// from the current one; session boundary markers are therefore no-ops on a
// page that is already in place.
func (e *Engine) executeNavigation(ctx context.Context, act action.Action, cfg Config) error {
	dest := act.Payload.URL
	if dest == "" || dest == e.page.URL() {
		return nil
	}
	if err := e.page.Navigate(dest); err != nil {
		return ActionSynthesisError{Target: act.Target, Reason: err.Error()}
	}
	e.awaitQuiescence(ctx, cfg)
	return nil
}

func (e *Engine) resolve(ctx context.Context, target string, cfg Config) (selector.Element, error) {
	resolver := selector.NewResolver(e.finder, cfg.ResolveWait)
	return resolver.Resolve(ctx, target)
}

// awaitQuiescence waits for the page to stop mutating after an action that
// can trigger page changes. It requires QuietInterval without new
// mutations and gives up after QuietTimeout, so continuously animating
// pages cannot stall the replay.
func (e *Engine) awaitQuiescence(ctx context.Context, cfg Config) {
	if cfg.QuietTimeout <= 0 {
		return
	}
	deadline := time.Now().Add(cfg.QuietTimeout)
	last := e.page.MutationCount()
	quietSince := time.Now()

	for time.Now().Before(deadline) {
		if !sleepCtx(ctx, quiescencePoll) {
			return
		}
		current := e.page.MutationCount()
		if current != last {
			last = current
			quietSince = time.Now()
			continue
		}
		if time.Since(quietSince) >= cfg.QuietInterval {
			return
		}
	}
}
