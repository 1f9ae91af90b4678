// Package pattern computes which (kind, target) pairs recur across the
// session corpus often enough to be considered stable. The stable set is
// derived on demand and has no lifecycle of its own: it is a pure function
// of the completed sessions at query time.
package pattern

import (
	"context"

	"github.com/formpilot/engine/internal/action"
	"github.com/formpilot/engine/internal/session"
)

// DefaultThreshold is the repetition count at which a pair becomes stable
const DefaultThreshold = 3

// Key identifies a group of equivalent actions across sessions
type Key struct {
	Kind   action.Kind
	Target string
}

// KeyOf returns the grouping key of an action
func KeyOf(a action.Action) Key {
	return Key{Kind: a.Kind, Target: a.Target}
}

// SessionSource lists the persisted session corpus
type SessionSource interface {
	List(ctx context.Context) ([]*session.Session, error)
}

// Filter derives the stable-action set from the session corpus
type Filter struct {
	source    SessionSource
	threshold int
}

// New creates a filter. A non-positive threshold falls back to
// DefaultThreshold.
func New(source SessionSource, threshold int) *Filter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Filter{source: source, threshold: threshold}
}

// Threshold returns the configured repetition threshold
func (f *Filter) Threshold() int {
	return f.threshold
}

// Stable groups all actions of completed sessions by (kind, target) and
// returns the occurrence count of every group at or above the threshold.
// Sessions still recording do not contribute; they are picked up by the
// next query once completed.
func (f *Filter) Stable(ctx context.Context) (map[Key]int, error) {
	sessions, err := f.source.List(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[Key]int)
	for _, s := range sessions {
		if s.Status != session.StatusCompleted {
			continue
		}
		for _, a := range s.Actions {
			counts[KeyOf(a)]++
		}
	}

	stable := make(map[Key]int, len(counts))
	for key, count := range counts {
		if count >= f.threshold {
			stable[key] = count
		}
	}
	return stable, nil
}

// FilterStable restricts an action list to the stable subset, preserving
// the original recorded order
func FilterStable(actions []action.Action, stable map[Key]int) []action.Action {
	kept := make([]action.Action, 0, len(actions))
	for _, a := range actions {
		if _, ok := stable[KeyOf(a)]; ok {
			kept = append(kept, a)
		}
	}
	return kept
}
