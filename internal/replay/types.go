package replay

import (
	"time"

	"github.com/formpilot/engine/internal/action"
)

// State is the engine's coarse execution state
type State string

const (
	// StateIdle means no replay is in flight
	StateIdle State = "idle"
	// StateRunning means the engine is walking the filtered action list
	StateRunning State = "running"
	// StatePaused means execution is suspended on a manual-intervention
	// point and waits for Resume
	StatePaused State = "paused"
)

// Outcome records how the last replay ended while the engine is Idle
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeStopped   Outcome = "stopped"
)

// Config is the active replay configuration, copied into the cursor at
// start time
type Config struct {
	// HumanLikeDelays inserts a randomized pause before each action
	HumanLikeDelays bool
	// MinDelay and MaxDelay bound the uniform base delay sample
	MinDelay time.Duration
	MaxDelay time.Duration
	// TypingDelay is the per-character pause when synthesizing text entry
	TypingDelay time.Duration
	// PauseOnChallenge suspends execution while a challenge indicator is
	// visible
	PauseOnChallenge bool
	// MaxRetries is the per-action retry budget
	MaxRetries int
	// ResolveWait bounds the wait before the second direct element lookup
	ResolveWait time.Duration
	// QuietInterval is the mutation-free window treated as page quiescence
	QuietInterval time.Duration
	// QuietTimeout caps the quiescence wait to guarantee forward progress
	QuietTimeout time.Duration
}

// DefaultConfig returns the stock replay configuration
func DefaultConfig() Config {
	return Config{
		HumanLikeDelays:  true,
		MinDelay:         500 * time.Millisecond,
		MaxDelay:         2 * time.Second,
		TypingDelay:      50 * time.Millisecond,
		PauseOnChallenge: true,
		MaxRetries:       3,
		ResolveWait:      2 * time.Second,
		QuietInterval:    500 * time.Millisecond,
		QuietTimeout:     10 * time.Second,
	}
}

// Cursor is the transient replay position, owned exclusively by the
// engine and destroyed when replay stops, completes or fails
type Cursor struct {
	SessionID   string
	Actions     []action.Action
	Index       int
	RetriesLeft int
	Config      Config

	// recent holds the descriptions of the last executed actions for
	// failure diagnostics
	recent []string
}

// Progress is a read-only snapshot of the replay position
type Progress struct {
	State       State   `json:"state"`
	Outcome     Outcome `json:"outcome,omitempty"`
	SessionID   string  `json:"session_id,omitempty"`
	Index       int     `json:"index"`
	Total       int     `json:"total"`
	Description string  `json:"description,omitempty"`
}
