package replay

import (
	"fmt"
)

// AlreadyReplayingError rejects Start while a replay is in flight
type AlreadyReplayingError struct{}

func (AlreadyReplayingError) Error() string {
	return "replay already in progress"
}

// InvalidStateError rejects an operation in the engine's current state
type InvalidStateError struct {
	Operation string
	State     State
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Operation, e.State)
}

// ActionSynthesisError indicates the element was found but could not be
// acted on; it shares the ElementNotFound retry policy
type ActionSynthesisError struct {
	Target string
	Reason string
}

func (e ActionSynthesisError) Error() string {
	return fmt.Sprintf("cannot synthesize action on %s: %s", e.Target, e.Reason)
}
