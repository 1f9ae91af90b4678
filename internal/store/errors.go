package store

import (
	"fmt"
)

// SessionNotFoundError indicates no session exists for an id
type SessionNotFoundError struct {
	SessionID string
}

func (e SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// SessionExistsError indicates an import collided with a stored session
type SessionExistsError struct {
	SessionID string
}

func (e SessionExistsError) Error() string {
	return fmt.Sprintf("session already exists: %s", e.SessionID)
}

// InvalidDocumentError indicates an imported session document failed
// schema validation
type InvalidDocumentError struct {
	Reason string
}

func (e InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid session document: %s", e.Reason)
}
