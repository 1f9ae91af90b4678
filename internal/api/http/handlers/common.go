package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/formpilot/engine/internal/exclusive"
	"github.com/formpilot/engine/internal/recorder"
	"github.com/formpilot/engine/internal/replay"
	"github.com/formpilot/engine/internal/store"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // The response is already committed
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps engine errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.As(err, &store.SessionNotFoundError{}):
		return http.StatusNotFound
	case errors.As(err, &store.SessionExistsError{}),
		errors.As(err, &exclusive.BusyError{}),
		errors.As(err, &recorder.AlreadyRecordingError{}),
		errors.As(err, &recorder.NotRecordingError{}),
		errors.As(err, &replay.AlreadyReplayingError{}),
		errors.As(err, &replay.InvalidStateError{}):
		return http.StatusConflict
	case errors.As(err, &store.InvalidDocumentError{}):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes an error response using the engine error mapping
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{
		"status":  "error",
		"message": err.Error(),
	})
}
