package handlers

import (
	"context"
	"net/http"

	"github.com/formpilot/engine/internal/recorder"
	"github.com/formpilot/engine/internal/session"
)

// SessionReader looks up persisted sessions
type SessionReader interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// RecorderHandlers provides HTTP handlers for recorder control
type RecorderHandlers struct {
	recorder *recorder.Recorder
	sessions SessionReader
}

// NewRecorderHandlers creates new recorder handlers
func NewRecorderHandlers(rec *recorder.Recorder, sessions SessionReader) *RecorderHandlers {
	return &RecorderHandlers{
		recorder: rec,
		sessions: sessions,
	}
}

// StartRecordingResponse represents a response to starting a recording
type StartRecordingResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// StopRecordingResponse represents a response to stopping a recording
type StopRecordingResponse struct {
	Status      string `json:"status"`
	SessionID   string `json:"session_id"`
	ActionCount int    `json:"action_count"`
}

// Start handles POST /api/v1/recorder/start
func (h *RecorderHandlers) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := h.recorder.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StartRecordingResponse{
		Status:    "recording",
		SessionID: id,
	})
}

// Stop handles POST /api/v1/recorder/stop
func (h *RecorderHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := h.recorder.SessionID()
	if err := h.recorder.Stop(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	count := 0
	if sess, err := h.sessions.Get(r.Context(), id); err == nil {
		count = len(sess.Actions)
	}

	writeJSON(w, http.StatusOK, StopRecordingResponse{
		Status:      "completed",
		SessionID:   id,
		ActionCount: count,
	})
}
