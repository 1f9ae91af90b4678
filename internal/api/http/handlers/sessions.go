package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/formpilot/engine/internal/session"
	"github.com/formpilot/engine/internal/store"
)

// maxImportSize bounds uploaded session documents
const maxImportSize = 16 << 20

// SessionStore is the session persistence surface used by the HTTP API
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	List(ctx context.Context) ([]*session.Session, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, doc []byte) (*session.Session, error)
}

// SessionHandlers provides HTTP handlers for session access
type SessionHandlers struct {
	store SessionStore
}

// NewSessionHandlers creates new session handlers
func NewSessionHandlers(store SessionStore) *SessionHandlers {
	return &SessionHandlers{store: store}
}

// SessionSummary is the list-view shape of a session
type SessionSummary struct {
	ID          string     `json:"id"`
	StartURL    string     `json:"start_url"`
	Platform    string     `json:"platform"`
	Status      string     `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	ActionCount int        `json:"action_count"`
}

// ListSessionsResponse represents a response to listing sessions
type ListSessionsResponse struct {
	Status   string           `json:"status"`
	Sessions []SessionSummary `json:"sessions"`
}

// ImportSessionResponse represents a response to importing a session
type ImportSessionResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// List handles GET /api/v1/sessions
func (h *SessionHandlers) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:          sess.ID,
			StartURL:    sess.StartURL,
			Platform:    string(sess.Platform),
			Status:      string(sess.Status),
			StartTime:   sess.StartTime,
			EndTime:     sess.EndTime,
			ActionCount: len(sess.Actions),
		})
	}

	writeJSON(w, http.StatusOK, ListSessionsResponse{
		Status:   "ok",
		Sessions: summaries,
	})
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandlers) Get(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// Delete handles DELETE /api/v1/sessions/{id}
func (h *SessionHandlers) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ExportCSV handles GET /api/v1/sessions/{id}/export.csv
func (h *SessionHandlers) ExportCSV(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".csv"))
	if err := store.ExportCSV(w, sess); err != nil {
		// Headers are already out; nothing sensible left to send
		return
	}
}

// Import handles POST /api/v1/sessions/import
func (h *SessionHandlers) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doc, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	sess, err := h.store.Import(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ImportSessionResponse{
		Status:    "imported",
		SessionID: sess.ID,
	})
}
