package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/formpilot/engine/internal/replay"
)

// ReplayHandlers provides HTTP handlers for replay control
type ReplayHandlers struct {
	engine *replay.Engine
	base   replay.Config
}

// NewReplayHandlers creates new replay handlers. The base config supplies
// defaults for fields a start request leaves unset.
func NewReplayHandlers(engine *replay.Engine, base replay.Config) *ReplayHandlers {
	return &ReplayHandlers{
		engine: engine,
		base:   base,
	}
}

// StartReplayRequest represents a request to start a replay
type StartReplayRequest struct {
	SessionID string `json:"session_id"`

	// Optional per-run overrides
	HumanLikeDelays  *bool  `json:"human_like_delays,omitempty"`
	PauseOnChallenge *bool  `json:"pause_on_challenge,omitempty"`
	MaxRetries       *int   `json:"max_retries,omitempty"`
	MinDelayMs       *int64 `json:"min_delay_ms,omitempty"`
	MaxDelayMs       *int64 `json:"max_delay_ms,omitempty"`
}

// StartReplayResponse represents a response to starting a replay
type StartReplayResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// Start handles POST /api/v1/replay/start
func (h *ReplayHandlers) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StartReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	cfg := h.base
	if req.HumanLikeDelays != nil {
		cfg.HumanLikeDelays = *req.HumanLikeDelays
	}
	if req.PauseOnChallenge != nil {
		cfg.PauseOnChallenge = *req.PauseOnChallenge
	}
	if req.MaxRetries != nil {
		cfg.MaxRetries = *req.MaxRetries
	}
	if req.MinDelayMs != nil {
		cfg.MinDelay = time.Duration(*req.MinDelayMs) * time.Millisecond
	}
	if req.MaxDelayMs != nil {
		cfg.MaxDelay = time.Duration(*req.MaxDelayMs) * time.Millisecond
	}

	if err := h.engine.Start(r.Context(), req.SessionID, cfg); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StartReplayResponse{
		Status:    "running",
		SessionID: req.SessionID,
	})
}

// Resume handles POST /api/v1/replay/resume
func (h *ReplayHandlers) Resume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.engine.Resume(); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// Stop handles POST /api/v1/replay/stop
func (h *ReplayHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.engine.Stop(); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// Progress handles GET /api/v1/replay/progress
func (h *ReplayHandlers) Progress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.engine.Progress())
}
