package http

import (
	"net/http"
	"strings"

	"github.com/formpilot/engine/internal/api/http/handlers"
	"github.com/formpilot/engine/internal/api/http/middleware"
	"github.com/formpilot/engine/internal/bridge"
	"github.com/formpilot/engine/internal/logger"
	"github.com/formpilot/engine/internal/pattern"
	"github.com/formpilot/engine/internal/recorder"
	"github.com/formpilot/engine/internal/replay"
	"github.com/formpilot/engine/internal/store"
)

// Router manages HTTP routes and middleware
type Router struct {
	mux              *http.ServeMux
	bridge           *bridge.Bridge
	recorderHandlers *handlers.RecorderHandlers
	sessionHandlers  *handlers.SessionHandlers
	replayHandlers   *handlers.ReplayHandlers
	patternHandlers  *handlers.PatternHandlers
}

// NewRouter creates a new router
func NewRouter(br *bridge.Bridge, rec *recorder.Recorder, st *store.Store, eng *replay.Engine, filter *pattern.Filter, replayDefaults replay.Config) *Router {
	r := &Router{
		mux:              http.NewServeMux(),
		bridge:           br,
		recorderHandlers: handlers.NewRecorderHandlers(rec, st),
		sessionHandlers:  handlers.NewSessionHandlers(st),
		replayHandlers:   handlers.NewReplayHandlers(eng, replayDefaults),
		patternHandlers:  handlers.NewPatternHandlers(filter),
	}

	r.setupRoutes()

	return r
}

// setupRoutes sets up all HTTP routes
func (r *Router) setupRoutes() {
	// Create middleware chain
	chain := middleware.Chain(
		middleware.Recovery(logger.WithComponent("http.middleware")),
		middleware.Logging(logger.WithComponent("http.middleware")),
	)

	// Health check endpoints
	r.mux.Handle("/health", chain(http.HandlerFunc(handlers.HealthCheck)))
	r.mux.Handle("/ready", chain(http.HandlerFunc(handlers.ReadinessCheck(r.bridge))))

	// Extension socket. The logging middleware would hold the connection
	// open in its duration measurement, so only recovery wraps it.
	r.mux.Handle("/ws", middleware.Recovery(logger.WithComponent("http.middleware"))(r.bridge))

	// Recorder control endpoints
	r.mux.Handle("/api/v1/recorder/", chain(http.HandlerFunc(r.handleRecorderRoutes)))

	// Session access endpoints
	r.mux.Handle("/api/v1/sessions", chain(http.HandlerFunc(r.sessionHandlers.List)))
	r.mux.Handle("/api/v1/sessions/", chain(http.HandlerFunc(r.handleSessionRoutes)))

	// Replay control endpoints
	r.mux.Handle("/api/v1/replay/", chain(http.HandlerFunc(r.handleReplayRoutes)))

	// Pattern inspection endpoint
	r.mux.Handle("/api/v1/patterns", chain(http.HandlerFunc(r.patternHandlers.List)))

	// Default API v1 route (for unmatched paths)
	r.mux.Handle("/api/v1/", chain(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})))
}

// handleRecorderRoutes routes recorder requests to appropriate handlers
func (r *Router) handleRecorderRoutes(w http.ResponseWriter, req *http.Request) {
	switch strings.TrimPrefix(req.URL.Path, "/api/v1/recorder/") {
	case "start":
		r.recorderHandlers.Start(w, req)
	case "stop":
		r.recorderHandlers.Stop(w, req)
	default:
		http.NotFound(w, req)
	}
}

// handleSessionRoutes routes session requests to appropriate handlers
func (r *Router) handleSessionRoutes(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/api/v1/sessions/")

	// POST /api/v1/sessions/import
	if rest == "import" {
		r.sessionHandlers.Import(w, req)
		return
	}

	// GET /api/v1/sessions/{id}/export.csv
	if id, ok := strings.CutSuffix(rest, "/export.csv"); ok && id != "" && !strings.Contains(id, "/") {
		r.sessionHandlers.ExportCSV(w, req, id)
		return
	}

	// GET or DELETE /api/v1/sessions/{id}
	if rest != "" && !strings.Contains(rest, "/") {
		if req.Method == http.MethodDelete {
			r.sessionHandlers.Delete(w, req, rest)
			return
		}
		r.sessionHandlers.Get(w, req, rest)
		return
	}

	http.NotFound(w, req)
}

// handleReplayRoutes routes replay requests to appropriate handlers
func (r *Router) handleReplayRoutes(w http.ResponseWriter, req *http.Request) {
	switch strings.TrimPrefix(req.URL.Path, "/api/v1/replay/") {
	case "start":
		r.replayHandlers.Start(w, req)
	case "resume":
		r.replayHandlers.Resume(w, req)
	case "stop":
		r.replayHandlers.Stop(w, req)
	case "progress":
		r.replayHandlers.Progress(w, req)
	default:
		http.NotFound(w, req)
	}
}
