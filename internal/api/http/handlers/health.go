package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheck handles health check requests
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status: "healthy",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Encoding a fixed struct cannot fail
	_ = json.NewEncoder(w).Encode(response)
}

// ReadyChecker reports whether a component can serve traffic
type ReadyChecker interface {
	Connected() bool
}

// ReadinessCheck returns a handler that reports whether the extension
// bridge is attached. The engine is useless without a page on the other
// end, so readiness tracks the socket.
func ReadinessCheck(bridge ReadyChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status: "ready",
		}

		w.Header().Set("Content-Type", "application/json")
		if bridge == nil || !bridge.Connected() {
			response.Status = "not ready"
			response.Message = "browser extension is not connected"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		//nolint:errcheck // Encoding a fixed struct cannot fail
		_ = json.NewEncoder(w).Encode(response)
	}
}
