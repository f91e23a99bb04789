package handler

import (
	"net/http"
	"time"
)

// GateReader exposes the trading gate state.
type GateReader interface {
	Status() string
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	gate    GateReader
	started time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(gate GateReader) *HealthHandler {
	return &HealthHandler{gate: gate, started: time.Now()}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// It performs no venue I/O and needs no authentication.
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"trading_status": h.gate.Status(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
