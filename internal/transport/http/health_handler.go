package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthHandler handles health and version endpoints.
type HealthHandler struct {
	sessions *SessionManager
	version  string
	started  time.Time
	logger   *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(sessions *SessionManager, version string, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		sessions: sessions,
		version:  version,
		started:  time.Now(),
		logger:   logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":    "healthy",
		"version":   h.version,
		"uptime":    time.Since(h.started).String(),
		"sessions":  h.sessions.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Version handles GET /api/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"version": h.version})
}
