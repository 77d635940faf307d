package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/notesync-be/internal/monitoring"
	"github.com/rs/zerolog/hlog"
)

// Pinger checks that the store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness of the server and its store.
type HealthHandler struct {
	db        Pinger
	startedAt time.Time
	hostStats func(ctx context.Context) (monitoring.HostStats, error)
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, startedAt time.Time) *HealthHandler {
	return &HealthHandler{db: db, startedAt: startedAt, hostStats: monitoring.CollectHostStats}
}

// Health answers 200 when the database responds and 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, dbStatus, code := "ok", "ok", http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Health check: database unreachable")
		status, dbStatus, code = "degraded", "unavailable", http.StatusServiceUnavailable
	}

	host, err := h.hostStats(ctx)
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("Health check: partial host stats")
	}

	writeJSON(w, code, map[string]interface{}{
		"status":        status,
		"database":      dbStatus,
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
		"host":          host,
	})
}
