package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks connectivity of one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueStats reports background job queue depth.
type QueueStats interface {
	Stats() (depth, inFlight int)
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	redis  Pinger     // may be nil
	queue  QueueStats // may be nil
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. redis and queue may be nil.
func NewHealthHandler(redis Pinger, queue QueueStats, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{redis: redis, queue: queue, logger: logger}
}

// HealthCheck responds with server liveness plus dependency status.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx); err != nil {
			body["redis"] = "unavailable"
		} else {
			body["redis"] = "ok"
		}
	}

	if h.queue != nil {
		depth, inFlight := h.queue.Stats()
		body["queue"] = map[string]int{"depth": depth, "in_flight": inFlight}
	}

	writeJSON(w, http.StatusOK, body)
}
