package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/marketscore/internal/cache"
	"github.com/alanyoungcy/marketscore/internal/live"
)

// HealthDeps supplies the runtime state reported by the health and cache
// endpoints. Nil funcs are omitted from the response.
type HealthDeps struct {
	Breaker   func() string
	Live      func() live.Stats
	Caches    func() []cache.Stats
	WSClients func() int64
	StartedAt time.Time
}

// HealthHandler serves the health-check and cache statistics endpoints.
type HealthHandler struct {
	deps HealthDeps
	now  func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(deps HealthDeps) *HealthHandler {
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}
	return &HealthHandler{deps: deps, now: time.Now}
}

// HealthCheck reports liveness. Status is "degraded" while the upstream
// circuit breaker is open.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	body := map[string]any{
		"status":        "ok",
		"timestamp":     now.UTC().Format(time.RFC3339),
		"uptimeSeconds": int64(now.Sub(h.deps.StartedAt).Seconds()),
	}
	if h.deps.Breaker != nil {
		state := h.deps.Breaker()
		body["upstream"] = map[string]string{"breaker": state}
		if state == "open" {
			body["status"] = "degraded"
		}
	}
	if h.deps.Live != nil {
		body["live"] = h.deps.Live()
	}
	if h.deps.WSClients != nil {
		body["streamClients"] = h.deps.WSClients()
	}
	if h.deps.Caches != nil {
		body["caches"] = h.deps.Caches()
	}
	writeJSON(w, http.StatusOK, body)
}

// CacheStats returns the result cache counters.
// GET /api/cache/stats
func (h *HealthHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	var stats []cache.Stats
	if h.deps.Caches != nil {
		stats = h.deps.Caches()
	}
	writeJSON(w, http.StatusOK, map[string]any{"caches": stats})
}
