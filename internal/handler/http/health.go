package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/windfall/poplingo_service/internal/logger"
	"github.com/windfall/poplingo_service/pkg/response"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ready     atomic.Bool
	checks    map[string]Checker
	providers map[string]string
	clients   func() int
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	h := &HealthHandler{checks: make(map[string]Checker)}
	h.ready.Store(true)
	return h
}

// WithCheck adds a dependency probed by Ready.
func (h *HealthHandler) WithCheck(name string, c Checker) *HealthHandler {
	h.checks[name] = c
	return h
}

// WithProviders sets the provider names reported by Health.
func (h *HealthHandler) WithProviders(providers map[string]string) *HealthHandler {
	h.providers = providers
	return h
}

// WithClientCount reports the number of open WebSocket connections in Health.
func (h *HealthHandler) WithClientCount(count func() int) *HealthHandler {
	h.clients = count
	return h
}

// SetReady sets the ready state.
func (h *HealthHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "healthy",
		"service":   logger.ServiceName,
		"providers": h.providers,
	}
	if h.clients != nil {
		body["websocket_clients"] = h.clients()
	}
	response.JSON(w, http.StatusOK, body)
}

// Ready handles GET /ready. Every registered dependency must answer a ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		response.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		response.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": failed,
		})
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}

// Live handles GET /live (Kubernetes liveness probe).
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
	})
}
