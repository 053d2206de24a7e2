package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/bricks/internal/http"
)

// HealthHandler serves liveness and readiness. Readiness pings the store and
// the cache; liveness never touches dependencies.
type HealthHandler struct {
	StorePing func(ctx context.Context) error
	CachePing func(ctx context.Context) error
}

func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
}

func (h *HealthHandler) healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if h.StorePing != nil {
		if err := h.StorePing(ctx); err != nil {
			checks["store"] = err.Error()
			ready = false
		} else {
			checks["store"] = "ok"
		}
	}
	if h.CachePing != nil {
		if err := h.CachePing(ctx); err != nil {
			checks["cache"] = err.Error()
			ready = false
		} else {
			checks["cache"] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, map[string]any{"ready": ready, "checks": checks})
}
