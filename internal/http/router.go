package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/bricks/internal/rate"
)

// Registrar is anything that mounts routes on the router (handler structs).
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig assembles the middleware chain around the mounted handlers.
type RouterConfig struct {
	Auth        AuthConfig
	CORSOrigins []string

	// AuthLimiter throttles the credential endpoints only.
	AuthLimiter rate.Limiter

	// Metrics is the /metrics handler from RegisterMetrics; nil disables it.
	Metrics http.Handler
}

// NewRouter builds the chi router with the standard middleware order:
// request id, recover, security headers, CORS, metrics, logging, auth.
func NewRouter(cfg RouterConfig, public []Registrar, limited []Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler { return WithRequestID(next) })
	r.Use(func(next http.Handler) http.Handler { return WithRecover(next) })
	r.Use(func(next http.Handler) http.Handler { return WithSecurityHeaders(next) })
	if len(cfg.CORSOrigins) > 0 {
		r.Use(func(next http.Handler) http.Handler { return WithCORS(next, cfg.CORSOrigins) })
	}
	r.Use(func(next http.Handler) http.Handler { return WithMetrics(next) })
	r.Use(func(next http.Handler) http.Handler { return WithLogging(next) })
	r.Use(func(next http.Handler) http.Handler { return WithAuth(next, cfg.Auth) })

	for _, h := range public {
		h.Register(r)
	}

	if len(limited) > 0 {
		r.Group(func(gr chi.Router) {
			gr.Use(func(next http.Handler) http.Handler { return WithRateLimit(next, cfg.AuthLimiter) })
			for _, h := range limited {
				h.Register(gr)
			}
		})
	}

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, &HTTPError{Code: "method_not_allowed", Message: "Method not allowed", Status: http.StatusMethodNotAllowed})
	})

	return r
}
