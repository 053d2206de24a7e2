package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/bricks/internal/observability/logger"
	"github.com/dropDatabas3/bricks/internal/ownership"
	"github.com/dropDatabas3/bricks/internal/rate"
	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/dropDatabas3/bricks/internal/token"
)

type ctxKey int

const (
	ctxKeyViewer ctxKey = iota
	ctxKeyIdentity
)

// ViewerFrom returns the authenticated viewer, nil for anonymous requests.
func ViewerFrom(ctx context.Context) *ownership.Viewer {
	v, _ := ctx.Value(ctxKeyViewer).(*ownership.Viewer)
	return v
}

// IdentityFrom returns the verified token identity (user + family).
func IdentityFrom(ctx context.Context) *token.Identity {
	id, _ := ctx.Value(ctxKeyIdentity).(*token.Identity)
	return id
}

// ─────────────── Request ID ───────────────

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			var b [16]byte
			_, _ = rand.Read(b[:])
			rid = hex.EncodeToString(b[:])
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

// ─────────────── Recover ───────────────

func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Named("http").Error("panic recovered",
					logger.RequestID(w.Header().Get("X-Request-ID")),
					logger.Any("recover", rec))
				WriteError(w, ErrInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ─────────────── Logging ───────────────

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func WithLogging(next http.Handler) http.Handler {
	log := logger.Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		log.Info("request",
			logger.RequestID(w.Header().Get("X-Request-ID")),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Int("bytes", rec.bytes),
			logger.Duration(time.Since(start)))
	})
}

// ─────────────── Security Headers ───────────────

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func WithSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		if isHTTPS(r) {
			w.Header().Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// ─────────────── CORS ───────────────

func WithCORS(next http.Handler, allowed []string) http.Handler {
	trim := func(s string) string { return strings.TrimRight(strings.TrimSpace(s), "/") }
	alist := make([]string, len(allowed))
	for i, v := range allowed {
		alist[i] = trim(v)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := trim(r.Header.Get("Origin"))
		allowedOrigin := ""
		for _, a := range alist {
			if a == "*" || (origin != "" && strings.EqualFold(origin, a)) {
				allowedOrigin = origin
				break
			}
		}

		w.Header().Add("Vary", "Origin")
		if allowedOrigin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining, Retry-After")
			h.Set("Access-Control-Max-Age", "600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─────────────── Rate Limit ───────────────

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithRateLimit throttles by client IP + path. Limiter failures fail open:
// auth still works when redis is down.
func WithRateLimit(next http.Handler, limiter rate.Limiter) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		res, err := limiter.Allow(r.Context(), clientIP(r)+"|"+r.URL.Path)
		if err != nil {
			logger.Named("http").Warn("rate limiter unavailable", logger.Err(err))
			next.ServeHTTP(w, r)
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			}
			WriteError(w, ErrRateLimited)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		next.ServeHTTP(w, r)
	})
}

// ─────────────── Auth ───────────────

// AuthConfig wires token verification into the middleware. Strict mode adds
// the family-liveness check, so revoking a family kills outstanding access
// tokens at the next request instead of at expiry.
type AuthConfig struct {
	Tokens *token.Service
	Users  core.UserStore
	Strict bool
}

// WithAuth verifies the Bearer token and loads the viewer. Requests without
// a token pass through anonymous; handlers decide what anonymity may do.
func WithAuth(next http.Handler, cfg AuthConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		var (
			id  *token.Identity
			err error
		)
		if cfg.Strict {
			id, err = cfg.Tokens.Introspect(r.Context(), raw)
		} else {
			id, err = cfg.Tokens.VerifyAccess(raw)
		}
		if err != nil {
			WriteError(w, ErrUnauthorized.WithDetail("invalid or expired token"))
			return
		}

		viewer := &ownership.Viewer{ID: id.UserID}
		if cfg.Users != nil {
			u, uerr := cfg.Users.GetUserByID(r.Context(), id.UserID)
			if uerr != nil || u.DisabledAt != nil {
				WriteError(w, ErrUnauthorized.WithDetail("account unavailable"))
				return
			}
			viewer.Plan = u.Plan
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
		ctx = context.WithValue(ctx, ctxKeyViewer, viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth is the guard for endpoints that refuse anonymity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerFrom(r.Context()) == nil {
			WriteError(w, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
