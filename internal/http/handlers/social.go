package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/bricks/internal/authflow"
	"github.com/dropDatabas3/bricks/internal/cache"
	httpx "github.com/dropDatabas3/bricks/internal/http"
	"github.com/dropDatabas3/bricks/internal/oauth"
	"github.com/dropDatabas3/bricks/internal/observability/logger"
	tokens "github.com/dropDatabas3/bricks/internal/security/token"
)

// SocialHandler runs the provider handshake. State (and the OIDC nonce bound
// to it) lives in the cache for a short TTL and is consumed exactly once.
type SocialHandler struct {
	Flows     *authflow.Service
	Providers map[string]oauth.Client
	State     cache.Client
	StateTTL  time.Duration
	Cookie    CookieConfig
}

func (h *SocialHandler) Register(r chi.Router) {
	r.Get("/v1/auth/social/{provider}/start", h.start)
	r.Get("/v1/auth/social/{provider}/callback", h.callback)
}

func (h *SocialHandler) provider(r *http.Request) (oauth.Client, string) {
	name := chi.URLParam(r, "provider")
	p, ok := h.Providers[name]
	if !ok {
		return nil, name
	}
	return p, name
}

func (h *SocialHandler) start(w http.ResponseWriter, r *http.Request) {
	p, name := h.provider(r)
	if p == nil {
		httpx.WriteError(w, httpx.ErrNotFound.WithDetail("unknown provider "+name))
		return
	}

	state, err := tokens.GenerateOpaque(24)
	if err != nil {
		httpx.WriteError(w, httpx.ErrInternalServerError)
		return
	}
	nonce, err := tokens.GenerateOpaque(24)
	if err != nil {
		httpx.WriteError(w, httpx.ErrInternalServerError)
		return
	}

	if err := h.State.Set(r.Context(), stateKey(name, state), nonce, h.StateTTL); err != nil {
		logger.Named("handlers").Error("state store failed", logger.Provider(name), logger.Err(err))
		httpx.WriteError(w, httpx.ErrServiceUnavailable)
		return
	}

	authURL, err := p.AuthURL(r.Context(), state, nonce)
	if err != nil {
		logger.Named("handlers").Error("auth url failed", logger.Provider(name), logger.Err(err))
		httpx.WriteError(w, httpx.ErrServiceUnavailable)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *SocialHandler) callback(w http.ResponseWriter, r *http.Request) {
	p, name := h.provider(r)
	if p == nil {
		httpx.WriteError(w, httpx.ErrNotFound.WithDetail("unknown provider "+name))
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		httpx.RecordAuthEvent("oauth", "denied")
		httpx.WriteError(w, httpx.ErrUnauthorized.WithDetail("provider error: "+e))
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		httpx.WriteError(w, httpx.ErrBadRequest.WithDetail("missing code or state"))
		return
	}

	// Read-and-delete in one step so a replayed callback fails the state
	// check even when the replays race.
	nonce, err := h.State.Consume(r.Context(), stateKey(name, state))
	if err != nil {
		httpx.RecordAuthEvent("oauth", "denied")
		httpx.WriteError(w, httpx.ErrUnauthorized.WithDetail("unknown or expired state"))
		return
	}

	acct, err := p.Exchange(r.Context(), code, nonce)
	if err != nil {
		httpx.RecordAuthEvent("oauth", "denied")
		logger.Named("handlers").Warn("oauth exchange failed", logger.Provider(name), logger.Err(err))
		if errors.Is(err, oauth.ErrNoEmail) {
			httpx.WriteError(w, httpx.ErrBadRequest.WithDetail("provider returned no usable email"))
			return
		}
		httpx.WriteError(w, httpx.ErrUnauthorized.WithDetail("provider exchange failed"))
		return
	}

	u, pair, err := h.Flows.CompleteOAuth(r.Context(), authflow.ExternalAccount{
		Provider:       acct.Provider,
		ProviderUserID: acct.ProviderUserID,
		Email:          acct.Email,
		EmailVerified:  acct.EmailVerified,
	})
	if err != nil {
		if errors.Is(err, authflow.ErrInvalidCredentials) {
			httpx.RecordAuthEvent("oauth", "denied")
			httpx.WriteError(w, httpx.ErrUnauthorized.WithDetail("account unavailable"))
			return
		}
		if errors.Is(err, authflow.ErrProviderEmailUnverified) {
			httpx.RecordAuthEvent("oauth", "denied")
			httpx.WriteError(w, httpx.ErrConflict.WithDetail("email already registered; the provider has not verified it"))
			return
		}
		httpx.RecordAuthEvent("oauth", "error")
		logger.Named("handlers").Error("oauth completion failed", logger.Provider(name), logger.Err(err))
		httpx.WriteError(w, httpx.ErrInternalServerError)
		return
	}

	httpx.RecordAuthEvent("oauth", "ok")
	ttl := time.Until(pair.RefreshExpiresAt)
	http.SetCookie(w, httpx.BuildCookie(h.Cookie.Name, pair.RefreshToken, h.Cookie.Domain, h.Cookie.SameSite, h.Cookie.Secure, ttl))
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"user":   userBody(u),
		"tokens": tokenBody(pair),
	})
}

func stateKey(provider, state string) string {
	return "oauth:state:" + provider + ":" + state
}
