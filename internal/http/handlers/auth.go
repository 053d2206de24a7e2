// Package handlers holds the chi route handlers: auth flows, email flows,
// social sign-in and the generic owned-resource endpoints.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/bricks/internal/authflow"
	"github.com/dropDatabas3/bricks/internal/captcha"
	httpx "github.com/dropDatabas3/bricks/internal/http"
	"github.com/dropDatabas3/bricks/internal/observability/logger"
	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/dropDatabas3/bricks/internal/token"
)

// CookieConfig is the session cookie shape (name fixed at startup).
type CookieConfig struct {
	Name     string
	Domain   string
	SameSite string
	Secure   bool
}

// AuthHandler serves register/login/refresh/logout and /me.
type AuthHandler struct {
	Flows    *authflow.Service
	Tokens   *token.Service
	Users    core.UserStore
	Captcha  captcha.Validator
	Cookie   CookieConfig
	Hostname string
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/v1/auth/register", h.register)
	r.Post("/v1/auth/login", h.login)
	r.Post("/v1/auth/refresh", h.refresh)
	r.Post("/v1/auth/logout", h.logout)
	r.With(httpx.RequireAuth).Post("/v1/auth/logout_all", h.logoutAll)
	r.With(httpx.RequireAuth).Get("/v1/auth/me", h.me)
}

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	// RefreshToken is echoed for non-browser clients; browsers get the
	// HttpOnly cookie and should ignore this field.
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, httpx.ErrBadRequest.WithDetail("email and password are required"))
		return
	}

	if h.Captcha != nil {
		res, err := h.Captcha.Validate(r.Context(), req.CaptchaToken, clientIP(r), "register", h.Hostname)
		if err != nil || !res.Valid {
			httpx.RecordAuthEvent("signup", "denied")
			httpx.WriteError(w, httpx.ErrBadRequest.WithDetail("captcha verification failed"))
			return
		}
	}

	u, pair, err := h.Flows.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authflow.ErrWeakPassword):
			httpx.RecordAuthEvent("signup", "denied")
			httpx.WriteError(w, httpx.ErrBadRequest.WithDetail("password does not meet the minimum length"))
		case errors.Is(err, core.ErrConflict):
			httpx.RecordAuthEvent("signup", "denied")
			httpx.WriteError(w, httpx.ErrConflict.WithDetail("email already registered"))
		default:
			httpx.RecordAuthEvent("signup", "error")
			logger.Named("handlers").Error("register failed", logger.Err(err))
			httpx.WriteError(w, httpx.ErrInternalServerError)
		}
		return
	}

	httpx.RecordAuthEvent("signup", "ok")
	h.writeSession(w, http.StatusCreated, u, pair)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	u, pair, err := h.Flows.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, authflow.ErrInvalidCredentials) {
			httpx.RecordAuthEvent("signin", "denied")
			httpx.WriteError(w, httpx.ErrUnauthorized.WithDetail("invalid email or password"))
			return
		}
		httpx.RecordAuthEvent("signin", "error")
		logger.Named("handlers").Error("login failed", logger.Err(err))
		httpx.WriteError(w, httpx.ErrInternalServerError)
		return
	}

	httpx.RecordAuthEvent("signin", "ok")
	h.writeSession(w, http.StatusOK, u, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refresh accepts the token from the session cookie (browsers) or the JSON
// body (API clients). Cookie wins when both are present.
func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	raw := h.refreshTokenFrom(w, r)
	if raw == "" {
		httpx.WriteError(w, httpx.ErrUnauthorized.WithDetail("missing refresh token"))
		return
	}

	pair, err := h.Tokens.Refresh(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrReuseDetected):
			httpx.RecordTokenReuse()
			httpx.RecordAuthEvent("refresh", "denied")
			// The family is already dead; the cookie is useless now.
			http.SetCookie(w, httpx.BuildDeletionCookie(h.Cookie.Name, h.Cookie.Domain, h.Cookie.SameSite, h.Cookie.Secure))
			httpx.WriteError(w, httpx.ErrUnauthorized.WithDetail("session revoked"))
		case errors.Is(err, token.ErrUnknownToken), errors.Is(err, token.ErrTokenExpired):
			httpx.RecordAuthEvent("refresh", "denied")
			httpx.WriteError(w, httpx.ErrUnauthorized.WithDetail("invalid refresh token"))
		default:
			httpx.RecordAuthEvent("refresh", "error")
			logger.Named("handlers").Error("refresh failed", logger.Err(err))
			httpx.WriteError(w, httpx.ErrInternalServerError)
		}
		return
	}

	httpx.RecordAuthEvent("refresh", "ok")
	h.setSessionCookie(w, pair)
	writeTokenPair(w, http.StatusOK, pair)
}

// logout revokes the presented session's family. Without a token it still
// clears the cookie; logout never fails visibly.
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if raw := h.refreshTokenFrom(w, r); raw != "" {
		h.revokeByRefreshToken(r, raw)
	}
	http.SetCookie(w, httpx.BuildDeletionCookie(h.Cookie.Name, h.Cookie.Domain, h.Cookie.SameSite, h.Cookie.Secure))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) logoutAll(w http.ResponseWriter, r *http.Request) {
	id := httpx.IdentityFrom(r.Context())
	if id == nil {
		httpx.WriteError(w, httpx.ErrUnauthorized)
		return
	}
	if err := h.Tokens.RevokeUser(r.Context(), id.UserID); err != nil {
		logger.Named("handlers").Error("logout_all failed", logger.UserID(id.UserID), logger.Err(err))
		httpx.WriteError(w, httpx.ErrInternalServerError)
		return
	}
	http.SetCookie(w, httpx.BuildDeletionCookie(h.Cookie.Name, h.Cookie.Domain, h.Cookie.SameSite, h.Cookie.Secure))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	id := httpx.IdentityFrom(r.Context())
	if id == nil {
		httpx.WriteError(w, httpx.ErrUnauthorized)
		return
	}
	u, err := h.Users.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userBody(u))
}

// ─── Helpers ───

func (h *AuthHandler) refreshTokenFrom(w http.ResponseWriter, r *http.Request) string {
	if ck, err := r.Cookie(h.Cookie.Name); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req refreshRequest
	if err := httpx.ReadJSON(w, r, &req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) revokeByRefreshToken(r *http.Request, raw string) {
	// Best-effort: resolve the family through the store and revoke it.
	if err := h.Flows.RevokeSession(r.Context(), raw); err != nil {
		logger.Named("handlers").Debug("logout revoke skipped", logger.Err(err))
	}
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, u *core.User, pair *token.Pair) {
	h.setSessionCookie(w, pair)
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, status, map[string]any{
		"user":   userBody(u),
		"tokens": tokenBody(pair),
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, pair *token.Pair) {
	ttl := time.Until(pair.RefreshExpiresAt)
	http.SetCookie(w, httpx.BuildCookie(h.Cookie.Name, pair.RefreshToken, h.Cookie.Domain, h.Cookie.SameSite, h.Cookie.Secure, ttl))
}

func writeTokenPair(w http.ResponseWriter, status int, pair *token.Pair) {
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, status, tokenBody(pair))
}

func tokenBody(pair *token.Pair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(pair.AccessExpiresAt).Seconds()),
		RefreshToken: pair.RefreshToken,
	}
}

func userBody(u *core.User) map[string]any {
	return map[string]any{
		"id":             u.ID,
		"email":          u.Email,
		"email_verified": u.EmailVerified,
		"plan":           u.Plan,
		"created_at":     u.CreatedAt,
	}
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		return xf
	}
	return r.RemoteAddr
}
