package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/bricks/internal/authflow"
	httpx "github.com/dropDatabas3/bricks/internal/http"
	"github.com/dropDatabas3/bricks/internal/observability/logger"
	"github.com/dropDatabas3/bricks/internal/store/core"
)

// EmailFlowsHandler serves email verification and password reset. Both start
// endpoints answer 202 regardless of whether the email exists.
type EmailFlowsHandler struct {
	Flows *authflow.Service
}

func (h *EmailFlowsHandler) Register(r chi.Router) {
	r.Post("/v1/auth/verify-email/start", h.verifyStart)
	r.Post("/v1/auth/verify-email/confirm", h.verifyConfirm)
	r.Post("/v1/auth/password/forgot", h.forgot)
	r.Post("/v1/auth/password/reset", h.reset)
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type resetRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *EmailFlowsHandler) verifyStart(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.Flows.RequestEmailVerification(r.Context(), req.Email); err != nil {
		logger.Named("handlers").Error("verify-email start failed", logger.Err(err))
		httpx.WriteError(w, httpx.ErrInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *EmailFlowsHandler) verifyConfirm(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.Flows.ConfirmEmail(r.Context(), req.Code); err != nil {
		writeCodeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EmailFlowsHandler) forgot(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.Flows.RequestPasswordReset(r.Context(), req.Email); err != nil {
		logger.Named("handlers").Error("password forgot failed", logger.Err(err))
		httpx.WriteError(w, httpx.ErrInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *EmailFlowsHandler) reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.Flows.ResetPassword(r.Context(), req.Code, req.NewPassword); err != nil {
		if errors.Is(err, authflow.ErrWeakPassword) {
			httpx.WriteError(w, httpx.ErrBadRequest.WithDetail("password does not meet the minimum length"))
			return
		}
		writeCodeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeCodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrCodeExpired):
		httpx.WriteError(w, httpx.ErrBadRequest.WithDetail("code expired"))
	case errors.Is(err, core.ErrCodeUsed), errors.Is(err, core.ErrNotFound):
		// Used and unknown answer the same; a code is a secret.
		httpx.WriteError(w, httpx.ErrBadRequest.WithDetail("invalid code"))
	default:
		logger.Named("handlers").Error("code consumption failed", logger.Err(err))
		httpx.WriteError(w, httpx.ErrInternalServerError)
	}
}
