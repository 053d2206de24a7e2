package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/bricks/internal/billing"
	httpx "github.com/dropDatabas3/bricks/internal/http"
	"github.com/dropDatabas3/bricks/internal/observability/logger"
	"github.com/dropDatabas3/bricks/internal/store/core"
)

// BillingHandler bridges the subscription provider: plan sync writes the
// provider's answer onto the user; checkout hands back the redirect.
type BillingHandler struct {
	Provider billing.Provider
	Users    core.UserStore
}

func (h *BillingHandler) Register(r chi.Router) {
	r.With(httpx.RequireAuth).Post("/v1/billing/sync", h.sync)
	r.With(httpx.RequireAuth).Post("/v1/billing/checkout", h.checkout)
}

func (h *BillingHandler) sync(w http.ResponseWriter, r *http.Request) {
	id := httpx.IdentityFrom(r.Context())
	sub, err := h.Provider.SubscriptionFor(r.Context(), id.UserID)
	if err != nil {
		logger.Named("handlers").Error("subscription lookup failed", logger.UserID(id.UserID), logger.Err(err))
		httpx.WriteError(w, httpx.ErrServiceUnavailable)
		return
	}

	plan := sub.Plan
	if !sub.Active {
		plan = "free"
	}
	if err := h.Users.SetUserPlan(r.Context(), id.UserID, plan); err != nil {
		logger.Named("handlers").Error("plan update failed", logger.UserID(id.UserID), logger.Err(err))
		httpx.WriteError(w, httpx.ErrInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"plan": plan, "active": sub.Active})
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

func (h *BillingHandler) checkout(w http.ResponseWriter, r *http.Request) {
	id := httpx.IdentityFrom(r.Context())
	var req checkoutRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Plan == "" {
		httpx.WriteError(w, httpx.ErrBadRequest.WithDetail("plan is required"))
		return
	}

	url, err := h.Provider.CheckoutURL(r.Context(), id.UserID, req.Plan)
	if err != nil {
		if errors.Is(err, billing.ErrCheckoutUnavailable) {
			httpx.WriteError(w, httpx.ErrServiceUnavailable.WithDetail("checkout is not configured"))
			return
		}
		logger.Named("handlers").Error("checkout failed", logger.UserID(id.UserID), logger.Err(err))
		httpx.WriteError(w, httpx.ErrInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}
