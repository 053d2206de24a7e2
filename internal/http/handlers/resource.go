package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/bricks/internal/http"
	"github.com/dropDatabas3/bricks/internal/observability/logger"
	"github.com/dropDatabas3/bricks/internal/ownership"
)

// ResourceHandler serves the guarded CRUD surface for one owned resource
// type. Decode maps the request body onto a resource value; the engine owns
// authorization, quota and owner assignment.
type ResourceHandler[T ownership.Owned] struct {
	// Name is the URL segment and the metrics label, e.g. "projects".
	Name      string
	Service   *ownership.Service[T]
	Projector ownership.Projector[T]

	// Decode builds the incoming resource from the body. For updates, id is
	// the path id; for creates it is empty and Decode assigns a fresh one.
	Decode func(r *http.Request, w http.ResponseWriter, id string) (T, error)
}

func (h *ResourceHandler[T]) Register(r chi.Router) {
	base := "/v1/" + h.Name
	r.With(httpx.RequireAuth).Post(base, h.create)
	r.With(httpx.RequireAuth).Get(base, h.list)
	r.Get(base+"/{id}", h.get)
	r.With(httpx.RequireAuth).Patch(base+"/{id}", h.update)
	r.With(httpx.RequireAuth).Delete(base+"/{id}", h.remove)
}

func (h *ResourceHandler[T]) create(w http.ResponseWriter, r *http.Request) {
	viewer := httpx.ViewerFrom(r.Context())
	res, err := h.Decode(r, w, "")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	created, err := h.Service.Create(r.Context(), res, viewer)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, h.Projector.Project(created, viewer))
}

// get allows anonymous viewers through so policies with public read work;
// the engine still answers Forbidden for everything the policy denies.
func (h *ResourceHandler[T]) get(w http.ResponseWriter, r *http.Request) {
	viewer := httpx.ViewerFrom(r.Context())
	res, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"), viewer)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.Projector.Project(res, viewer))
}

func (h *ResourceHandler[T]) list(w http.ResponseWriter, r *http.Request) {
	viewer := httpx.ViewerFrom(r.Context())
	items, err := h.Service.List(r.Context(), viewer)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"items": h.Projector.ProjectAll(items, viewer),
	})
}

func (h *ResourceHandler[T]) update(w http.ResponseWriter, r *http.Request) {
	viewer := httpx.ViewerFrom(r.Context())
	id := chi.URLParam(r, "id")
	next, err := h.Decode(r, w, id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	updated, err := h.Service.Update(r.Context(), id, next, viewer)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.Projector.Project(updated, viewer))
}

func (h *ResourceHandler[T]) remove(w http.ResponseWriter, r *http.Request) {
	viewer := httpx.ViewerFrom(r.Context())
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id"), viewer); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ResourceHandler[T]) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ownership.ErrForbidden):
		// One status for "not yours" and "does not exist".
		httpx.WriteError(w, httpx.ErrForbidden)
	case errors.Is(err, ownership.ErrQuotaExceeded):
		httpx.RecordQuotaRejection(h.Name)
		httpx.WriteError(w, httpx.ErrQuotaExceeded)
	default:
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			httpx.WriteError(w, httpErr)
			return
		}
		logger.Named("handlers").Error("resource operation failed",
			logger.Resource(h.Name), logger.Err(err))
		httpx.WriteError(w, httpx.ErrInternalServerError)
	}
}
