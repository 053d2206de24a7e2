package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	httpx "github.com/dropDatabas3/bricks/internal/http"
	"github.com/dropDatabas3/bricks/internal/ownership"
	"github.com/dropDatabas3/bricks/internal/store/core"
)

// projectStoreAdapter bridges core.ProjectStore into the ownership engine.
type projectStoreAdapter struct {
	s core.ProjectStore
}

func (a projectStoreAdapter) Insert(ctx context.Context, res *core.Project, max int) error {
	return a.s.InsertProject(ctx, res, max)
}

func (a projectStoreAdapter) Get(ctx context.Context, id string) (core.Project, error) {
	p, err := a.s.GetProject(ctx, id)
	if err != nil {
		return core.Project{}, err
	}
	return *p, nil
}

func (a projectStoreAdapter) Update(ctx context.Context, res *core.Project) error {
	return a.s.UpdateProject(ctx, res)
}

func (a projectStoreAdapter) Delete(ctx context.Context, id string) error {
	return a.s.DeleteProject(ctx, id)
}

func (a projectStoreAdapter) ListByOwner(ctx context.Context, ownerID string) ([]core.Project, error) {
	return a.s.ListProjectsByOwner(ctx, ownerID)
}

func (a projectStoreAdapter) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	return a.s.CountProjectsByOwner(ctx, ownerID)
}

const maxProjectNameLen = 120

// NewProjectsHandler assembles the ownership service, policy and projector
// for projects. quotas maps plan name to the per-owner ceiling.
func NewProjectsHandler(store core.ProjectStore, quotas map[string]int) *ResourceHandler[core.Project] {
	policy := ownership.Policy[core.Project]{
		MaxPerOwner: func(viewer *ownership.Viewer) int {
			if viewer == nil {
				return 0
			}
			return quotas[viewer.Plan]
		},
		PreCreate: func(ctx context.Context, p *core.Project, viewer *ownership.Viewer) error {
			p.Name = strings.TrimSpace(p.Name)
			if p.Name == "" {
				return httpx.ErrBadRequest.WithDetail("name is required")
			}
			if len(p.Name) > maxProjectNameLen {
				return httpx.ErrBadRequest.WithDetail("name too long")
			}
			now := time.Now().UTC()
			p.CreatedAt = now
			p.UpdatedAt = now
			return nil
		},
		PreUpdate: func(ctx context.Context, cur core.Project, next *core.Project, viewer *ownership.Viewer) error {
			next.Name = strings.TrimSpace(next.Name)
			if next.Name == "" {
				return httpx.ErrBadRequest.WithDetail("name is required")
			}
			if len(next.Name) > maxProjectNameLen {
				return httpx.ErrBadRequest.WithDetail("name too long")
			}
			next.CreatedAt = cur.CreatedAt
			next.UpdatedAt = time.Now().UTC()
			return nil
		},
	}

	svc := ownership.NewService[core.Project](
		projectStoreAdapter{s: store},
		policy,
		func(p *core.Project, ownerID string) { p.Owner = ownerID },
	)

	projector := ownership.Projector[core.Project]{
		Public: func(p core.Project) map[string]any {
			return map[string]any{
				"id":         p.ID,
				"name":       p.Name,
				"created_at": p.CreatedAt,
			}
		},
		OwnerOnly: func(p core.Project) map[string]any {
			return map[string]any{
				"notes":      p.Notes,
				"updated_at": p.UpdatedAt,
			}
		},
	}

	return &ResourceHandler[core.Project]{
		Name:      "projects",
		Service:   svc,
		Projector: projector,
		Decode: func(r *http.Request, w http.ResponseWriter, id string) (core.Project, error) {
			var body struct {
				Name  string `json:"name"`
				Notes string `json:"notes"`
			}
			if err := httpx.ReadJSON(w, r, &body); err != nil {
				return core.Project{}, err
			}
			if id == "" {
				id = uuid.NewString()
			}
			return core.Project{ID: id, Name: body.Name, Notes: body.Notes}, nil
		},
	}
}
