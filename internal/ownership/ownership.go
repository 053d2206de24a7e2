// Package ownership is a generic authorization layer for owner-scoped
// resources: capability checks, per-owner quotas evaluated atomically with
// the insert, and viewer-aware projection. Resource services parameterize it
// with strategy functions instead of subclassing anything.
package ownership

import (
	"context"
	"errors"
)

var (
	// ErrForbidden is the single answer for both "not yours" and "does not
	// exist" on guarded reads/writes, so response codes never leak whether a
	// resource id is real.
	ErrForbidden = errors.New("ownership: forbidden")

	// ErrQuotaExceeded: the owner is at the configured maximum for this type.
	ErrQuotaExceeded = errors.New("ownership: quota exceeded")
)

// Owned is any entity governed by an owner reference. The owner is assigned
// at creation from the viewer and never changes.
type Owned interface {
	OwnerID() string
}

// Viewer is the authenticated identity a request acts as. A nil *Viewer is
// an anonymous caller: every default capability denies it.
type Viewer struct {
	ID   string
	Plan string
}

// Policy carries the override points for one resource type. Nil fields mean
// the owner-only default. Overrides widen or narrow access (public read,
// admin delete) without touching the engine.
type Policy[T Owned] struct {
	CanView   func(res T, viewer *Viewer) bool
	CanEdit   func(res T, viewer *Viewer) bool
	CanDelete func(res T, viewer *Viewer) bool

	// MaxPerOwner returns the live-resource ceiling for this viewer's plan.
	// nil or a non-positive return means unbounded.
	MaxPerOwner func(viewer *Viewer) int

	// Hooks run inside the guarded paths. PreCreate/PreUpdate may mutate the
	// resource (validation, normalization); an error aborts before persist.
	PreCreate  func(ctx context.Context, res *T, viewer *Viewer) error
	PostCreate func(ctx context.Context, res T, viewer *Viewer)
	PreUpdate  func(ctx context.Context, cur T, next *T, viewer *Viewer) error
	PreDelete  func(ctx context.Context, res T, viewer *Viewer) error
}

func ownerOnly[T Owned](res T, viewer *Viewer) bool {
	return viewer != nil && viewer.ID != "" && viewer.ID == res.OwnerID()
}

// View reports whether viewer may read res.
func (p Policy[T]) View(res T, viewer *Viewer) bool {
	if p.CanView != nil {
		return p.CanView(res, viewer)
	}
	return ownerOnly(res, viewer)
}

// Edit reports whether viewer may mutate res.
func (p Policy[T]) Edit(res T, viewer *Viewer) bool {
	if p.CanEdit != nil {
		return p.CanEdit(res, viewer)
	}
	return ownerOnly(res, viewer)
}

// Delete reports whether viewer may remove res.
func (p Policy[T]) Delete(res T, viewer *Viewer) bool {
	if p.CanDelete != nil {
		return p.CanDelete(res, viewer)
	}
	return ownerOnly(res, viewer)
}

func (p Policy[T]) maxFor(viewer *Viewer) int {
	if p.MaxPerOwner == nil {
		return 0
	}
	return p.MaxPerOwner(viewer)
}

// Store is the persistence contract a resource type plugs in. Insert must
// enforce max atomically with the write (max <= 0 disables the check) and
// return the store's quota error when the ceiling is hit.
type Store[T Owned] interface {
	Insert(ctx context.Context, res *T, max int) error
	Get(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, res *T) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]T, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
}
