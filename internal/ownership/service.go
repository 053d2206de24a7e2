package ownership

import (
	"context"
	"errors"

	"github.com/dropDatabas3/bricks/internal/store/core"
)

// Service runs the guarded CRUD paths for one resource type. All denial
// cases fail closed as ErrForbidden.
type Service[T Owned] struct {
	store       Store[T]
	policy      Policy[T]
	assignOwner func(res *T, ownerID string)

	// unknown ids answer like foreign ids.
	notFoundIsForbidden bool
}

// NewService wires a store, a policy and an owner setter. assignOwner exists
// because Go generics cannot write to a field of T; every resource type
// provides the one-liner.
func NewService[T Owned](store Store[T], policy Policy[T], assignOwner func(res *T, ownerID string)) *Service[T] {
	return &Service[T]{
		store:               store,
		policy:              policy,
		assignOwner:         assignOwner,
		notFoundIsForbidden: true,
	}
}

// Policy exposes the configured policy (projectors, handlers).
func (s *Service[T]) Policy() Policy[T] { return s.policy }

// Create persists a new resource owned by the viewer. The owner comes from
// the authenticated identity, never from the payload, and the quota check
// happens inside the store's atomic insert.
func (s *Service[T]) Create(ctx context.Context, res T, viewer *Viewer) (T, error) {
	var zero T
	if viewer == nil || viewer.ID == "" {
		return zero, ErrForbidden
	}
	s.assignOwner(&res, viewer.ID)

	if s.policy.PreCreate != nil {
		if err := s.policy.PreCreate(ctx, &res, viewer); err != nil {
			return zero, err
		}
	}
	if err := s.store.Insert(ctx, &res, s.policy.maxFor(viewer)); err != nil {
		if errors.Is(err, core.ErrQuotaExceeded) {
			return zero, ErrQuotaExceeded
		}
		return zero, err
	}
	if s.policy.PostCreate != nil {
		s.policy.PostCreate(ctx, res, viewer)
	}
	return res, nil
}

// Get loads a resource the viewer may see.
func (s *Service[T]) Get(ctx context.Context, id string, viewer *Viewer) (T, error) {
	var zero T
	res, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	if !s.policy.View(res, viewer) {
		return zero, ErrForbidden
	}
	return res, nil
}

// Update applies next after the edit capability check. Owner and identity
// fields of the stored row win over anything in next.
func (s *Service[T]) Update(ctx context.Context, id string, next T, viewer *Viewer) (T, error) {
	var zero T
	cur, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	if !s.policy.Edit(cur, viewer) {
		return zero, ErrForbidden
	}
	if s.policy.PreUpdate != nil {
		if err := s.policy.PreUpdate(ctx, cur, &next, viewer); err != nil {
			return zero, err
		}
	}
	s.assignOwner(&next, cur.OwnerID())
	if err := s.store.Update(ctx, &next); err != nil {
		return zero, err
	}
	return next, nil
}

// Delete removes a resource after the delete capability check.
func (s *Service[T]) Delete(ctx context.Context, id string, viewer *Viewer) error {
	cur, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !s.policy.Delete(cur, viewer) {
		return ErrForbidden
	}
	if s.policy.PreDelete != nil {
		if err := s.policy.PreDelete(ctx, cur, viewer); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, id)
}

// List returns the resources the viewer can see; the default scope is the
// viewer's own.
func (s *Service[T]) List(ctx context.Context, viewer *Viewer) ([]T, error) {
	if viewer == nil || viewer.ID == "" {
		return nil, ErrForbidden
	}
	items, err := s.store.ListByOwner(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if s.policy.View(it, viewer) {
			out = append(out, it)
		}
	}
	return out, nil
}

// QuotaRemaining reports whether the viewer may create one more resource.
// Advisory only: Create re-checks atomically.
func (s *Service[T]) QuotaRemaining(ctx context.Context, viewer *Viewer) (bool, error) {
	if viewer == nil || viewer.ID == "" {
		return false, ErrForbidden
	}
	max := s.policy.maxFor(viewer)
	if max <= 0 {
		return true, nil
	}
	n, err := s.store.CountByOwner(ctx, viewer.ID)
	if err != nil {
		return false, err
	}
	return n < max, nil
}

func (s *Service[T]) load(ctx context.Context, id string) (T, error) {
	var zero T
	res, err := s.store.Get(ctx, id)
	if err != nil {
		if s.notFoundIsForbidden && errors.Is(err, core.ErrNotFound) {
			// Unknown id and foreign id answer identically.
			return zero, ErrForbidden
		}
		return zero, err
	}
	return res, nil
}
