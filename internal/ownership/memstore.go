package ownership

import (
	"context"
	"sync"

	"github.com/dropDatabas3/bricks/internal/store/core"
)

// MemStore is a mutex-guarded Store for tests and the memory backend.
type MemStore[T Owned] struct {
	// ID extracts the resource key.
	ID func(res T) string

	mu    sync.Mutex
	items map[string]T
}

func NewMemStore[T Owned](id func(res T) string) *MemStore[T] {
	return &MemStore[T]{ID: id, items: make(map[string]T)}
}

func (s *MemStore[T]) Insert(ctx context.Context, res *T, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ID(*res)
	if _, ok := s.items[id]; ok {
		return core.ErrConflict
	}
	if max > 0 {
		n := 0
		for _, it := range s.items {
			if it.OwnerID() == (*res).OwnerID() {
				n++
			}
		}
		if n >= max {
			return core.ErrQuotaExceeded
		}
	}
	s.items[id] = *res
	return nil
}

func (s *MemStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.items[id]
	if !ok {
		var zero T
		return zero, core.ErrNotFound
	}
	return res, nil
}

func (s *MemStore[T]) Update(ctx context.Context, res *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ID(*res)
	if _, ok := s.items[id]; !ok {
		return core.ErrNotFound
	}
	s.items[id] = *res
	return nil
}

func (s *MemStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemStore[T]) ListByOwner(ctx context.Context, ownerID string) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []T
	for _, it := range s.items {
		if it.OwnerID() == ownerID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *MemStore[T]) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		if it.OwnerID() == ownerID {
			n++
		}
	}
	return n, nil
}
