package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryClient struct {
	c      *gocache.Cache
	prefix string

	// mu serializes Consume; go-cache has no combined read-and-delete.
	mu sync.Mutex
}

// NewMemory is the in-process backend (dev/tests).
func NewMemory(prefix string, defaultTTL time.Duration) Client {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &memoryClient{c: gocache.New(defaultTTL, time.Minute), prefix: prefix}
}

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.prefix + key)
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(m.prefix+key, value, ttl)
	return nil
}

func (m *memoryClient) Consume(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(m.prefix + key)
	if !ok {
		return "", ErrNotFound
	}
	m.c.Delete(m.prefix + key)
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	m.c.Delete(m.prefix + key)
	return nil
}

func (m *memoryClient) Ping(ctx context.Context) error { return nil }

func (m *memoryClient) Close() error { return nil }
