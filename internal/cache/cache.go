// Package cache is a small key-value abstraction with memory and redis
// backends. The auth flows keep OAuth state/nonce pairs here.
package cache

import (
	"context"
	"time"
)

// Client is the cache contract.
type Client interface {
	// Get returns the value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value. ttl 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Consume returns the value and removes the key in one step, so each
	// stored value is readable exactly once. Absent -> ErrNotFound.
	Consume(ctx context.Context, key string) (string, error)

	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error

	Close() error
}

type Config struct {
	Kind       string // "memory" | "redis"
	Addr       string
	DB         int
	Prefix     string
	DefaultTTL time.Duration
}

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New picks the backend from config; memory is the default.
func New(cfg Config) (Client, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(cfg), nil
	default:
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	}
}
