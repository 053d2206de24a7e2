// Package rate limits sensitive auth endpoints (login, forgot-password).
package rate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter: fixed window (INCR + EXPIRE).
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	if incr.Val() == 1 {
		_ = l.Client.Expire(ctx, redisKey, l.Window).Err()
		ttl = l.Client.TTL(ctx, redisKey)
	}

	hits := incr.Val()
	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= l.Max,
		Remaining:   remaining,
		CurrentHits: hits,
	}
	if !res.Allowed {
		res.RetryAfter = ttl.Val()
		if res.RetryAfter < 0 {
			res.RetryAfter = time.Duration(math.Ceil(l.Window.Seconds())) * time.Second
		}
	}
	return res, nil
}

// ByPath dispatches to a path-specific limiter when the key's path suffix
// matches, otherwise to Default. Keys have the form "<client>|<path>".
type ByPath struct {
	Default Limiter
	Paths   map[string]Limiter
}

func (b ByPath) Allow(ctx context.Context, key string) (Result, error) {
	if i := strings.LastIndexByte(key, '|'); i >= 0 {
		if l, ok := b.Paths[key[i+1:]]; ok {
			return l.Allow(ctx, key)
		}
	}
	return b.Default.Allow(ctx, key)
}

// MemoryLimiter is the single-instance fallback when no redis is configured.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu   sync.Mutex
	hits map[string]*window
}

type window struct {
	start time.Time
	n     int64
}

func NewMemoryLimiter(max int, windowDur time.Duration) *MemoryLimiter {
	return &MemoryLimiter{Max: int64(max), Window: windowDur, hits: make(map[string]*window)}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.hits[key]
	if !ok || now.Sub(w.start) >= l.Window {
		w = &window{start: now}
		l.hits[key] = w
	}
	w.n++

	remaining := l.Max - w.n
	if remaining < 0 {
		remaining = 0
	}
	res := Result{Allowed: w.n <= l.Max, Remaining: remaining, CurrentHits: w.n}
	if !res.Allowed {
		res.RetryAfter = l.Window - now.Sub(w.start)
	}
	return res, nil
}
