package cache

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type redisClient struct {
	c      *rdb.Client
	prefix string
}

// NewRedis is the shared backend for multi-instance deployments.
func NewRedis(cfg Config) Client {
	return &redisClient{
		c:      rdb.NewClient(&rdb.Options{Addr: cfg.Addr, DB: cfg.DB}),
		prefix: cfg.Prefix,
	}
}

// Raw exposes the underlying client (rate limiter shares the connection).
func (r *redisClient) Raw() *rdb.Client { return r.c }

func (r *redisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := r.c.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.c.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *redisClient) Consume(ctx context.Context, key string) (string, error) {
	v, err := r.c.GetDel(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *redisClient) Delete(ctx context.Context, key string) error {
	return r.c.Del(ctx, r.prefix+key).Err()
}

func (r *redisClient) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *redisClient) Close() error { return r.c.Close() }
