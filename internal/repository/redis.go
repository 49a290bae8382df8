package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses a redis:// URL and pings the server. Callers treat an
// error as "run without rate limiting and idempotency caching".
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = l.prefix + ":" + key

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	remaining := ttl.Val()
	// First hit in the window (or a key that lost its TTL) starts the clock.
	if incr.Val() == 1 || remaining < 0 {
		if err := l.rdb.PExpire(ctx, key, l.window).Err(); err != nil {
			return false, 0, err
		}
		remaining = l.window
	}

	if incr.Val() > int64(l.limit) {
		return false, remaining, nil
	}
	return true, 0, nil
}

// IdempotencyCache stores replayable responses.
type IdempotencyCache struct {
	rdb *redis.Client
}

func NewIdempotencyCache(rdb *redis.Client) *IdempotencyCache {
	return &IdempotencyCache{rdb: rdb}
}

func (c *IdempotencyCache) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *IdempotencyCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	return c.rdb.Set(ctx, key, value, ttl).Err()
}
