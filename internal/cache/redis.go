// Package cache provides the Redis access layer and the response cache
// that fronts upstream metadata calls.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/redis/go-redis/v9"
)

// connectAttempts is how many times New pings Redis before giving up.
const connectAttempts = 3

// Cache provides Redis cache access methods.
// A nil *Cache is valid and reports itself as not ready.
type Cache struct {
	client *redis.Client
	ready  atomic.Bool
}

// New creates a new Cache with a Redis client.
// The initial ping is retried a few times to ride out slow container starts.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	err = retry.Do(
		func() error { return client.Ping(ctx).Err() },
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	c := &Cache{client: client}
	c.ready.Store(true)
	return c, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client) *Cache {
	c := &Cache{client: client}
	c.ready.Store(true)
	return c
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("redis not configured")
	}
	return c.client.Ping(ctx).Err()
}

// Ready reports whether the last health probe succeeded.
func (c *Cache) Ready() bool {
	return c != nil && c.ready.Load()
}

// Watch pings Redis every interval and updates the ready flag until ctx is done.
func (c *Cache) Watch(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if c == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := c.client.Ping(pingCtx).Err()
			cancel()

			was := c.ready.Swap(err == nil)
			if was && err != nil {
				logger.Warn("redis unavailable, falling back to memory cache", slog.String("error", err.Error()))
			} else if !was && err == nil {
				logger.Info("redis connection restored")
			}
		}
	}
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Client returns the underlying Redis client.
// Use sparingly - prefer adding methods to Cache.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.client
}
