package cache

import (
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"time"
)

// ResponseCache stores serialized upstream responses by semantic key.
// Implementations hash the key before storage and treat every backend
// failure as a miss.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// HashKey derives the storage key for a semantic cache key.
func HashKey(key string) string {
	sum := sha1.Sum([]byte(key)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// RedisResponseCache is a ResponseCache backed by Redis strings.
type RedisResponseCache struct {
	cache *Cache
}

// NewRedisResponseCache creates a ResponseCache over c.
func NewRedisResponseCache(c *Cache) *RedisResponseCache {
	return &RedisResponseCache{cache: c}
}

// Get returns the stored value. Redis errors are reported as misses.
func (r *RedisResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.cache.client.Get(ctx, HashKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores value with ttl. Failures are dropped.
func (r *RedisResponseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = r.cache.client.Set(ctx, HashKey(key), value, ttl).Err()
}

// FallbackCache routes to Redis while it is ready and to process memory otherwise.
type FallbackCache struct {
	redis  *Cache
	remote *RedisResponseCache
	local  *MemoryCache
}

// NewFallbackCache creates a ResponseCache that prefers redis and falls back to local.
// redis may be nil, in which case only local is used.
func NewFallbackCache(redis *Cache, local *MemoryCache) *FallbackCache {
	f := &FallbackCache{redis: redis, local: local}
	if redis != nil {
		f.remote = NewRedisResponseCache(redis)
	}
	return f
}

// Get implements ResponseCache.
func (f *FallbackCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if f.redis.Ready() {
		return f.remote.Get(ctx, key)
	}
	return f.local.Get(ctx, key)
}

// Set implements ResponseCache.
func (f *FallbackCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if f.redis.Ready() {
		f.remote.Set(ctx, key, value, ttl)
		return
	}
	f.local.Set(ctx, key, value, ttl)
}

// Backend names the store currently serving requests.
func (f *FallbackCache) Backend() string {
	if f.redis.Ready() {
		return "redis"
	}
	return "memory"
}
