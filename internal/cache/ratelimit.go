package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitPrefix is the Redis key prefix for fixed-window counters.
const rateLimitPrefix = "ratelimit:"

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// fixedWindowScript counts hits in the current window.
// The window starts with the first hit and lasts ARGV[1] milliseconds.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local window = tonumber(ARGV[1])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window)
	end

	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window)
		ttl = window
	end

	return {count, ttl}
`)

// CheckRateLimit records a hit for client in the named bucket and reports
// whether the request fits in the window.
// Redis errors fail open: the request is allowed.
func (c *Cache) CheckRateLimit(ctx context.Context, bucket, client string, limit int, window time.Duration) *RateLimitResult {
	key := rateLimitPrefix + bucket + ":" + hashIP(client)

	result, err := fixedWindowScript.Run(ctx, c.client,
		[]string{key},
		window.Milliseconds(),
	).Int64Slice()
	if err != nil || len(result) != 2 {
		return &RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: int64(limit),
			ResetAt:   time.Now().Add(window),
		}
	}

	return windowResult(result[0], time.Duration(result[1])*time.Millisecond, limit)
}

func windowResult(count int64, ttl time.Duration, limit int) *RateLimitResult {
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	res := &RateLimitResult{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}

// hashIP creates a truncated SHA256 hash of an IP address.
// This provides privacy while maintaining uniqueness.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
