package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// HashIncrement is one HINCRBY applied by RecordHits.
type HashIncrement struct {
	Key   string
	Field string
	By    int64
}

// RecordHits applies counter and hash increments in a single pipeline.
func (c *Cache) RecordHits(ctx context.Context, counters []string, fields []HashIncrement) error {
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range counters {
			pipe.Incr(ctx, key)
		}
		for _, f := range fields {
			pipe.HIncrBy(ctx, f.Key, f.Field, f.By)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record hits: %w", err)
	}
	return nil
}

// ZAdd adds or rescores member in the sorted set at key.
func (c *Cache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// SAddExpire adds member to the set at key and refreshes its expiry.
func (c *Cache) SAddExpire(ctx context.Context, key, member string, ttl time.Duration) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, member)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// GetInt returns the integer stored at key, or 0 when absent.
func (c *Cache) GetInt(ctx context.Context, key string) (int64, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil //nolint:nilerr // non-numeric counters read as zero
	}
	return n, nil
}

// HGetAll returns all fields of the hash at key.
func (c *Cache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

// ZTop returns up to n members with the highest scores, highest first.
func (c *Cache) ZTop(ctx context.Context, key string, n int) ([]ScoredMember, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := c.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		out = append(out, ScoredMember{Member: member, Score: z.Score})
	}
	return out, nil
}

// SCard returns the cardinality of the set at key.
func (c *Cache) SCard(ctx context.Context, key string) (int64, error) {
	return c.client.SCard(ctx, key).Result()
}
