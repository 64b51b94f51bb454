package tmdb

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/reelbridge/reelbridge/internal/cache"
	"github.com/reelbridge/reelbridge/internal/metrics"
)

// Cache TTLs per resource family.
const (
	TTLList            = 6 * time.Hour
	TTLDetails         = 24 * time.Hour
	TTLSeason          = 24 * time.Hour
	TTLSearch          = 1 * time.Hour
	TTLTrending        = 3 * time.Hour
	TTLReviews         = 12 * time.Hour
	TTLRecommendations = 6 * time.Hour
	TTLFind            = 24 * time.Hour
	TTLGenres          = 7 * 24 * time.Hour
	TTLKeywords        = 6 * time.Hour
)

// Response sources reported to clients.
const (
	SourceCache    = "cache"
	SourceUpstream = "upstream"
)

// Result is a fetched payload tagged with where it came from.
type Result struct {
	Data   json.RawMessage
	Source string
}

// CacheTracker is notified of response cache outcomes.
type CacheTracker interface {
	TrackCacheHit(ctx context.Context, key string)
	TrackCacheMiss(ctx context.Context, key string)
}

// CachedClient fronts a Getter with a response cache.
// Failed upstream calls are never cached.
type CachedClient struct {
	upstream Getter
	cache    cache.ResponseCache
	metrics  metrics.Recorder
	tracker  CacheTracker
}

// NewCachedClient creates a CachedClient. recorder and tracker may be nil.
func NewCachedClient(upstream Getter, c cache.ResponseCache, recorder metrics.Recorder, tracker CacheTracker) *CachedClient {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CachedClient{
		upstream: upstream,
		cache:    c,
		metrics:  recorder,
		tracker:  tracker,
	}
}

// Key builds the semantic cache key for path and params.
func Key(path string, params url.Values) string {
	return "tmdb:" + path + ":" + canonicalParams(params)
}

// Fetch returns the cached payload for path and params, calling upstream on a miss.
func (c *CachedClient) Fetch(ctx context.Context, path string, params url.Values, ttl time.Duration) (*Result, error) {
	return c.FetchKey(ctx, Key(path, params), path, params, ttl)
}

// FetchKey is Fetch with an explicit semantic key.
func (c *CachedClient) FetchKey(ctx context.Context, key, path string, params url.Values, ttl time.Duration) (*Result, error) {
	return c.Remember(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		return c.upstream.Get(ctx, path, params)
	})
}

// Remember returns the value cached under key, or computes and stores it.
// Errors from compute are returned as-is and nothing is stored.
func (c *CachedClient) Remember(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) (*Result, error) {
	if data, ok := c.cache.Get(ctx, key); ok {
		c.metrics.IncResponseCacheHit()
		if c.tracker != nil {
			c.tracker.TrackCacheHit(ctx, key)
		}
		return &Result{Data: data, Source: SourceCache}, nil
	}

	c.metrics.IncResponseCacheMiss()
	if c.tracker != nil {
		c.tracker.TrackCacheMiss(ctx, key)
	}

	data, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, data, ttl)
	return &Result{Data: data, Source: SourceUpstream}, nil
}

// FetchInto fetches and decodes the payload into v.
func (c *CachedClient) FetchInto(ctx context.Context, path string, params url.Values, ttl time.Duration, v any) (string, error) {
	res, err := c.Fetch(ctx, path, params, ttl)
	if err != nil {
		return "", err
	}
	if err := Decode(res.Data, v); err != nil {
		return "", err
	}
	return res.Source, nil
}

// canonicalParams marshals params as a JSON object with sorted keys.
// Integer values are encoded as numbers.
func canonicalParams(params url.Values) string {
	if len(params) == 0 {
		return "{}"
	}
	obj := make(map[string]any, len(params))
	for k, v := range params {
		if len(v) == 0 {
			continue
		}
		if n, err := strconv.ParseInt(v[0], 10, 64); err == nil && strconv.FormatInt(n, 10) == v[0] {
			obj[k] = n
			continue
		}
		obj[k] = v[0]
	}
	data, _ := json.Marshal(obj) // map keys are sorted
	return string(data)
}
