package auth

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/blake2b"

	"github.com/reelbridge/reelbridge/internal/metrics"
)

const (
	DefaultTokenCacheSize = 1000
	DefaultTokenCacheTTL  = 5 * time.Minute
)

type cachedIdentity struct {
	identity *Identity
	expires  time.Time
}

// TokenCache remembers verified tokens. Entries are keyed by a hash of the
// token and never outlive the token's own expiry.
type TokenCache struct {
	lru     *expirable.LRU[string, cachedIdentity]
	metrics metrics.Recorder
	now     func() time.Time
}

// NewTokenCache creates a bounded cache.
func NewTokenCache(size int, ttl time.Duration, recorder metrics.Recorder) *TokenCache {
	if size <= 0 {
		size = DefaultTokenCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultTokenCacheTTL
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &TokenCache{
		lru:     expirable.NewLRU[string, cachedIdentity](size, nil, ttl),
		metrics: recorder,
		now:     time.Now,
	}
}

// TokenKey hashes a raw token for use as a cache key.
func TokenKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached identity for token.
func (c *TokenCache) Get(token string) (*Identity, bool) {
	key := TokenKey(token)
	entry, ok := c.lru.Get(key)
	if ok && !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		c.lru.Remove(key)
		ok = false
	}
	if !ok {
		c.metrics.IncAuthCacheMiss()
		return nil, false
	}
	c.metrics.IncAuthCacheHit()
	return entry.identity, true
}

// Add caches id for token.
func (c *TokenCache) Add(token string, id *Identity) {
	c.lru.Add(TokenKey(token), cachedIdentity{identity: id, expires: expiry(id)})
}

// Len returns the number of cached tokens.
func (c *TokenCache) Len() int {
	return c.lru.Len()
}

func expiry(id *Identity) time.Time {
	if id == nil {
		return time.Time{}
	}
	switch exp := id.Claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0)
	case int64:
		return time.Unix(exp, 0)
	}
	return time.Time{}
}

// CachingVerifier consults a TokenCache before verifying.
type CachingVerifier struct {
	next  Verifier
	cache *TokenCache
}

// NewCachingVerifier wraps next with cache.
func NewCachingVerifier(next Verifier, cache *TokenCache) *CachingVerifier {
	return &CachingVerifier{next: next, cache: cache}
}

// Verify implements Verifier.
func (v *CachingVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if id, ok := v.cache.Get(token); ok {
		return id, nil
	}
	id, err := v.next.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	v.cache.Add(token, id)
	return id, nil
}
