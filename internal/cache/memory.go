package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultMemoryMaxEntries bounds the in-process cache when no limit is given.
const DefaultMemoryMaxEntries = 5000

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process ResponseCache with per-entry expiry.
// Entries past their expiry are never returned. When the map grows past
// maxEntries, expired entries are swept first, then the entries closest to
// expiry are evicted.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates a MemoryCache bounded to maxEntries.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryMaxEntries
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get implements ResponseCache.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	h := HashKey(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[h]
	if !ok {
		return nil, false
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, h)
		return nil, false
	}
	return entry.value, true
}

// Set implements ResponseCache.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	h := HashKey(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[h] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	if len(m.entries) > m.maxEntries {
		m.evictLocked()
	}
}

// Len returns the number of stored entries, including not yet swept expired ones.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryCache) evictLocked() {
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}

	excess := len(m.entries) - m.maxEntries
	if excess <= 0 {
		return
	}

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return m.entries[keys[i]].expiresAt.Before(m.entries[keys[j]].expiresAt)
	})
	for _, k := range keys[:excess] {
		delete(m.entries, k)
	}
}
