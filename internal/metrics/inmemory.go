package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UpstreamRequests        uint64
	UpstreamErrors          uint64
	UpstreamDurationCount   uint64
	UpstreamDurationTotalNs int64
	ResponseCacheHits       uint64
	ResponseCacheMisses     uint64
	AuthCacheHits           uint64
	AuthCacheMisses         uint64
	EventsPublished         uint64
	EventsDropped           uint64
	EventQueueDepth         int64
}

// InMemoryRecorder stores metrics in memory for the /metrics endpoint and tests.
type InMemoryRecorder struct {
	upstreamRequests        uint64
	upstreamErrors          uint64
	upstreamDurationCount   uint64
	upstreamDurationTotalNs int64
	responseCacheHits       uint64
	responseCacheMisses     uint64
	authCacheHits           uint64
	authCacheMisses         uint64
	eventsPublished         uint64
	eventsDropped           uint64
	eventQueueDepth         int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UpstreamRequests:        atomic.LoadUint64(&m.upstreamRequests),
		UpstreamErrors:          atomic.LoadUint64(&m.upstreamErrors),
		UpstreamDurationCount:   atomic.LoadUint64(&m.upstreamDurationCount),
		UpstreamDurationTotalNs: atomic.LoadInt64(&m.upstreamDurationTotalNs),
		ResponseCacheHits:       atomic.LoadUint64(&m.responseCacheHits),
		ResponseCacheMisses:     atomic.LoadUint64(&m.responseCacheMisses),
		AuthCacheHits:           atomic.LoadUint64(&m.authCacheHits),
		AuthCacheMisses:         atomic.LoadUint64(&m.authCacheMisses),
		EventsPublished:         atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:           atomic.LoadUint64(&m.eventsDropped),
		EventQueueDepth:         atomic.LoadInt64(&m.eventQueueDepth),
	}
}

// IncUpstreamRequest counts an upstream call by outcome.
func (m *InMemoryRecorder) IncUpstreamRequest(status string) {
	atomic.AddUint64(&m.upstreamRequests, 1)
	if status != "success" {
		atomic.AddUint64(&m.upstreamErrors, 1)
	}
}

// ObserveUpstreamDuration records upstream call latency.
func (m *InMemoryRecorder) ObserveUpstreamDuration(duration time.Duration) {
	atomic.AddUint64(&m.upstreamDurationCount, 1)
	atomic.AddInt64(&m.upstreamDurationTotalNs, duration.Nanoseconds())
}

// IncResponseCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncResponseCacheHit() {
	atomic.AddUint64(&m.responseCacheHits, 1)
}

// IncResponseCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncResponseCacheMiss() {
	atomic.AddUint64(&m.responseCacheMisses, 1)
}

// IncAuthCacheHit increments token cache hit counter.
func (m *InMemoryRecorder) IncAuthCacheHit() {
	atomic.AddUint64(&m.authCacheHits, 1)
}

// IncAuthCacheMiss increments token cache miss counter.
func (m *InMemoryRecorder) IncAuthCacheMiss() {
	atomic.AddUint64(&m.authCacheMisses, 1)
}

// IncEventPublished counts analytics events by delivery outcome.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.eventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.eventsDropped, 1)
}

// SetEventQueueDepth records pending analytics events.
func (m *InMemoryRecorder) SetEventQueueDepth(depth int64) {
	atomic.StoreInt64(&m.eventQueueDepth, depth)
}
