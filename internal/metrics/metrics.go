// Package metrics counts upstream calls, cache outcomes and analytics
// event delivery for the /metrics endpoint.
package metrics

import "time"

// Recorder receives metric events. Every method must be safe for
// concurrent use.
type Recorder interface {
	// IncUpstreamRequest counts one metadata API call; status is
	// "success" or "error".
	IncUpstreamRequest(status string)
	ObserveUpstreamDuration(d time.Duration)

	IncResponseCacheHit()
	IncResponseCacheMiss()

	IncAuthCacheHit()
	IncAuthCacheMiss()

	// IncEventPublished counts one analytics event; status is "success"
	// or "dropped".
	IncEventPublished(status string)
	SetEventQueueDepth(depth int64)
}

// Snapshotter exposes a point-in-time copy of the counters.
type Snapshotter interface {
	Snapshot() Snapshot
}
