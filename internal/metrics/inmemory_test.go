package metrics

import (
	"testing"
	"time"
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncUpstreamRequest("success")
	m.IncUpstreamRequest("error")
	m.ObserveUpstreamDuration(250 * time.Millisecond)
	m.IncResponseCacheHit()
	m.IncResponseCacheMiss()
	m.IncResponseCacheMiss()
	m.IncAuthCacheHit()
	m.IncEventPublished("success")
	m.IncEventPublished("dropped")
	m.SetEventQueueDepth(7)

	snap := m.Snapshot()
	if snap.UpstreamRequests != 2 || snap.UpstreamErrors != 1 {
		t.Errorf("upstream counters = %d/%d, want 2/1", snap.UpstreamRequests, snap.UpstreamErrors)
	}
	if snap.UpstreamDurationTotalNs != int64(250*time.Millisecond) {
		t.Errorf("duration total = %d", snap.UpstreamDurationTotalNs)
	}
	if snap.ResponseCacheHits != 1 || snap.ResponseCacheMisses != 2 {
		t.Errorf("cache counters = %d/%d, want 1/2", snap.ResponseCacheHits, snap.ResponseCacheMisses)
	}
	if snap.AuthCacheHits != 1 || snap.AuthCacheMisses != 0 {
		t.Errorf("auth counters = %d/%d", snap.AuthCacheHits, snap.AuthCacheMisses)
	}
	if snap.EventsPublished != 1 || snap.EventsDropped != 1 {
		t.Errorf("event counters = %d/%d", snap.EventsPublished, snap.EventsDropped)
	}
	if snap.EventQueueDepth != 7 {
		t.Errorf("queue depth = %d, want 7", snap.EventQueueDepth)
	}
}

func TestNoopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewNoop()
	r.IncUpstreamRequest("success")
	r.SetEventQueueDepth(1)
}
