package metrics

import "time"

// NoopRecorder discards everything. The zero value is ready to use.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder { return NoopRecorder{} }

func (NoopRecorder) IncUpstreamRequest(string) {}
func (NoopRecorder) ObserveUpstreamDuration(time.Duration) {}
func (NoopRecorder) IncResponseCacheHit() {}
func (NoopRecorder) IncResponseCacheMiss() {}
func (NoopRecorder) IncAuthCacheHit() {}
func (NoopRecorder) IncAuthCacheMiss() {}
func (NoopRecorder) IncEventPublished(string) {}
func (NoopRecorder) SetEventQueueDepth(int64) {}
