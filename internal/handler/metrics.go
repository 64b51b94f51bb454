package handler

import (
	"bufio"
	"net/http"
	"strconv"

	"github.com/reelbridge/reelbridge/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

type sample struct {
	labels string
	value  string
}

type family struct {
	name    string
	kind    string
	help    string
	samples []sample
}

func count[T uint64 | int64](v T) string { return strconv.FormatInt(int64(v), 10) }

func families(s metrics.Snapshot) []family {
	return []family{
		{"reelbridge_upstream_requests_total", "counter", "Requests sent to the metadata API.", []sample{
			{`status="success"`, count(s.UpstreamRequests - s.UpstreamErrors)},
			{`status="error"`, count(s.UpstreamErrors)},
		}},
		{"reelbridge_upstream_duration_seconds", "summary", "Metadata API round trip time.", nil},
		{"reelbridge_response_cache_hits_total", "counter", "Upstream responses served from cache.", []sample{{"", count(s.ResponseCacheHits)}}},
		{"reelbridge_response_cache_misses_total", "counter", "Upstream responses not found in cache.", []sample{{"", count(s.ResponseCacheMisses)}}},
		{"reelbridge_auth_cache_hits_total", "counter", "Token verifications served from cache.", []sample{{"", count(s.AuthCacheHits)}}},
		{"reelbridge_auth_cache_misses_total", "counter", "Token verifications that hit the verifier.", []sample{{"", count(s.AuthCacheMisses)}}},
		{"reelbridge_events_published_total", "counter", "Analytics events handed to the sink.", []sample{
			{`status="success"`, count(s.EventsPublished)},
			{`status="dropped"`, count(s.EventsDropped)},
		}},
		{"reelbridge_event_queue_depth", "gauge", "Analytics events waiting for a flush.", []sample{{"", count(s.EventQueueDepth)}}},
	}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	out := bufio.NewWriter(w)
	defer out.Flush()

	for _, f := range families(snap) {
		out.WriteString("# HELP " + f.name + " " + f.help + "\n")
		out.WriteString("# TYPE " + f.name + " " + f.kind + "\n")
		if f.kind == "summary" {
			out.WriteString(f.name + "_count " + count(snap.UpstreamDurationCount) + "\n")
			out.WriteString(f.name + "_sum " + strconv.FormatFloat(float64(snap.UpstreamDurationTotalNs)/1e9, 'f', 6, 64) + "\n")
			continue
		}
		for _, s := range f.samples {
			name := f.name
			if s.labels != "" {
				name += "{" + s.labels + "}"
			}
			out.WriteString(name + " " + s.value + "\n")
		}
	}
}
