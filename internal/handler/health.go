package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/reelbridge/reelbridge/internal/respond"
)

// Service states reported by the health endpoints.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusNotReady  = "disabled-or-not-ready"
)

const deepCheckTimeout = 5 * time.Second

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ReadinessReporter reports whether an optional dependency is usable.
type ReadinessReporter interface {
	Ready() bool
}

// UpstreamProber calls the metadata API directly, bypassing the cache.
type UpstreamProber interface {
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
}

// HealthOptions configures a HealthHandler. Nil dependencies are reported
// as not ready or unhealthy.
type HealthOptions struct {
	Cache       ReadinessReporter
	Store       HealthChecker
	Upstream    UpstreamProber
	Version     string
	Environment string
	Started     time.Time
	Now         func() time.Time
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	opts HealthOptions
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(opts HealthOptions) *HealthHandler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Started.IsZero() {
		opts.Started = opts.Now()
	}
	return &HealthHandler{opts: opts}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (h *HealthHandler) timestamp() string {
	return h.opts.Now().UTC().Format(time.RFC3339Nano)
}

func (h *HealthHandler) cacheStatus() string {
	if h.opts.Cache != nil && h.opts.Cache.Ready() {
		return StatusHealthy
	}
	return StatusNotReady
}

// Health is the liveness endpoint. It always answers 200; the cache is
// optional and only reported.
//
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, HealthResponse{
		Status:    StatusHealthy,
		Version:   h.opts.Version,
		Timestamp: h.timestamp(),
		Services:  map[string]string{"cache": h.cacheStatus()},
	})
}

// Deep also probes the document store and the metadata API. Any unhealthy
// dependency makes the status degraded.
//
// GET /health/deep
func (h *HealthHandler) Deep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), deepCheckTimeout)
	defer cancel()

	services := map[string]string{
		"cache": h.cacheStatus(),
		"store": StatusUnhealthy,
		"tmdb":  StatusUnhealthy,
	}
	if h.opts.Store != nil && h.opts.Store.Ping(ctx) == nil {
		services["store"] = StatusHealthy
	}
	if h.opts.Upstream != nil {
		if _, err := h.opts.Upstream.Get(ctx, "/configuration", nil); err == nil {
			services["tmdb"] = StatusHealthy
		}
	}

	status := StatusHealthy
	if slices.Contains([]string{services["store"], services["tmdb"]}, StatusUnhealthy) {
		status = StatusDegraded
	}
	respond.OK(w, HealthResponse{
		Status:    status,
		Version:   h.opts.Version,
		Timestamp: h.timestamp(),
		Services:  services,
	})
}

// StatusResponse describes the running process.
type StatusResponse struct {
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Timestamp     string `json:"timestamp"`
}

// Status reports the environment and uptime.
//
// GET /status
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, StatusResponse{
		Environment:   h.opts.Environment,
		UptimeSeconds: int64(h.opts.Now().Sub(h.opts.Started).Seconds()),
		Timestamp:     h.timestamp(),
	})
}
