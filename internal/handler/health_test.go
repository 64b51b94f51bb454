package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

type mockReadiness bool

func (m mockReadiness) Ready() bool { return bool(m) }

type mockProber struct {
	err  error
	path string
}

func (m *mockProber) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	m.path = path
	if m.err != nil {
		return nil, m.err
	}
	return json.RawMessage(`{}`), nil
}

type healthBody struct {
	Success bool           `json:"success"`
	Data    HealthResponse `json:"data"`
}

func serveHealth(t *testing.T, fn http.HandlerFunc) healthBody {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	fn(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body healthBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestHealthHandler_Health_CacheNotReady(t *testing.T) {
	h := NewHealthHandler(HealthOptions{Cache: mockReadiness(false), Version: "1.2.3"})

	body := serveHealth(t, h.Health)

	if body.Data.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", body.Data.Status)
	}
	if body.Data.Version != "1.2.3" {
		t.Errorf("unexpected version: %s", body.Data.Version)
	}
	if body.Data.Services["cache"] != StatusNotReady {
		t.Errorf("expected cache %s, got %s", StatusNotReady, body.Data.Services["cache"])
	}
}

func TestHealthHandler_Health_NoCache(t *testing.T) {
	h := NewHealthHandler(HealthOptions{})

	body := serveHealth(t, h.Health)

	if body.Data.Services["cache"] != StatusNotReady {
		t.Errorf("expected cache %s, got %s", StatusNotReady, body.Data.Services["cache"])
	}
}

func TestHealthHandler_Deep_AllHealthy(t *testing.T) {
	prober := &mockProber{}
	h := NewHealthHandler(HealthOptions{
		Cache:    mockReadiness(true),
		Store:    &mockHealthChecker{},
		Upstream: prober,
	})

	body := serveHealth(t, h.Deep)

	if body.Data.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", body.Data.Status)
	}
	for _, svc := range []string{"cache", "store", "tmdb"} {
		if body.Data.Services[svc] != StatusHealthy {
			t.Errorf("expected %s healthy, got %s", svc, body.Data.Services[svc])
		}
	}
	if prober.path != "/configuration" {
		t.Errorf("unexpected probe path: %s", prober.path)
	}
}

func TestHealthHandler_Deep_Degraded(t *testing.T) {
	tests := []struct {
		name     string
		opts     HealthOptions
		unhealthy string
	}{
		{
			name:     "store down",
			opts:     HealthOptions{Store: &mockHealthChecker{err: errors.New("connection refused")}, Upstream: &mockProber{}},
			unhealthy: "store",
		},
		{
			name:     "tmdb down",
			opts:     HealthOptions{Store: &mockHealthChecker{}, Upstream: &mockProber{err: errors.New("timeout")}},
			unhealthy: "tmdb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := serveHealth(t, NewHealthHandler(tt.opts).Deep)

			if body.Data.Status != StatusDegraded {
				t.Errorf("expected status degraded, got %s", body.Data.Status)
			}
			if body.Data.Services[tt.unhealthy] != StatusUnhealthy {
				t.Errorf("expected %s unhealthy, got %s", tt.unhealthy, body.Data.Services[tt.unhealthy])
			}
		})
	}
}

func TestHealthHandler_Deep_CacheDoesNotDegrade(t *testing.T) {
	h := NewHealthHandler(HealthOptions{
		Cache:    mockReadiness(false),
		Store:    &mockHealthChecker{},
		Upstream: &mockProber{},
	})

	if body := serveHealth(t, h.Deep); body.Data.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", body.Data.Status)
	}
}

func TestHealthHandler_Status(t *testing.T) {
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHealthHandler(HealthOptions{
		Environment: "production",
		Started:     started,
		Now:         func() time.Time { return started.Add(90 * time.Second) },
	})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	var body struct {
		Data StatusResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Data.Environment != "production" {
		t.Errorf("unexpected environment: %s", body.Data.Environment)
	}
	if body.Data.UptimeSeconds != 90 {
		t.Errorf("expected uptime 90, got %d", body.Data.UptimeSeconds)
	}
	if body.Data.Timestamp != "2026-01-01T00:01:30Z" {
		t.Errorf("unexpected timestamp: %s", body.Data.Timestamp)
	}
}
