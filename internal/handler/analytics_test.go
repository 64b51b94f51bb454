package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelbridge/reelbridge/internal/analytics"
	"github.com/reelbridge/reelbridge/internal/apperr"
)

type fakeAnalytics struct {
	err       error
	lastLimit int
}

func (f *fakeAnalytics) Overview(ctx context.Context) (analytics.Overview, error) {
	if f.err != nil {
		return analytics.Overview{}, f.err
	}
	return analytics.Overview{TotalRequests: 12, TotalErrors: 3, ErrorRate: "25.00"}, nil
}

func (f *fakeAnalytics) PopularSearches(ctx context.Context, limit int) ([]analytics.PopularSearch, error) {
	f.lastLimit = limit
	return []analytics.PopularSearch{{Query: "dune", Score: 4}, {Query: "alien", Score: 2}}, f.err
}

func (f *fakeAnalytics) PopularContent(ctx context.Context, limit int) (analytics.PopularContent, error) {
	f.lastLimit = limit
	return analytics.PopularContent{Movies: []map[string]any{}, TVShows: []map[string]any{}}, f.err
}

func (f *fakeAnalytics) UserEngagement(ctx context.Context) (analytics.Engagement, error) {
	return analytics.Engagement{ActiveUsersToday: 7}, f.err
}

func (f *fakeAnalytics) Performance(ctx context.Context) (map[string]analytics.EndpointPerformance, error) {
	return map[string]analytics.EndpointPerformance{
		"GET:/api/movies/{id}": {Requests: 4, AverageResponseTime: "12.50", ErrorRate: "0.00"},
	}, f.err
}

func newAnalyticsRouter(reader AnalyticsReader) http.Handler {
	h := NewAnalyticsHandler(reader, nil)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/analytics", h.Routes)
	return r
}

func TestAnalyticsHandler_Overview(t *testing.T) {
	r := newAnalyticsRouter(&fakeAnalytics{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/overview", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Data["totalRequests"] != float64(12) {
		t.Errorf("unexpected totalRequests: %v", body.Data["totalRequests"])
	}
	engagement, _ := body.Data["engagement"].(map[string]any)
	if engagement["activeUsersToday"] != float64(7) {
		t.Errorf("unexpected engagement: %v", body.Data["engagement"])
	}
	if body.Data["timestamp"] != "2026-03-01T12:00:00Z" {
		t.Errorf("unexpected timestamp: %v", body.Data["timestamp"])
	}
}

func TestAnalyticsHandler_PopularSearches_Limit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: analytics.DefaultTopLimit},
		{query: "?limit=3", want: 3},
		{query: "?limit=-1", want: analytics.DefaultTopLimit},
		{query: "?limit=abc", want: analytics.DefaultTopLimit},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			reader := &fakeAnalytics{}
			r := newAnalyticsRouter(reader)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/popular-searches"+tt.query, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
			if reader.lastLimit != tt.want {
				t.Errorf("expected limit %d, got %d", tt.want, reader.lastLimit)
			}
			var body struct {
				Data struct {
					Searches []analytics.PopularSearch `json:"searches"`
					Count    int                       `json:"count"`
				} `json:"data"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Data.Count != 2 || body.Data.Searches[0].Query != "dune" {
				t.Errorf("unexpected body: %+v", body.Data)
			}
		})
	}
}

func TestAnalyticsHandler_Performance(t *testing.T) {
	r := newAnalyticsRouter(&fakeAnalytics{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/performance", nil))

	var body struct {
		Data struct {
			Endpoints map[string]analytics.EndpointPerformance `json:"endpoints"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got := body.Data.Endpoints["GET:/api/movies/{id}"].Requests; got != 4 {
		t.Errorf("expected 4 requests, got %d", got)
	}
}

func TestAnalyticsHandler_StoreFailure(t *testing.T) {
	r := newAnalyticsRouter(&fakeAnalytics{err: apperr.Analytics("Failed to read analytics", errors.New("redis down"))})

	for _, path := range []string{"/overview", "/popular-searches", "/popular-content", "/user-engagement", "/performance"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics"+path, nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected status 500, got %d", path, rec.Code)
		}
		if body := decodeError(t, rec); body.Error.Code != apperr.CodeAnalytics {
			t.Errorf("%s: unexpected code %s", path, body.Error.Code)
		}
	}
}
