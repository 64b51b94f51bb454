package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/reelbridge/reelbridge/internal/cache"
	"github.com/reelbridge/reelbridge/internal/testutil"
)

type countingStore struct {
	mu     sync.Mutex
	ready  bool
	counts map[string]int
}

func (s *countingStore) Ready() bool { return s.ready }

func (s *countingStore) CheckRateLimit(_ context.Context, bucket, client string, limit int, window time.Duration) *cache.RateLimitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucket + ":" + client
	s.counts[key]++
	n := s.counts[key]
	res := &cache.RateLimitResult{
		Allowed:   n <= limit,
		Limit:     limit,
		Remaining: int64(max(limit-n, 0)),
		ResetAt:   time.Now().Add(window),
	}
	if !res.Allowed {
		res.RetryAfter = window
	}
	return res
}

func limited(cfg RateLimitConfig) http.Handler {
	return RateLimit(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/search/multi?query=x", nil)
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_SharedStore(t *testing.T) {
	t.Parallel()
	store := &countingStore{ready: true, counts: map[string]int{}}
	h := limited(RateLimitConfig{Store: store, Enabled: true, Bucket: "search", Limit: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		if rec := hit(h, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	rec := hit(h, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if code, _ := decodeError(t, rec); code != "RATE_LIMITED" {
		t.Errorf("code = %q", code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("RateLimit-Remaining") != "0" || rec.Header().Get("RateLimit-Limit") != "2" {
		t.Errorf("headers = %v", rec.Header())
	}

	// another client has its own window
	if rec := hit(h, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d", rec.Code)
	}
	if store.counts["search:10.0.0.1"] != 3 {
		t.Errorf("store counts = %v", store.counts)
	}
}

func TestRateLimit_LocalFallback(t *testing.T) {
	t.Parallel()
	store := &countingStore{ready: false, counts: map[string]int{}}
	h := limited(RateLimitConfig{Store: store, Enabled: true, Bucket: "global", Limit: 3, Window: time.Hour})

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		statuses = append(statuses, hit(h, "192.0.2.7").Code)
	}
	if statuses[2] != http.StatusOK || statuses[3] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v", statuses)
	}
	if len(store.counts) != 0 {
		t.Error("store should not be used when not ready")
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	t.Parallel()
	h := limited(RateLimitConfig{Enabled: false, Limit: 1})
	for i := 0; i < 3; i++ {
		if rec := hit(h, "10.1.1.1"); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
}

func TestLocalLimiter_Headers(t *testing.T) {
	t.Parallel()
	l := newLocalLimiter(2, time.Minute)
	now := time.Now()

	first := l.check("a", now)
	if !first.Allowed || first.Remaining != 1 {
		t.Errorf("first = %+v", first)
	}
	l.check("a", now)
	third := l.check("a", now)
	if third.Allowed || third.RetryAfter <= 0 || third.RetryAfter > 30*time.Second {
		t.Errorf("third = %+v", third)
	}
	if got := retryAfterSeconds(third.RetryAfter); got != 30 {
		t.Errorf("retry after = %d, want 30", got)
	}
}

func TestRateLimit_Redis(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx := context.Background()
	c, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	h := limited(RateLimitConfig{Store: c, Enabled: true, Bucket: "it", Limit: 5, Window: time.Minute})
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if hit(h, "203.0.113.9").Code == http.StatusOK {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 5 {
		t.Errorf("allowed = %d, want 5", allowed)
	}

	rec := hit(h, "203.0.113.9")
	reset, _ := strconv.Atoi(rec.Header().Get("RateLimit-Reset"))
	if reset <= 0 || reset > 60 {
		t.Errorf("reset = %d", reset)
	}
}
