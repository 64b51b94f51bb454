package analytics

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/reelbridge/reelbridge/internal/cache"
)

// fakeMetrics is an in-memory MetricsStore.
type fakeMetrics struct {
	mu     sync.Mutex
	ready  bool
	fail   error
	ints   map[string]int64
	hashes map[string]map[string]int64
	zsets  map[string]map[string]float64
	sets   map[string]map[string]bool
	ttls   map[string]time.Duration
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		ready:  true,
		ints:   map[string]int64{},
		hashes: map[string]map[string]int64{},
		zsets:  map[string]map[string]float64{},
		sets:   map[string]map[string]bool{},
		ttls:   map[string]time.Duration{},
	}
}

func (f *fakeMetrics) Ready() bool { return f.ready }

func (f *fakeMetrics) RecordHits(_ context.Context, counters []string, fields []cache.HashIncrement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	for _, k := range counters {
		f.ints[k]++
	}
	for _, h := range fields {
		if f.hashes[h.Key] == nil {
			f.hashes[h.Key] = map[string]int64{}
		}
		f.hashes[h.Key][h.Field] += h.By
	}
	return nil
}

func (f *fakeMetrics) ZAdd(_ context.Context, key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zsets[key] == nil {
		f.zsets[key] = map[string]float64{}
	}
	f.zsets[key][member] = score
	return nil
}

func (f *fakeMetrics) SAddExpire(_ context.Context, key, member string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[key] == nil {
		f.sets[key] = map[string]bool{}
	}
	f.sets[key][member] = true
	f.ttls[key] = ttl
	return nil
}

func (f *fakeMetrics) GetInt(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return 0, f.fail
	}
	return f.ints[key], nil
}

func (f *fakeMetrics) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

func (f *fakeMetrics) ZTop(_ context.Context, key string, n int) ([]cache.ScoredMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]cache.ScoredMember, 0, len(f.zsets[key]))
	for m, s := range f.zsets[key] {
		out = append(out, cache.ScoredMember{Member: m, Score: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeMetrics) SCard(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.sets[key])), nil
}

func newTestTracker(store MetricsStore) *Tracker {
	t := NewTracker(store, nil)
	t.now = func() time.Time { return time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC) }
	return t
}

func TestTracker_TrackRequest(t *testing.T) {
	t.Parallel()
	store := newFakeMetrics()
	tr := newTestTracker(store)
	ctx := context.Background()

	tr.TrackRequest(ctx, "/api/movies/popular", "GET", 200, 40*time.Millisecond, "u1")
	tr.TrackRequest(ctx, "/api/movies/popular", "GET", 200, 20*time.Millisecond, "")
	tr.TrackError(ctx, "/api/movies/popular", "GET", 502)

	if got := store.ints[KeyRequestsTotal]; got != 2 {
		t.Errorf("total = %d, want 2", got)
	}
	if got := store.ints[KeyRequestsHourPrefix+"2024-05-01T14"]; got != 2 {
		t.Errorf("hour bucket = %d, want 2", got)
	}
	if got := store.ints[KeyRequestsDayPrefix+"2024-05-01"]; got != 2 {
		t.Errorf("day bucket = %d, want 2", got)
	}
	if got := store.hashes[KeyResponseTimes]["GET:/api/movies/popular"]; got != 60 {
		t.Errorf("response time sum = %d, want 60", got)
	}
	if got := store.hashes[KeyStatusCodes]["200"]; got != 2 {
		t.Errorf("status 200 = %d, want 2", got)
	}
	if got := store.hashes[KeyErrorsByEndpoint]["GET:/api/movies/popular"]; got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}

	active := KeyActiveUsersPrefix + "2024-05-01"
	if !store.sets[active]["u1"] || len(store.sets[active]) != 1 {
		t.Errorf("active users = %v", store.sets[active])
	}
	if store.ttls[active] != 7*24*time.Hour {
		t.Errorf("active ttl = %v", store.ttls[active])
	}

	perf, err := tr.Performance(ctx)
	if err != nil {
		t.Fatalf("Performance: %v", err)
	}
	p := perf["GET:/api/movies/popular"]
	if p.Requests != 2 || p.AverageResponseTime != "30.00" || p.Errors != 1 || p.ErrorRate != "50.00" {
		t.Errorf("performance = %+v", p)
	}
}

func TestTracker_Overview(t *testing.T) {
	t.Parallel()
	store := newFakeMetrics()
	tr := newTestTracker(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tr.TrackRequest(ctx, "/api/search", "GET", 200, time.Millisecond, "")
	}
	tr.TrackError(ctx, "/api/search", "GET", 500)
	tr.TrackCacheHit(ctx, "k")
	tr.TrackCacheMiss(ctx, "k")
	tr.TrackCacheMiss(ctx, "k")

	ov, err := tr.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.TotalRequests != 3 || ov.TotalErrors != 1 {
		t.Errorf("totals = %d/%d", ov.TotalRequests, ov.TotalErrors)
	}
	if ov.ErrorRate != "33.33" {
		t.Errorf("errorRate = %q, want 33.33", ov.ErrorRate)
	}
	if ov.Cache.HitRate != "33.33" || ov.Cache.Hits != 1 || ov.Cache.Misses != 2 {
		t.Errorf("cache = %+v", ov.Cache)
	}
	if ov.RequestsByEndpoint["GET:/api/search"] != "3" {
		t.Errorf("by endpoint = %v", ov.RequestsByEndpoint)
	}
}

func TestTracker_PopularContent(t *testing.T) {
	t.Parallel()
	store := newFakeMetrics()
	tr := newTestTracker(store)
	ctx := context.Background()

	tr.TrackMovieView(ctx, 550, "Fight Club", "")
	tr.TrackTVView(ctx, 1399, "Game of Thrones", "")
	tr.TrackTVView(ctx, 66732, "Stranger Things", "")
	store.zsets[KeyPopularMovies]["not json"] = 1

	got, err := tr.PopularContent(ctx, 10)
	if err != nil {
		t.Fatalf("PopularContent: %v", err)
	}
	if len(got.Movies) != 2 {
		t.Fatalf("movies = %v", got.Movies)
	}
	if got.Movies[0]["title"] != "Fight Club" {
		t.Errorf("first movie = %v", got.Movies[0])
	}
	if got.Movies[1]["data"] != "not json" || got.Movies[1]["views"] != float64(1) {
		t.Errorf("raw member = %v", got.Movies[1])
	}
	// shows are ranked by id
	if got.TVShows[0]["title"] != "Stranger Things" || got.TVShows[0]["views"] != float64(66732) {
		t.Errorf("first show = %v", got.TVShows[0])
	}
}

func TestTracker_PopularSearchesAndEngagement(t *testing.T) {
	t.Parallel()
	store := newFakeMetrics()
	tr := newTestTracker(store)
	ctx := context.Background()

	tr.TrackSearch(ctx, "dune", "u1")
	tr.TrackSearch(ctx, "", "u2")
	tr.TrackActiveUser(ctx, "u3")

	searches, err := tr.PopularSearches(ctx, 0)
	if err != nil {
		t.Fatalf("PopularSearches: %v", err)
	}
	if len(searches) != 1 || searches[0].Query != "dune" {
		t.Errorf("searches = %v", searches)
	}

	eng, err := tr.UserEngagement(ctx)
	if err != nil {
		t.Fatalf("UserEngagement: %v", err)
	}
	if eng.ActiveUsersToday != 2 {
		t.Errorf("active = %d, want 2", eng.ActiveUsersToday)
	}
}

func TestTracker_Disabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, tr := range map[string]*Tracker{
		"nil store": newTestTracker(nil),
		"not ready": newTestTracker(&fakeMetrics{}),
	} {
		tr.TrackRequest(ctx, "/x", "GET", 200, time.Millisecond, "u")
		tr.TrackSearch(ctx, "q", "u")

		ov, err := tr.Overview(ctx)
		if err != nil {
			t.Fatalf("%s: Overview: %v", name, err)
		}
		if ov.TotalRequests != 0 || ov.ErrorRate != "0.00" || ov.Cache.HitRate != "0.00" {
			t.Errorf("%s: overview = %+v", name, ov)
		}
		content, err := tr.PopularContent(ctx, 5)
		if err != nil || content.Movies == nil || content.TVShows == nil {
			t.Errorf("%s: content = %+v, %v", name, content, err)
		}
	}
}

func TestTracker_ReadErrors(t *testing.T) {
	t.Parallel()
	store := newFakeMetrics()
	store.fail = errors.New("connection reset")
	tr := newTestTracker(store)

	// writes swallow the failure
	tr.TrackRequest(context.Background(), "/x", "GET", 200, time.Millisecond, "")

	if _, err := tr.Overview(context.Background()); err == nil {
		t.Error("Overview should fail")
	}
	if _, err := tr.Performance(context.Background()); err == nil {
		t.Error("Performance should fail")
	}
}

// gatedMetrics holds every RecordHits call until gate is closed.
type gatedMetrics struct {
	*fakeMetrics
	gate chan struct{}
}

func (g *gatedMetrics) RecordHits(ctx context.Context, counters []string, fields []cache.HashIncrement) error {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.fakeMetrics.RecordHits(ctx, counters, fields)
}

func (f *fakeMetrics) intValue(key string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ints[key]
}

func TestTracker_StartedWritesStayOffTheCaller(t *testing.T) {
	t.Parallel()
	store := &gatedMetrics{fakeMetrics: newFakeMetrics(), gate: make(chan struct{})}
	tr := newTestTracker(store)
	tr.timeout = 5 * time.Second
	tr.Start()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		tr.TrackRequest(ctx, "/api/trending/{type}/{window}", "GET", 200, time.Millisecond, "")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("tracking blocked the caller for %v", elapsed)
	}
	if got := store.intValue(KeyRequestsTotal); got != 0 {
		t.Fatalf("writes ran before the store answered: total = %d", got)
	}

	close(store.gate)
	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := tr.Close(closeCtx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := store.intValue(KeyRequestsTotal); got != 3 {
		t.Errorf("total after Close = %d, want 3", got)
	}

	tr.TrackRequest(ctx, "/api/trending/{type}/{window}", "GET", 200, time.Millisecond, "")
	if got := store.intValue(KeyRequestsTotal); got != 3 {
		t.Errorf("calls after Close must be dropped, total = %d", got)
	}
}

func TestTracker_FullQueueDrops(t *testing.T) {
	t.Parallel()
	store := &gatedMetrics{fakeMetrics: newFakeMetrics(), gate: make(chan struct{})}
	tr := newTestTracker(store)
	tr.timeout = 5 * time.Second
	tr.Start()
	ctx := context.Background()

	calls := defaultTrackingQueue + defaultTrackingWorkers + 50
	for i := 0; i < calls; i++ {
		tr.TrackCacheHit(ctx, "k")
	}
	close(store.gate)
	if err := tr.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := store.intValue(KeyCacheHits)
	if got < int64(defaultTrackingQueue) || got >= int64(calls) {
		t.Errorf("hits = %d, want between %d and %d", got, defaultTrackingQueue, calls-1)
	}
}

func TestTracker_CloseWithoutStart(t *testing.T) {
	t.Parallel()
	store := newFakeMetrics()
	tr := newTestTracker(store)

	tr.TrackCacheMiss(context.Background(), "k")
	if err := tr.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := store.intValue(KeyCacheMisses); got != 1 {
		t.Errorf("inline call not recorded, misses = %d", got)
	}

	var nilTracker *Tracker
	nilTracker.Start()
	if err := nilTracker.Close(context.Background()); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
