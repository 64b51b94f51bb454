// Package analytics records usage metrics and publishes analytics events.
//
// Tracking is best effort: every call is skipped when the metrics store is
// absent or not ready, and failures never reach the request path. Once
// started, a Tracker writes from a small worker pool and drops calls when
// its queue is full.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/cache"
)

// Redis keys.
const (
	KeyRequestsTotal       = "metrics:requests:total"
	KeyErrorsTotal         = "metrics:errors:total"
	KeyRequestsByEndpoint  = "metrics:requests:by_endpoint"
	KeyErrorsByEndpoint    = "metrics:errors:by_endpoint"
	KeyResponseTimes       = "metrics:response_times:by_endpoint"
	KeyStatusCodes         = "metrics:status_codes"
	KeyActiveUsersPrefix   = "metrics:active_users:"
	KeyPopularSearches     = "metrics:popular_searches"
	KeyPopularMovies       = "metrics:popular_movies"
	KeyPopularTV           = "metrics:popular_tv"
	KeyCacheHits           = "metrics:cache:hits"
	KeyCacheMisses         = "metrics:cache:misses"
	KeyRequestsHourPrefix  = "metrics:requests:hour:"
	KeyRequestsDayPrefix   = "metrics:requests:day:"
	activeUsersTTL         = 7 * 24 * time.Hour
	defaultTrackingTimeout = 250 * time.Millisecond
	defaultTrackingWorkers = 4
	defaultTrackingQueue   = 1024
	DefaultTopLimit        = 10
)

// MetricsStore is the counter backend. *cache.Cache implements it.
type MetricsStore interface {
	Ready() bool
	RecordHits(ctx context.Context, counters []string, fields []cache.HashIncrement) error
	ZAdd(ctx context.Context, key string, score float64, member string) error
	SAddExpire(ctx context.Context, key, member string, ttl time.Duration) error
	GetInt(ctx context.Context, key string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	ZTop(ctx context.Context, key string, n int) ([]cache.ScoredMember, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// Tracker aggregates request and content metrics.
type Tracker struct {
	store   MetricsStore
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration

	mu      sync.RWMutex
	jobs    chan trackJob
	workers *pool.Pool
	closed  bool
}

type trackJob struct {
	ctx context.Context
	op  string
	now time.Time
	fn  func(ctx context.Context, now time.Time) error
}

// NewTracker creates a Tracker. store may be nil, which disables tracking.
// Calls run inline until Start is called.
func NewTracker(store MetricsStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:   store,
		logger:  logger.With("component", "analytics.tracker"),
		now:     time.Now,
		timeout: defaultTrackingTimeout,
	}
}

// Enabled reports whether tracking calls reach the store.
func (t *Tracker) Enabled() bool {
	return t != nil && t.store != nil && t.store.Ready()
}

// Start moves tracking writes onto background workers.
func (t *Tracker) Start() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.jobs != nil || t.closed {
		return
	}

	jobs := make(chan trackJob, defaultTrackingQueue)
	t.jobs = jobs
	t.workers = pool.New().WithMaxGoroutines(defaultTrackingWorkers)
	for range defaultTrackingWorkers {
		t.workers.Go(func() {
			for job := range jobs {
				t.exec(job)
			}
		})
	}
}

// Close stops accepting calls and waits for queued writes to finish.
func (t *Tracker) Close(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	if t.closed || t.jobs == nil {
		t.closed = true
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.jobs)
	workers := t.workers
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) run(ctx context.Context, op string, fn func(ctx context.Context, now time.Time) error) {
	if !t.Enabled() {
		return
	}
	job := trackJob{ctx: context.WithoutCancel(ctx), op: op, now: t.now(), fn: fn}

	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case t.closed:
		return
	case t.jobs == nil:
		t.exec(job)
		return
	}
	select {
	case t.jobs <- job:
	default:
		t.logger.Debug("metrics tracking dropped, queue full", "op", op)
	}
}

func (t *Tracker) exec(job trackJob) {
	ctx, cancel := context.WithTimeout(job.ctx, t.timeout)
	defer cancel()
	if err := job.fn(ctx, job.now); err != nil {
		t.logger.Debug("metrics tracking failed", "op", job.op, "error", err)
	}
}

func endpointKey(method, endpoint string) string {
	return method + ":" + endpoint
}

// TrackRequest counts one handled request.
func (t *Tracker) TrackRequest(ctx context.Context, endpoint, method string, status int, elapsed time.Duration, uid string) {
	t.run(ctx, "request", func(ctx context.Context, now time.Time) error {
		now = now.UTC()
		key := endpointKey(method, endpoint)
		return t.store.RecordHits(ctx,
			[]string{
				KeyRequestsTotal,
				KeyRequestsHourPrefix + now.Format("2006-01-02T15"),
				KeyRequestsDayPrefix + now.Format("2006-01-02"),
			},
			[]cache.HashIncrement{
				{Key: KeyRequestsByEndpoint, Field: key, By: 1},
				{Key: KeyStatusCodes, Field: strconv.Itoa(status), By: 1},
				{Key: KeyResponseTimes, Field: key, By: elapsed.Milliseconds()},
			},
		)
	})
	if uid != "" {
		t.TrackActiveUser(ctx, uid)
	}
}

// TrackError counts one failed request.
func (t *Tracker) TrackError(ctx context.Context, endpoint, method string, status int) {
	t.run(ctx, "error", func(ctx context.Context, _ time.Time) error {
		return t.store.RecordHits(ctx,
			[]string{KeyErrorsTotal},
			[]cache.HashIncrement{{Key: KeyErrorsByEndpoint, Field: endpointKey(method, endpoint), By: 1}},
		)
	})
	t.logger.Debug("api error tracked", "endpoint", endpoint, "method", method, "status", status)
}

// TrackActiveUser adds uid to today's active set.
func (t *Tracker) TrackActiveUser(ctx context.Context, uid string) {
	if uid == "" {
		return
	}
	t.run(ctx, "active_user", func(ctx context.Context, now time.Time) error {
		key := KeyActiveUsersPrefix + now.UTC().Format("2006-01-02")
		return t.store.SAddExpire(ctx, key, uid, activeUsersTTL)
	})
}

// TrackSearch records a query, scored by recency.
func (t *Tracker) TrackSearch(ctx context.Context, query, uid string) {
	if query == "" {
		return
	}
	t.run(ctx, "search", func(ctx context.Context, now time.Time) error {
		return t.store.ZAdd(ctx, KeyPopularSearches, float64(now.UnixMilli()), query)
	})
	t.TrackActiveUser(ctx, uid)
}

type contentMember struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// TrackMovieView records a movie view, scored by recency.
func (t *Tracker) TrackMovieView(ctx context.Context, id int, title, uid string) {
	t.run(ctx, "movie_view", func(ctx context.Context, now time.Time) error {
		member, err := json.Marshal(contentMember{ID: id, Title: title})
		if err != nil {
			return err
		}
		return t.store.ZAdd(ctx, KeyPopularMovies, float64(now.UnixMilli()), string(member))
	})
	t.TrackActiveUser(ctx, uid)
}

// TrackTVView records a show view. Shows are scored by id.
func (t *Tracker) TrackTVView(ctx context.Context, id int, title, uid string) {
	t.run(ctx, "tv_view", func(ctx context.Context, _ time.Time) error {
		member, err := json.Marshal(contentMember{ID: id, Title: title})
		if err != nil {
			return err
		}
		return t.store.ZAdd(ctx, KeyPopularTV, float64(id), string(member))
	})
	t.TrackActiveUser(ctx, uid)
}

// TrackCacheHit counts a response cache hit.
func (t *Tracker) TrackCacheHit(ctx context.Context, _ string) {
	t.run(ctx, "cache_hit", func(ctx context.Context, _ time.Time) error {
		return t.store.RecordHits(ctx, []string{KeyCacheHits}, nil)
	})
}

// TrackCacheMiss counts a response cache miss.
func (t *Tracker) TrackCacheMiss(ctx context.Context, _ string) {
	t.run(ctx, "cache_miss", func(ctx context.Context, _ time.Time) error {
		return t.store.RecordHits(ctx, []string{KeyCacheMisses}, nil)
	})
}

// CacheOverview summarizes response cache effectiveness.
type CacheOverview struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	HitRate string `json:"hitRate"`
}

// Overview is the aggregate request picture.
type Overview struct {
	TotalRequests      int64             `json:"totalRequests"`
	TotalErrors        int64             `json:"totalErrors"`
	ErrorRate          string            `json:"errorRate"`
	RequestsByEndpoint map[string]string `json:"requestsByEndpoint"`
	StatusCodes        map[string]string `json:"statusCodes"`
	Cache              CacheOverview     `json:"cache"`
}

// PopularSearch is one ranked query.
type PopularSearch struct {
	Query string  `json:"query"`
	Score float64 `json:"score"`
}

// PopularContent holds ranked movies and shows.
type PopularContent struct {
	Movies  []map[string]any `json:"movies"`
	TVShows []map[string]any `json:"tvShows"`
}

// Engagement summarizes user activity.
type Engagement struct {
	ActiveUsersToday int64 `json:"activeUsersToday"`
}

// EndpointPerformance is the per-endpoint latency and error picture.
type EndpointPerformance struct {
	Requests            int64  `json:"requests"`
	AverageResponseTime string `json:"averageResponseTime"`
	Errors              int64  `json:"errors"`
	ErrorRate           string `json:"errorRate"`
}

func percent(part, whole int64) string {
	if whole <= 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(part)/float64(whole)*100)
}

// Overview reads the aggregate counters.
func (t *Tracker) Overview(ctx context.Context) (Overview, error) {
	out := Overview{
		ErrorRate:          "0.00",
		RequestsByEndpoint: map[string]string{},
		StatusCodes:        map[string]string{},
		Cache:              CacheOverview{HitRate: "0.00"},
	}
	if !t.Enabled() {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { out.TotalRequests, err = t.store.GetInt(gctx, KeyRequestsTotal); return })
	g.Go(func() (err error) { out.TotalErrors, err = t.store.GetInt(gctx, KeyErrorsTotal); return })
	g.Go(func() (err error) { out.Cache.Hits, err = t.store.GetInt(gctx, KeyCacheHits); return })
	g.Go(func() (err error) { out.Cache.Misses, err = t.store.GetInt(gctx, KeyCacheMisses); return })
	g.Go(func() (err error) {
		out.RequestsByEndpoint, err = t.store.HGetAll(gctx, KeyRequestsByEndpoint)
		return
	})
	g.Go(func() (err error) { out.StatusCodes, err = t.store.HGetAll(gctx, KeyStatusCodes); return })
	if err := g.Wait(); err != nil {
		return Overview{}, apperr.Analytics("Failed to retrieve analytics overview", err)
	}

	out.ErrorRate = percent(out.TotalErrors, out.TotalRequests)
	out.Cache.HitRate = percent(out.Cache.Hits, out.Cache.Hits+out.Cache.Misses)
	if out.RequestsByEndpoint == nil {
		out.RequestsByEndpoint = map[string]string{}
	}
	if out.StatusCodes == nil {
		out.StatusCodes = map[string]string{}
	}
	return out, nil
}

// PopularSearches returns the most recent distinct queries.
func (t *Tracker) PopularSearches(ctx context.Context, limit int) ([]PopularSearch, error) {
	out := []PopularSearch{}
	if !t.Enabled() {
		return out, nil
	}
	members, err := t.store.ZTop(ctx, KeyPopularSearches, limitOrDefault(limit))
	if err != nil {
		return nil, apperr.Analytics("Failed to retrieve popular searches", err)
	}
	for _, m := range members {
		out = append(out, PopularSearch{Query: m.Member, Score: m.Score})
	}
	return out, nil
}

// PopularContent returns the top movies and shows.
func (t *Tracker) PopularContent(ctx context.Context, limit int) (PopularContent, error) {
	out := PopularContent{Movies: []map[string]any{}, TVShows: []map[string]any{}}
	if !t.Enabled() {
		return out, nil
	}

	limit = limitOrDefault(limit)
	var movies, shows []cache.ScoredMember
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { movies, err = t.store.ZTop(gctx, KeyPopularMovies, limit); return })
	g.Go(func() (err error) { shows, err = t.store.ZTop(gctx, KeyPopularTV, limit); return })
	if err := g.Wait(); err != nil {
		return PopularContent{}, apperr.Analytics("Failed to retrieve popular content", err)
	}

	out.Movies = decodeMembers(movies)
	out.TVShows = decodeMembers(shows)
	return out, nil
}

// decodeMembers parses each member on its own, keeping unparsable ones raw.
func decodeMembers(members []cache.ScoredMember) []map[string]any {
	out := make([]map[string]any, 0, len(members))
	for _, m := range members {
		var item map[string]any
		if err := json.Unmarshal([]byte(m.Member), &item); err != nil || item == nil {
			out = append(out, map[string]any{"data": m.Member, "views": m.Score})
			continue
		}
		item["views"] = m.Score
		out = append(out, item)
	}
	return out
}

// UserEngagement returns today's active user count.
func (t *Tracker) UserEngagement(ctx context.Context) (Engagement, error) {
	if !t.Enabled() {
		return Engagement{}, nil
	}
	n, err := t.store.SCard(ctx, KeyActiveUsersPrefix+t.now().UTC().Format("2006-01-02"))
	if err != nil {
		return Engagement{}, apperr.Analytics("Failed to retrieve user engagement", err)
	}
	return Engagement{ActiveUsersToday: n}, nil
}

// Performance returns per-endpoint metrics keyed by "METHOD:route".
func (t *Tracker) Performance(ctx context.Context) (map[string]EndpointPerformance, error) {
	out := map[string]EndpointPerformance{}
	if !t.Enabled() {
		return out, nil
	}

	var requests, times, errs map[string]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { requests, err = t.store.HGetAll(gctx, KeyRequestsByEndpoint); return })
	g.Go(func() (err error) { times, err = t.store.HGetAll(gctx, KeyResponseTimes); return })
	g.Go(func() (err error) { errs, err = t.store.HGetAll(gctx, KeyErrorsByEndpoint); return })
	if err := g.Wait(); err != nil {
		return nil, apperr.Analytics("Failed to retrieve performance metrics", err)
	}

	for endpoint, raw := range requests {
		n := parseCount(raw)
		total := parseCount(times[endpoint])
		e := parseCount(errs[endpoint])
		avg := "0.00"
		if n > 0 {
			avg = fmt.Sprintf("%.2f", float64(total)/float64(n))
		}
		out[endpoint] = EndpointPerformance{
			Requests:            n,
			AverageResponseTime: avg,
			Errors:              e,
			ErrorRate:           percent(e, n),
		}
	}
	return out, nil
}

func parseCount(raw string) int64 {
	n, _ := strconv.ParseInt(raw, 10, 64)
	return n
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultTopLimit
	}
	return limit
}
