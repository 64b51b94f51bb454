package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/cache"
	"github.com/reelbridge/reelbridge/internal/respond"
)

const maxLocalClients = 10000

// WindowCounter is a shared fixed-window counter. *cache.Cache implements it.
type WindowCounter interface {
	Ready() bool
	CheckRateLimit(ctx context.Context, bucket, client string, limit int, window time.Duration) *cache.RateLimitResult
}

// RateLimitConfig configures one rate limit bucket.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Store   WindowCounter
	Enabled bool
	// Bucket separates counters, e.g. "global" and "search".
	Bucket string
	Limit  int
	Window time.Duration
}

// RateLimit limits requests per client IP. Counters live in Redis when it is
// ready and in per-process token buckets otherwise.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	local := newLocalLimiter(cfg.Limit, cfg.Window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			var result *cache.RateLimitResult
			if cfg.Store != nil && cfg.Store.Ready() {
				result = cfg.Store.CheckRateLimit(r.Context(), cfg.Bucket, ip, cfg.Limit, cfg.Window)
			} else {
				result = local.check(ip, time.Now())
			}

			setRateLimitHeaders(w, result)
			if !result.Allowed {
				retry := retryAfterSeconds(result.RetryAfter)
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("bucket", cfg.Bucket),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int("retry_after_seconds", retry),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				respond.Error(w, r, cfg.Logger, apperr.RateLimited(
					fmt.Sprintf("Too many requests. Retry after %d seconds.", retry)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, res *cache.RateLimitResult) {
	reset := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
	if reset < 0 {
		reset = 0
	}
	w.Header().Set("RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	w.Header().Set("RateLimit-Reset", strconv.Itoa(reset))
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// clientIP returns the host part of RemoteAddr, which RealIP has already
// rewritten for proxied requests.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// localLimiter approximates the fixed window with one token bucket per IP:
// limit tokens, refilled evenly over the window.
type localLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	clients map[string]*localClient
}

type localClient struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	return &localLimiter{limit: limit, window: window, clients: make(map[string]*localClient)}
}

func (l *localLimiter) check(ip string, now time.Time) *cache.RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= maxLocalClients {
			l.sweepLocked(now)
		}
		every := l.window / time.Duration(max(l.limit, 1))
		c = &localClient{limiter: rate.NewLimiter(rate.Every(every), l.limit)}
		l.clients[ip] = c
	}
	c.seen = now

	allowed := c.limiter.AllowN(now, 1)
	tokens := c.limiter.TokensAt(now)
	remaining := int64(math.Max(0, math.Floor(tokens)))
	perToken := l.window / time.Duration(max(l.limit, 1))

	res := &cache.RateLimitResult{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration((float64(l.limit) - tokens) * float64(perToken))),
	}
	if !allowed {
		res.RetryAfter = time.Duration((1 - tokens) * float64(perToken))
	}
	return res
}

func (l *localLimiter) sweepLocked(now time.Time) {
	for ip, c := range l.clients {
		if now.Sub(c.seen) > l.window {
			delete(l.clients, ip)
		}
	}
}
