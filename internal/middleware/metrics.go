package middleware

import (
	"context"
	"net/http"
	"time"
)

// RequestTracker receives per-request metrics. *analytics.Tracker
// implements it.
type RequestTracker interface {
	TrackRequest(ctx context.Context, endpoint, method string, status int, elapsed time.Duration, uid string)
	TrackError(ctx context.Context, endpoint, method string, status int)
}

// Metrics records every request after the response is written, keyed by
// the chi route pattern. Statuses of 400 and above also count as errors.
func Metrics(tracker RequestTracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tracker == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			endpoint := routePattern(r)
			tracker.TrackRequest(r.Context(), endpoint, r.Method, wrapped.status, time.Since(start), requestUser(r.Context()))
			if wrapped.status >= http.StatusBadRequest {
				tracker.TrackError(r.Context(), endpoint, r.Method, wrapped.status)
			}
		})
	}
}
