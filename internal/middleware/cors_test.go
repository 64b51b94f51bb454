package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, origins []string, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	cfg := DefaultCORSConfig()
	if origins != nil {
		cfg.AllowedOrigins = origins
	}
	reached := false
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.Header().Set(RequestIDHeader, "req-1")
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, reached
}

func TestCORS_Origins(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		origins []string
		origin  string
		allowed string
	}{
		"local frontend by default": {nil, "http://localhost:3000", "http://localhost:3000"},
		"configured origin":         {[]string{"https://reelbridge.app"}, "https://reelbridge.app", "https://reelbridge.app"},
		"unknown origin":            {[]string{"https://reelbridge.app"}, "https://phish.example", ""},
		"subdomain pattern":         {[]string{"https://*.reelbridge.app"}, "https://beta.reelbridge.app", "https://beta.reelbridge.app"},
		"same-origin request":       {[]string{"https://reelbridge.app"}, "", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/api/movies/search?q=alien", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec, reached := corsRequest(t, tc.origins, req)

			assert.True(t, reached, "simple requests always reach the handler")
			assert.Equal(t, tc.allowed, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_ExposesRequestAndRateLimitHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/trending/all/day", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec, _ := corsRequest(t, nil, req)

	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{RequestIDHeader, "Retry-After", "Ratelimit-Remaining"} {
		assert.Contains(t, strings.ToLower(exposed), strings.ToLower(h))
	}
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_PreflightWithAuthorization(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/api/user/favorites", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec, reached := corsRequest(t, nil, req)

	assert.False(t, reached, "preflight is answered by the middleware")
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}
