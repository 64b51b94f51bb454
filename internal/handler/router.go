package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/reelbridge/reelbridge/internal/auth"
	"github.com/reelbridge/reelbridge/internal/middleware"
)

// RouterConfig wires the handlers and the middleware stack.
type RouterConfig struct {
	Logger        *slog.Logger
	APIPrefix     string
	IsDevelopment bool
	CORS          middleware.CORSConfig
	MaxBodySize   int64

	RateLimitStore   middleware.WindowCounter
	RateLimitEnabled bool
	RateLimitWindow  time.Duration
	GlobalRateLimit  int
	SearchRateLimit  int

	Verifier auth.Verifier
	Requests middleware.RequestTracker

	Health          *HealthHandler
	Metrics         *MetricsHandler
	Movies          *MoviesHandler
	TV              *TVHandler
	Search          *SearchHandler
	Trending        *TrendingHandler
	Recommendations *RecommendationsHandler
	User            *UserHandler
	Analytics       *AnalyticsHandler
}

// NewRouter builds the HTTP surface. Handlers left nil are not mounted.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := New(cfg.Logger)
	authCfg := middleware.AuthConfig{Logger: cfg.Logger, Verifier: cfg.Verifier}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	r.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Logger:  cfg.Logger,
		Store:   cfg.RateLimitStore,
		Enabled: cfg.RateLimitEnabled,
		Bucket:  "global",
		Limit:   cfg.GlobalRateLimit,
		Window:  cfg.RateLimitWindow,
	}))
	r.Use(middleware.Metrics(cfg.Requests))
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	r.Route(prefix(cfg.APIPrefix), func(r chi.Router) {
		if cfg.Health != nil {
			r.Get("/health", cfg.Health.Health)
			r.Get("/health/deep", cfg.Health.Deep)
			r.Get("/status", cfg.Health.Status)
		}
		if cfg.Movies != nil {
			r.Route("/movies", cfg.Movies.Routes)
		}
		if cfg.TV != nil {
			r.Route("/tv", cfg.TV.Routes)
		}
		if cfg.Search != nil {
			r.Route("/search", func(r chi.Router) {
				r.Use(middleware.RateLimit(middleware.RateLimitConfig{
					Logger:  cfg.Logger,
					Store:   cfg.RateLimitStore,
					Enabled: cfg.RateLimitEnabled,
					Bucket:  "search",
					Limit:   cfg.SearchRateLimit,
					Window:  cfg.RateLimitWindow,
				}))
				cfg.Search.Routes(r)
			})
		}
		if cfg.Trending != nil {
			r.Route("/trending", cfg.Trending.Routes)
		}
		if cfg.Recommendations != nil {
			r.Route("/recommendations", cfg.Recommendations.Routes)
		}
		if cfg.User != nil {
			r.Route("/user", func(r chi.Router) {
				r.Use(middleware.Auth(authCfg))
				r.Use(middleware.NoStore)
				cfg.User.Routes(r)
			})
		}
		if cfg.Analytics != nil {
			r.Route("/analytics", func(r chi.Router) {
				r.Use(middleware.OptionalAuth(authCfg))
				cfg.Analytics.Routes(r)
			})
		}
	})
	return r
}

func prefix(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}
