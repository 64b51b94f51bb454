// Package main is the entrypoint for the ReelBridge API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/reelbridge/reelbridge/internal/analytics"
	"github.com/reelbridge/reelbridge/internal/auth"
	"github.com/reelbridge/reelbridge/internal/cache"
	"github.com/reelbridge/reelbridge/internal/compat"
	"github.com/reelbridge/reelbridge/internal/config"
	"github.com/reelbridge/reelbridge/internal/handler"
	"github.com/reelbridge/reelbridge/internal/metrics"
	"github.com/reelbridge/reelbridge/internal/middleware"
	"github.com/reelbridge/reelbridge/internal/server"
	"github.com/reelbridge/reelbridge/internal/service"
	"github.com/reelbridge/reelbridge/internal/store"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

const redisWatchInterval = 10 * time.Second

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize logger
	logger := initLogger(cfg)
	recorder := metrics.NewInMemory()

	// Initialize document store
	docStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open document store",
			slog.String("backend", cfg.StoreBackend),
			slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.MongoURL)),
		)
		return errors.New("document store unavailable")
	}
	logger.Info("document store ready", slog.String("backend", cfg.StoreBackend))

	// Initialize cache. Redis is optional; the process keeps serving from
	// memory when it is unset or unreachable.
	var redisCache *cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using memory cache only",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			redisCache = nil
		} else {
			logger.Info("connected to Redis")
		}
	}
	responseCache := cache.NewFallbackCache(redisCache, cache.NewMemoryCache(cfg.MemoryCacheMaxEntries))

	watchCtx, stopWatch := context.WithCancel(ctx)
	go redisCache.Watch(watchCtx, redisWatchInterval, logger)

	// Analytics
	tracker := analytics.NewTracker(redisCache, logger)
	tracker.Start()
	sink, closeSink := eventSink(cfg, redisCache, logger)
	events := analytics.NewEventQueue(analytics.QueueOptions{
		Sink:          sink,
		Environment:   cfg.AppEnv,
		FlushInterval: cfg.EventsFlushInterval,
		BatchSize:     cfg.EventsBatchSize,
		Logger:        logger,
		Recorder:      recorder,
	})
	events.Start(ctx)

	// Upstream
	tmdbClient := tmdb.NewClient(tmdb.Options{
		BaseURL:  cfg.TMDBBaseURL,
		APIKey:   cfg.TMDBAPIKey,
		Timeout:  cfg.TMDBTimeout,
		Logger:   logger,
		Recorder: recorder,
	})
	upstream := tmdb.NewCachedClient(tmdbClient, responseCache, recorder, tracker)

	// Identity
	verifier := auth.NewCachingVerifier(
		auth.NewJWTVerifier(auth.VerifierOptions{
			ProjectID: cfg.AuthProjectID,
			CertsURL:  cfg.AuthCertsURL,
			Secret:    cfg.AuthJWTSecret,
			Logger:    logger,
		}),
		auth.NewTokenCache(cfg.AuthTokenCacheSize, cfg.AuthTokenCacheTTL, recorder),
	)

	// Initialize services
	legacy := compat.NewService(upstream, compat.NewTranslator(cfg.TMDBImageBaseURL), logger)
	media := service.NewMediaService(upstream, logger)
	ml := service.NewMLClient(cfg.MLRecommenderURL, cfg.MLRecommenderTimeout, logger)
	userOpts := service.Options{Store: docStore, Events: events, Logger: logger}

	// Setup router
	corsCfg := middleware.DefaultCORSConfig()
	if origins := cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg.AllowedOrigins = origins
	}
	router := handler.NewRouter(handler.RouterConfig{
		Logger:           logger,
		APIPrefix:        cfg.APIPrefix,
		IsDevelopment:    cfg.IsDevelopment(),
		CORS:             corsCfg,
		MaxBodySize:      cfg.MaxRequestBodySize,
		RateLimitStore:   redisCache,
		RateLimitEnabled: cfg.RateLimitEnabled,
		RateLimitWindow:  cfg.RateLimitWindow,
		GlobalRateLimit:  cfg.RateLimitMax,
		SearchRateLimit:  cfg.SearchRateLimitMax,
		Verifier:         verifier,
		Requests:         tracker,
		Health: handler.NewHealthHandler(handler.HealthOptions{
			Cache:       redisCache,
			Store:       docStore,
			Upstream:    tmdbClient,
			Version:     cfg.Version,
			Environment: cfg.AppEnv,
		}),
		Metrics:         handler.NewMetricsHandler(recorder),
		Movies:          handler.NewMoviesHandler(legacy, media, tracker, logger),
		TV:              handler.NewTVHandler(media, logger),
		Search:          handler.NewSearchHandler(media, legacy, tracker, logger),
		Trending:        handler.NewTrendingHandler(media, logger),
		Recommendations: handler.NewRecommendationsHandler(media, legacy, ml, logger),
		User: handler.NewUserHandler(
			service.NewProfileService(userOpts),
			service.NewFavoritesService(userOpts),
			service.NewWatchlistService(userOpts),
			logger,
		),
		Analytics: handler.NewAnalyticsHandler(tracker, logger),
	})

	// Create and run server
	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered in dependency order; they stop in reverse.
	srv.OnShutdown("store", func(context.Context) error { return docStore.Close() })
	srv.OnShutdown("redis", func(context.Context) error {
		stopWatch()
		return redisCache.Close()
	})
	srv.OnShutdown("tracker", tracker.Close)
	srv.OnShutdown("event sink", closeSink)
	srv.OnShutdown("events", events.Close)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"api_prefix", cfg.APIPrefix,
		"env", cfg.AppEnv,
		"version", cfg.Version,
		"cache", responseCache.Backend(),
	)

	return srv.Run(ctx)
}

// openStore connects the configured document store backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	case config.StoreMongo:
		return store.NewMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	case config.StoreMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// eventSink picks where flushed analytics events go. A sink that cannot be
// reached at startup degrades to dropping events.
func eventSink(cfg *config.Config, redisCache *cache.Cache, logger *slog.Logger) (analytics.Sink, server.ShutdownFunc) {
	noClose := func(context.Context) error { return nil }

	switch cfg.EventsSink {
	case config.SinkRedis:
		if client := redisCache.Client(); client != nil {
			return analytics.NewRedisStreamSink(client, logger), noClose
		}
		logger.Warn("redis event sink requested without redis, events will be dropped")
	case config.SinkNATS:
		conn, err := nats.Connect(cfg.NATSURL,
			nats.Name("reelbridge"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err == nil {
			return analytics.NewNATSSink(conn), func(context.Context) error { return conn.Drain() }
		}
		logger.Warn("nats unavailable, events will be dropped",
			slog.String("error", sanitizeError(err, cfg.NATSURL)),
			slog.String("nats_url", redactURL(cfg.NATSURL)),
		)
	}
	return analytics.NoopSink{}, noClose
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "reelbridge")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
