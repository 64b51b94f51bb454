// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Document store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Analytics event sinks.
const (
	SinkNone  = "none"
	SinkRedis = "redis"
	SinkNATS  = "nats"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	AppPort   int    `env:"APP_PORT" envDefault:"5001"`
	APIPrefix string `env:"API_PREFIX" envDefault:"/api"`
	Version   string `env:"APP_VERSION" envDefault:"1.0.0"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Upstream metadata API (TMDB)
	TMDBAPIKey       string        `env:"TMDB_API_KEY,required"`
	TMDBBaseURL      string        `env:"TMDB_BASE_URL" envDefault:"https://api.themoviedb.org/3"`
	TMDBImageBaseURL string        `env:"TMDB_IMAGE_BASE_URL" envDefault:"https://image.tmdb.org/t/p"`
	TMDBTimeout      time.Duration `env:"TMDB_TIMEOUT" envDefault:"30s"`

	// Cache (Redis). Optional: an in-process cache is used when unset or unreachable.
	RedisURL              string `env:"REDIS_URL" envDefault:""`
	MemoryCacheMaxEntries int    `env:"MEMORY_CACHE_MAX_ENTRIES" envDefault:"5000"`

	// Document store
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"memory"`
	DatabaseURL   string `env:"DATABASE_URL" envDefault:""`
	MongoURL      string `env:"MONGO_URL" envDefault:""`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"reelbridge"`

	// Identity provider
	AuthProjectID      string        `env:"AUTH_PROJECT_ID" envDefault:""`
	AuthCertsURL       string        `env:"AUTH_CERTS_URL" envDefault:"https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"`
	AuthJWTSecret      string        `env:"AUTH_JWT_SECRET" envDefault:""`
	AuthTokenCacheSize int           `env:"AUTH_TOKEN_CACHE_SIZE" envDefault:"1000"`
	AuthTokenCacheTTL  time.Duration `env:"AUTH_TOKEN_CACHE_TTL" envDefault:"5m"`

	// Rate limiting (fixed window per client)
	RateLimitEnabled   bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitMax       int           `env:"RATE_LIMIT_MAX" envDefault:"120"`
	SearchRateLimitMax int           `env:"SEARCH_RATE_LIMIT_MAX" envDefault:"40"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Analytics events
	EventsSink          string        `env:"EVENTS_SINK" envDefault:"none"`
	NATSURL             string        `env:"NATS_URL" envDefault:""`
	EventsFlushInterval time.Duration `env:"EVENTS_FLUSH_INTERVAL" envDefault:"30s"`
	EventsBatchSize     int           `env:"EVENTS_BATCH_SIZE" envDefault:"100"`

	// External ML recommender
	MLRecommenderURL     string        `env:"ML_RECOMMENDER_URL" envDefault:"https://movie-reco-api.onrender.com/recommend"`
	MLRecommenderTimeout time.Duration `env:"ML_RECOMMENDER_TIMEOUT" envDefault:"120s"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field requirements that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres"))
		}
	case StoreMongo:
		if c.MongoURL == "" {
			errs = append(errs, errors.New("MONGO_URL is required when STORE_BACKEND=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.EventsSink {
	case SinkNone, SinkRedis:
	case SinkNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required when EVENTS_SINK=nats"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_SINK %q", c.EventsSink))
	}

	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.APIPrefix = "/" + strings.Trim(cfg.APIPrefix, "/")
	return cfg, nil
}
