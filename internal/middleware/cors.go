package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins lists exact origins or "*.example.com" style patterns.
	// "*" allows any origin.
	AllowedOrigins []string
	MaxAge         int
}

// DefaultCORSConfig returns the local frontend defaults.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		MaxAge:         86400,
	}
}

// CORS handles cross-origin requests and preflights. Credentials are
// allowed so browsers may send the Authorization header.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept", "Accept-Language", "Authorization", "Content-Type", RequestIDHeader,
		},
		ExposedHeaders: []string{
			RequestIDHeader, "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           cfg.MaxAge,
	})
}
