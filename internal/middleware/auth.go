package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/auth"
	"github.com/reelbridge/reelbridge/internal/respond"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier auth.Verifier
}

// Auth requires a valid bearer token and injects the caller's identity.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respond.Error(w, r, logger, apperr.Unauthorized("Missing Authorization bearer token"))
				return
			}

			id, err := cfg.Verifier.Verify(r.Context(), token)
			if err != nil {
				attrs := []any{
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				}
				logger.Warn("token verification failed", append(attrs, auth.Diagnostics(token)...)...)

				if auth.IsConfigError(err) {
					respond.Error(w, r, logger, apperr.AuthConfig("Identity provider misconfigured", err))
					return
				}
				respond.Error(w, r, logger, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			recordUser(r.Context(), id.UID)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth injects the identity when a valid token is present and
// otherwise continues anonymously.
func OptionalAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			id, err := cfg.Verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("optional auth failed, continuing without user", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}
			recordUser(r.Context(), id.UID)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
