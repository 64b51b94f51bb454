// Package apperr defines the error taxonomy surfaced to API clients.
//
// Errors are raised where they are detected and travel unmodified to the
// HTTP layer, which is the only place that turns them into a response.
package apperr

import (
	"errors"
	"net/http"
)

// Error codes.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUpstream            = "TMDB_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeAuthConfig          = "AUTH_CONFIG_ERROR"
	CodeAnalytics           = "ANALYTICS_ERROR"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is an application error with an HTTP status and a client-facing code.
type Error struct {
	Code    string
	Status  int
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed or missing input.
func Validation(message string, details ...string) *Error {
	e := &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: message}
	if len(details) > 0 {
		e.Details = details
	}
	return e
}

// Unauthorized reports a missing, invalid or expired credential.
func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: message}
}

// NotFound reports a lookup or resolution miss.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: message}
}

// Conflict reports a duplicate creation.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Status: http.StatusConflict, Message: message}
}

// RateLimited reports an exhausted request window.
func RateLimited(message string) *Error {
	return &Error{Code: CodeRateLimited, Status: http.StatusTooManyRequests, Message: message}
}

// PayloadTooLarge reports a request body above the configured limit.
func PayloadTooLarge(message string) *Error {
	return &Error{Code: CodePayloadTooLarge, Status: http.StatusRequestEntityTooLarge, Message: message}
}

// Upstream reports a failed metadata API call. The upstream status is kept
// when it is an HTTP error status, otherwise 502 is used.
func Upstream(status int, message string, err error) *Error {
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	if message == "" {
		message = "TMDB request failed"
	}
	return &Error{Code: CodeUpstream, Status: status, Message: message, Err: err}
}

// Unavailable reports an optional external dependency that could not be reached.
func Unavailable(message string, err error) *Error {
	return &Error{Code: CodeUpstreamUnavailable, Status: http.StatusServiceUnavailable, Message: message, Err: err}
}

// AuthConfig reports a misconfigured identity provider.
func AuthConfig(message string, err error) *Error {
	return &Error{Code: CodeAuthConfig, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// Analytics reports a failed analytics read.
func Analytics(message string, err error) *Error {
	return &Error{Code: CodeAnalytics, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "Internal server error", Err: err}
}

// From converts any error into an *Error. Unknown errors become INTERNAL_ERROR.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
