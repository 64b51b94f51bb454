// Package respond writes the uniform JSON envelope used by every endpoint.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/reelbridge/reelbridge/internal/apperr"
)

// Meta carries response provenance.
type Meta struct {
	Source string `json:"source,omitempty"`
}

// Envelope is the success body.
type Envelope struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Meta    *Meta `json:"meta,omitempty"`
}

// ErrorBody is the error payload.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope is the failure body.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// WithSource writes a 200 success envelope annotated with the data source.
func WithSource(w http.ResponseWriter, data any, source string) {
	env := Envelope{Success: true, Data: data}
	if source != "" {
		env.Meta = &Meta{Source: source}
	}
	JSON(w, http.StatusOK, env)
}

// Error logs err (Error for 5xx, Warn for 4xx) and writes its envelope.
// Internal causes are never sent to the client.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e := apperr.From(err)
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		slog.String("code", e.Code),
		slog.Int("status", e.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	if e.Status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), e.Message, attrs...)
	} else {
		logger.WarnContext(r.Context(), e.Message, attrs...)
	}

	JSON(w, e.Status, ErrorEnvelope{
		Error: ErrorBody{Code: e.Code, Message: e.Message, Details: e.Details},
	})
}
