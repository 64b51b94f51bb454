package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestUpstream_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want int
	}{
		{in: 404, want: 404},
		{in: 401, want: 401},
		{in: 503, want: 503},
		{in: 0, want: http.StatusBadGateway},
		{in: 302, want: http.StatusBadGateway},
		{in: 600, want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		e := Upstream(tt.in, "boom", nil)
		if e.Status != tt.want {
			t.Errorf("Upstream(%d).Status = %d, want %d", tt.in, e.Status, tt.want)
		}
		if e.Code != CodeUpstream {
			t.Errorf("expected code %s, got %s", CodeUpstream, e.Code)
		}
	}
}

func TestUpstream_DefaultMessage(t *testing.T) {
	t.Parallel()

	if got := Upstream(500, "", nil).Message; got != "TMDB request failed" {
		t.Errorf("unexpected default message %q", got)
	}
}

func TestFrom(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("resolve: %w", NotFound("missing"))
	if got := From(wrapped); got.Code != CodeNotFound || got.Status != http.StatusNotFound {
		t.Errorf("expected NOT_FOUND through wrapping, got %+v", got)
	}

	plain := errors.New("disk on fire")
	got := From(plain)
	if got.Code != CodeInternal || got.Status != http.StatusInternalServerError {
		t.Errorf("expected INTERNAL_ERROR, got %+v", got)
	}
	if !errors.Is(got, plain) {
		t.Error("expected internal error to unwrap to the original")
	}

	if From(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestValidationDetails(t *testing.T) {
	t.Parallel()

	if e := Validation("bad"); e.Details != nil {
		t.Errorf("expected no details, got %v", e.Details)
	}
	e := Validation("bad", "q is required")
	details, ok := e.Details.([]string)
	if !ok || len(details) != 1 || details[0] != "q is required" {
		t.Errorf("unexpected details %v", e.Details)
	}
}

func TestIs(t *testing.T) {
	t.Parallel()

	if !Is(Conflict("dup"), CodeConflict) {
		t.Error("expected Is to match CONFLICT")
	}
	if Is(errors.New("x"), CodeConflict) {
		t.Error("expected Is to reject plain errors")
	}
}
