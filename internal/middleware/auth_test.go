package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelbridge/reelbridge/internal/auth"
)

type stubVerifier struct {
	id  *auth.Identity
	err error
}

func (s stubVerifier) Verify(context.Context, string) (*auth.Identity, error) {
	return s.id, s.err
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if body.Success {
		t.Error("error envelope must have success=false")
	}
	return body.Error.Code, body.Error.Message
}

func TestAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		verifier   stubVerifier
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
			wantMsg:    "Missing Authorization bearer token",
		},
		{
			name:       "wrong scheme",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
			wantMsg:    "Missing Authorization bearer token",
		},
		{
			name:       "invalid token",
			header:     "Bearer abc.def.ghi",
			verifier:   stubVerifier{err: auth.ErrInvalidToken},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
			wantMsg:    "Invalid or expired token",
		},
		{
			name:       "misconfigured provider",
			header:     "Bearer abc.def.ghi",
			verifier:   stubVerifier{err: auth.ErrNotConfigured},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "AUTH_CONFIG_ERROR",
		},
		{
			name:       "valid token",
			header:     "Bearer abc.def.ghi",
			verifier:   stubVerifier{id: &auth.Identity{UID: "u1"}},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var gotUID string
			handler := Auth(AuthConfig{Verifier: tt.verifier})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUID = auth.UserIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if gotUID != "u1" {
					t.Errorf("uid = %q, want u1", gotUID)
				}
				return
			}
			code, msg := decodeError(t, rec)
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	t.Parallel()

	for name, v := range map[string]stubVerifier{
		"failing":  {err: errors.New("boom")},
		"succeeds": {id: &auth.Identity{UID: "u2"}},
	} {
		var gotUID string
		reached := false
		handler := OptionalAuth(AuthConfig{Verifier: v})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			gotUID = auth.UserIDFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/analytics/overview", nil)
		req.Header.Set("Authorization", "Bearer t")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if !reached || rec.Code != http.StatusOK {
			t.Errorf("%s: request should continue, status %d", name, rec.Code)
		}
		if v.id != nil && gotUID != v.id.UID {
			t.Errorf("%s: uid = %q", name, gotUID)
		}
		if v.id == nil && gotUID != "" {
			t.Errorf("%s: uid should be empty, got %q", name, gotUID)
		}
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		got, ok := bearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func stubVerifierFor(uid string) stubVerifier {
	return stubVerifier{id: &auth.Identity{UID: uid}}
}
