// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// TMDBServer is a fake upstream metadata API serving canned JSON by path.
type TMDBServer struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]fixture
	calls    map[string]int
	lastKeys map[string]string
}

type fixture struct {
	status int
	body   string
}

// NewTMDBServer starts a fake upstream. Unknown paths answer 404 with a
// TMDB-style status_message. The server is closed on test cleanup.
func NewTMDBServer(t testing.TB) *TMDBServer {
	t.Helper()
	s := &TMDBServer{
		routes:   make(map[string]fixture),
		calls:    make(map[string]int),
		lastKeys: make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers a JSON body for path with status 200.
func (s *TMDBServer) Handle(path string, body any) {
	s.HandleStatus(path, http.StatusOK, body)
}

// HandleStatus registers a JSON body for path with the given status.
// String bodies are written verbatim.
func (s *TMDBServer) HandleStatus(path string, status int, body any) {
	var raw string
	switch b := body.(type) {
	case string:
		raw = b
	default:
		data, _ := json.Marshal(b)
		raw = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = fixture{status: status, body: raw}
}

// Calls returns how many times path was requested.
func (s *TMDBServer) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests served.
func (s *TMDBServer) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// LastAPIKey returns the api_key query parameter of the last request to path.
func (s *TMDBServer) LastAPIKey(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKeys[path]
}

func (s *TMDBServer) serve(w http.ResponseWriter, r *http.Request) {
	path := "/" + strings.TrimLeft(r.URL.Path, "/")

	s.mu.Lock()
	s.calls[path]++
	s.lastKeys[path] = r.URL.Query().Get("api_key")
	f, ok := s.routes[path]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
		return
	}
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.body))
}
