package compat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/cache"
	"github.com/reelbridge/reelbridge/internal/testutil"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

func newUpstream(t *testing.T) (*testutil.TMDBServer, *tmdb.CachedClient) {
	t.Helper()
	srv := testutil.NewTMDBServer(t)
	client := tmdb.NewClient(tmdb.Options{BaseURL: srv.URL, APIKey: "k"})
	return srv, tmdb.NewCachedClient(client, cache.NewMemoryCache(1000), nil, nil)
}

func TestParseID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantKind IDKind
		wantType string
		wantID   int
		wantErr  string
	}{
		{name: "imdb", raw: "tt0372784", wantKind: KindIMDb},
		{name: "compound movie", raw: "tmdb:movie:272", wantKind: KindCompound, wantType: "movie", wantID: 272},
		{name: "compound tv", raw: "tmdb:tv:1399", wantKind: KindCompound, wantType: "tv", wantID: 1399},
		{name: "numeric defaults to movie", raw: "550", wantKind: KindNumeric, wantType: "movie", wantID: 550},
		{name: "trimmed", raw: "  tmdb:tv:1  ", wantKind: KindCompound, wantType: "tv", wantID: 1},
		{name: "empty", raw: "", wantErr: "Missing id"},
		{name: "blank", raw: "   ", wantErr: "Missing id"},
		{name: "compound non numeric", raw: "tmdb:movie:abc", wantErr: "Unsupported id format"},
		{name: "compound zero", raw: "tmdb:tv:0", wantErr: "Unsupported id format"},
		{name: "unknown namespace", raw: "tmdb:person:5", wantErr: "Unsupported id format"},
		{name: "garbage", raw: "batman", wantErr: "Unsupported id format"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseID(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.CodeValidation))
				assert.Equal(t, tt.wantErr, apperr.From(err).Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantType, got.MediaType)
			assert.Equal(t, tt.wantID, got.NativeID)
		})
	}
}

func TestFormatID_RoundTrips(t *testing.T) {
	t.Parallel()

	id := FormatID("tv", 1399)
	assert.Equal(t, "tmdb:tv:1399", id)

	parsed, err := ParseID(id)
	require.NoError(t, err)
	assert.Equal(t, "tv", parsed.MediaType)
	assert.Equal(t, 1399, parsed.NativeID)
}

func TestResolve_IMDbToTV(t *testing.T) {
	t.Parallel()

	srv, upstream := newUpstream(t)
	srv.Handle("/find/tt0372784", map[string]any{
		"movie_results": []any{},
		"tv_results":    []any{map[string]any{"id": 1399}},
	})
	r := NewResolver(upstream)

	ref, err := r.Resolve(context.Background(), "tt0372784")
	require.NoError(t, err)
	assert.Equal(t, Ref{MediaType: "tv", NativeID: 1399, LegacyID: "tt0372784"}, ref)
}

func TestResolve_MovieWinsOverTV(t *testing.T) {
	t.Parallel()

	srv, upstream := newUpstream(t)
	srv.Handle("/find/tt1", map[string]any{
		"movie_results": []any{map[string]any{"id": 10}},
		"tv_results":    []any{map[string]any{"id": 20}},
	})

	ref, err := NewResolver(upstream).Resolve(context.Background(), "tt1")
	require.NoError(t, err)
	assert.Equal(t, "movie", ref.MediaType)
	assert.Equal(t, 10, ref.NativeID)
}

func TestResolve_CachedAndStable(t *testing.T) {
	t.Parallel()

	srv, upstream := newUpstream(t)
	srv.Handle("/find/tt0372784", map[string]any{"tv_results": []any{map[string]any{"id": 1399}}})
	r := NewResolver(upstream)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "tt0372784")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "tt0372784")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, srv.Calls("/find/tt0372784"))
}

func TestResolve_CompoundIsLocal(t *testing.T) {
	t.Parallel()

	srv, upstream := newUpstream(t)
	r := NewResolver(upstream)

	for _, raw := range []string{"tmdb:movie:272", "tmdb:tv:1399", "272"} {
		_, err := r.Resolve(context.Background(), raw)
		require.NoError(t, err)
	}
	assert.Zero(t, srv.TotalCalls())
}

func TestResolve_NotFound(t *testing.T) {
	t.Parallel()

	srv, upstream := newUpstream(t)
	srv.Handle("/find/tt404", map[string]any{"movie_results": []any{}, "tv_results": []any{}})

	_, err := NewResolver(upstream).Resolve(context.Background(), "tt404")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Equal(t, "Unable to resolve IMDb ID in TMDB", apperr.From(err).Message)
}

func TestResolve_ValidationBeforeIO(t *testing.T) {
	t.Parallel()

	srv, upstream := newUpstream(t)
	_, err := NewResolver(upstream).Resolve(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Zero(t, srv.TotalCalls())
}
