package compat

import (
	"context"
	"net/url"
	"time"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

// Upstream is the cached upstream surface compat depends on.
type Upstream interface {
	FetchInto(ctx context.Context, path string, params url.Values, ttl time.Duration, v any) (string, error)
	FetchKey(ctx context.Context, key, path string, params url.Values, ttl time.Duration) (*tmdb.Result, error)
	Remember(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) (*tmdb.Result, error)
}

// Resolver maps legacy identifiers to upstream references.
type Resolver struct {
	upstream Upstream
}

// NewResolver creates a Resolver.
func NewResolver(upstream Upstream) *Resolver {
	return &Resolver{upstream: upstream}
}

// Resolve classifies raw and, for foreign ids, looks it up upstream.
// A movie match wins over a tv match. Compound and numeric ids are parsed
// locally.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Ref, error) {
	parsed, err := ParseID(raw)
	if err != nil {
		return Ref{}, err
	}

	if parsed.Kind != KindIMDb {
		return Ref{MediaType: parsed.MediaType, NativeID: parsed.NativeID}, nil
	}

	res, err := r.upstream.FetchKey(ctx,
		"tmdb:/find:"+parsed.IMDbID,
		"/find/"+url.PathEscape(parsed.IMDbID),
		url.Values{"external_source": {"imdb_id"}},
		tmdb.TTLFind,
	)
	if err != nil {
		return Ref{}, err
	}

	var found tmdb.FindResult
	if err := tmdb.Decode(res.Data, &found); err != nil {
		return Ref{}, err
	}

	if len(found.MovieResults) > 0 && found.MovieResults[0].ID > 0 {
		return Ref{MediaType: tmdb.MediaMovie, NativeID: found.MovieResults[0].ID, LegacyID: parsed.IMDbID}, nil
	}
	if len(found.TVResults) > 0 && found.TVResults[0].ID > 0 {
		return Ref{MediaType: tmdb.MediaTV, NativeID: found.TVResults[0].ID, LegacyID: parsed.IMDbID}, nil
	}
	return Ref{}, apperr.NotFound("Unable to resolve IMDb ID in TMDB")
}
