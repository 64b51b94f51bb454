package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

// Upstream is the cached metadata API surface the media service uses.
type Upstream interface {
	Fetch(ctx context.Context, path string, params url.Values, ttl time.Duration) (*tmdb.Result, error)
	Remember(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) (*tmdb.Result, error)
}

// Movie and tv list names, mapped to upstream paths.
var (
	movieLists = map[string]string{
		"popular":     "popular",
		"top-rated":   "top_rated",
		"now-playing": "now_playing",
		"upcoming":    "upcoming",
	}
	tvLists = map[string]string{
		"popular":      "popular",
		"top-rated":    "top_rated",
		"airing-today": "airing_today",
		"on-the-air":   "on_the_air",
	}
)

// Detail sub-resources and their cache lifetimes. Paged ones take ?page.
var subResources = map[string]struct {
	path  string
	ttl   time.Duration
	paged bool
}{
	"":                {"", tmdb.TTLDetails, false},
	"credits":         {"/credits", tmdb.TTLDetails, false},
	"videos":          {"/videos", tmdb.TTLDetails, false},
	"images":          {"/images", tmdb.TTLDetails, false},
	"watch-providers": {"/watch/providers", tmdb.TTLDetails, false},
	"recommendations": {"/recommendations", tmdb.TTLRecommendations, true},
	"reviews":         {"/reviews", tmdb.TTLReviews, true},
}

// Search kinds.
var searchKinds = map[string]bool{"multi": true, "movie": true, "tv": true, "person": true}

// Trending filters.
var (
	TrendingTypes   = []string{"all", "movie", "tv", "person"}
	TrendingWindows = []string{"day", "week"}
)

const (
	keywordsCacheKey = "trending:search:keywords"
	maxKeywords      = 30
	keywordTitles    = 10
)

var (
	popularSearches = []string{
		"action", "comedy", "thriller", "horror", "anime",
		"drama", "romance", "sci-fi", "documentary",
	}
	fallbackKeywords = []string{
		"action", "comedy", "drama", "thriller", "horror", "sci-fi",
		"anime", "romance", "adventure", "fantasy", "documentary", "mystery",
	}
)

// MediaService proxies the metadata API with caching.
type MediaService struct {
	upstream Upstream
	logger   *slog.Logger
}

// NewMediaService creates a new MediaService.
func NewMediaService(upstream Upstream, logger *slog.Logger) *MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaService{upstream: upstream, logger: logger}
}

// IsMovieList reports whether name is a known movie list.
func IsMovieList(name string) bool { _, ok := movieLists[name]; return ok }

// IsTVList reports whether name is a known tv list.
func IsTVList(name string) bool { _, ok := tvLists[name]; return ok }

// IsSubResource reports whether name is a known detail sub-resource.
func IsSubResource(name string) bool { _, ok := subResources[name]; return ok }

func pageParams(page int) url.Values {
	if page < 1 {
		page = 1
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}

// MovieList returns a movie list page.
func (s *MediaService) MovieList(ctx context.Context, name string, page int) (*tmdb.Result, error) {
	path, ok := movieLists[name]
	if !ok {
		return nil, apperr.NotFound("Unknown movie list: " + name)
	}
	return s.upstream.Fetch(ctx, "/movie/"+path, pageParams(page), tmdb.TTLList)
}

// TVList returns a tv list page.
func (s *MediaService) TVList(ctx context.Context, name string, page int) (*tmdb.Result, error) {
	path, ok := tvLists[name]
	if !ok {
		return nil, apperr.NotFound("Unknown tv list: " + name)
	}
	return s.upstream.Fetch(ctx, "/tv/"+path, pageParams(page), tmdb.TTLList)
}

// Detail returns a movie or tv resource. sub is "" for the base record.
func (s *MediaService) Detail(ctx context.Context, mediaType string, id int, sub string, page int) (*tmdb.Result, error) {
	if mediaType != tmdb.MediaMovie && mediaType != tmdb.MediaTV {
		return nil, apperr.Validation("media_type must be movie or tv")
	}
	res, ok := subResources[sub]
	if !ok {
		return nil, apperr.NotFound("Unknown resource: " + sub)
	}

	var params url.Values
	if res.paged {
		params = pageParams(page)
	}
	return s.upstream.Fetch(ctx, fmt.Sprintf("/%s/%d%s", mediaType, id, res.path), params, res.ttl)
}

// Season returns one tv season.
func (s *MediaService) Season(ctx context.Context, id, season int) (*tmdb.Result, error) {
	return s.upstream.Fetch(ctx, fmt.Sprintf("/tv/%d/season/%d", id, season), nil, tmdb.TTLSeason)
}

// SeasonVideos returns the videos of one tv season.
func (s *MediaService) SeasonVideos(ctx context.Context, id, season int) (*tmdb.Result, error) {
	return s.upstream.Fetch(ctx, fmt.Sprintf("/tv/%d/season/%d/videos", id, season), nil, tmdb.TTLSeason)
}

// Episode returns one tv episode.
func (s *MediaService) Episode(ctx context.Context, id, season, episode int) (*tmdb.Result, error) {
	return s.upstream.Fetch(ctx, fmt.Sprintf("/tv/%d/season/%d/episode/%d", id, season, episode), nil, tmdb.TTLSeason)
}

// Search runs a native search of the given kind.
func (s *MediaService) Search(ctx context.Context, kind, query string, page int) (*tmdb.Result, error) {
	if !searchKinds[kind] {
		return nil, apperr.NotFound("Unknown search type: " + kind)
	}
	params := pageParams(page)
	params.Set("query", query)
	return s.upstream.Fetch(ctx, "/search/"+kind, params, tmdb.TTLSearch)
}

// Recommendations returns native recommendations for a title.
func (s *MediaService) Recommendations(ctx context.Context, mediaType string, id, page int) (*tmdb.Result, error) {
	if mediaType != tmdb.MediaMovie && mediaType != tmdb.MediaTV {
		return nil, apperr.Validation("media_type must be movie or tv")
	}
	return s.Detail(ctx, mediaType, id, "recommendations", page)
}

// Trending returns trending titles. Results are narrowed to the requested
// media type; "all" keeps movies and tv only.
func (s *MediaService) Trending(ctx context.Context, typ, window string) (*tmdb.Result, error) {
	res, err := s.upstream.Fetch(ctx, "/trending/"+typ+"/"+window, nil, tmdb.TTLTrending)
	if err != nil {
		return nil, err
	}
	data, err := filterTrending(res.Data, typ)
	if err != nil {
		return nil, err
	}
	return &tmdb.Result{Data: data, Source: res.Source}, nil
}

func filterTrending(data json.RawMessage, typ string) (json.RawMessage, error) {
	var payload map[string]json.RawMessage
	if err := tmdb.Decode(data, &payload); err != nil {
		return nil, err
	}
	raw, ok := payload["results"]
	if !ok {
		return data, nil
	}
	var results []map[string]any
	if err := json.Unmarshal(raw, &results); err != nil {
		return data, nil
	}

	kept := make([]map[string]any, 0, len(results))
	for _, r := range results {
		mt, _ := r["media_type"].(string)
		switch typ {
		case tmdb.MediaMovie, tmdb.MediaTV:
			if mt != typ {
				continue
			}
		case "all":
			if mt != tmdb.MediaMovie && mt != tmdb.MediaTV {
				continue
			}
		}
		kept = append(kept, r)
	}

	encoded, err := json.Marshal(kept)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	payload["results"] = encoded
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// TrendingKeywords suggests search terms: this week's top titles followed
// by popular genre words. A fixed list is returned when upstream fails.
func (s *MediaService) TrendingKeywords(ctx context.Context) []string {
	res, err := s.upstream.Remember(ctx, keywordsCacheKey, tmdb.TTLKeywords, s.computeKeywords)
	if err != nil {
		s.logger.Warn("trending keywords unavailable, using fallback", "error", err)
		return append([]string(nil), fallbackKeywords...)
	}

	var keywords []string
	if err := json.Unmarshal(res.Data, &keywords); err != nil {
		return append([]string(nil), fallbackKeywords...)
	}
	return keywords
}

func (s *MediaService) computeKeywords(ctx context.Context) ([]byte, error) {
	var movies, shows *tmdb.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		movies, err = s.Trending(gctx, tmdb.MediaMovie, "week")
		return err
	})
	g.Go(func() (err error) {
		shows, err = s.Trending(gctx, tmdb.MediaTV, "week")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keywords := make([]string, 0, maxKeywords)
	for _, res := range []*tmdb.Result{movies, shows} {
		var page tmdb.SearchPage
		if err := tmdb.Decode(res.Data, &page); err != nil {
			return nil, err
		}
		for i, hit := range page.Results {
			if i >= keywordTitles {
				break
			}
			if t := hit.DisplayTitle(hit.MediaType); t != "" {
				keywords = append(keywords, t)
			}
		}
	}
	keywords = append(keywords, popularSearches...)
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return json.Marshal(keywords)
}
