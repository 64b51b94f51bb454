package compat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

const (
	// MaxBatchSize is the largest batch-details request accepted.
	MaxBatchSize = 50
	// batchWorkers bounds concurrent lookups within one batch.
	batchWorkers = 5
)

// Details is a translated record with the reference it was resolved to.
type Details struct {
	Ref    Ref
	Record LegacyDetails
}

// BatchResult is one entry of a batch-details response.
type BatchResult struct {
	IMDbID string         `json:"imdbID"`
	Data   *LegacyDetails `json:"data"`
	Error  *string        `json:"error"`
}

// Service orchestrates resolution, upstream fetches and translation.
type Service struct {
	upstream   Upstream
	resolver   *Resolver
	translator *Translator
	logger     *slog.Logger
}

// NewService creates a Service.
func NewService(upstream Upstream, translator *Translator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		upstream:   upstream,
		resolver:   NewResolver(upstream),
		translator: translator,
		logger:     logger.With("component", "compat.service"),
	}
}

// Resolve maps a legacy identifier to an upstream reference.
func (s *Service) Resolve(ctx context.Context, raw string) (Ref, error) {
	return s.resolver.Resolve(ctx, raw)
}

// GenreMap returns the id to name map for a media type, cached for a week.
func (s *Service) GenreMap(ctx context.Context, mediaType string) (GenreMap, error) {
	res, err := s.upstream.Remember(ctx, "tmdb:genres:"+mediaType, tmdb.TTLGenres, func(ctx context.Context) ([]byte, error) {
		var genres tmdb.GenreList
		if _, err := s.upstream.FetchInto(ctx, "/genre/"+mediaType+"/list", nil, tmdb.TTLGenres, &genres); err != nil {
			return nil, err
		}
		m := make(GenreMap, len(genres.Genres))
		for _, g := range genres.Genres {
			m[g.ID] = g.Name
		}
		return json.Marshal(m)
	})
	if err != nil {
		return nil, err
	}
	var m GenreMap
	if err := tmdb.Decode(res.Data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Details resolves raw and returns its legacy details record.
func (s *Service) Details(ctx context.Context, raw string) (*Details, error) {
	ref, err := s.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.DetailsFor(ctx, ref)
}

// DetailsFor returns the legacy details record for a resolved reference.
func (s *Service) DetailsFor(ctx context.Context, ref Ref) (*Details, error) {
	var (
		record LegacyDetails
		err    error
	)
	if ref.MediaType == tmdb.MediaTV {
		record, err = s.tvDetails(ctx, ref)
	} else {
		record, err = s.movieDetails(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	return &Details{Ref: ref, Record: record}, nil
}

// movieDetails fetches the movie and its credits concurrently. Credits and
// external id failures degrade to N/A fields.
func (s *Service) movieDetails(ctx context.Context, ref Ref) (LegacyDetails, error) {
	id := strconv.Itoa(ref.NativeID)

	var (
		movie   tmdb.Movie
		credits *tmdb.Credits
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.upstream.FetchInto(gctx, "/movie/"+id, nil, tmdb.TTLDetails, &movie)
		return err
	})
	g.Go(func() error {
		var c tmdb.Credits
		if _, err := s.upstream.FetchInto(gctx, "/movie/"+id+"/credits", nil, tmdb.TTLDetails, &c); err != nil {
			s.logger.Debug("credits unavailable", slog.Int("tmdb_id", ref.NativeID), slog.String("error", err.Error()))
			return nil
		}
		credits = &c
		return nil
	})
	if err := g.Wait(); err != nil {
		return LegacyDetails{}, err
	}

	imdbID := ref.LegacyID
	if imdbID == "" {
		imdbID = movie.IMDbID
	}
	if imdbID == "" {
		imdbID = s.externalIMDbID(ctx, tmdb.MediaMovie, id)
	}
	return s.translator.MovieDetails(&movie, credits, imdbID), nil
}

func (s *Service) tvDetails(ctx context.Context, ref Ref) (LegacyDetails, error) {
	id := strconv.Itoa(ref.NativeID)

	var tv tmdb.TV
	if _, err := s.upstream.FetchInto(ctx, "/tv/"+id, nil, tmdb.TTLDetails, &tv); err != nil {
		return LegacyDetails{}, err
	}

	imdbID := ref.LegacyID
	if imdbID == "" {
		imdbID = s.externalIMDbID(ctx, tmdb.MediaTV, id)
	}
	return s.translator.TVDetails(&tv, imdbID), nil
}

// externalIMDbID returns the IMDb id for a title, or "" on any failure.
func (s *Service) externalIMDbID(ctx context.Context, mediaType, id string) string {
	var ext tmdb.ExternalIDs
	if _, err := s.upstream.FetchInto(ctx, "/"+mediaType+"/"+id+"/external_ids", nil, tmdb.TTLFind, &ext); err != nil {
		s.logger.Debug("external ids unavailable", slog.String("media_type", mediaType), slog.String("tmdb_id", id))
		return ""
	}
	return ext.IMDbID
}

// Season returns a season listing. Ids that are not series yield an empty listing.
func (s *Service) Season(ctx context.Context, raw string, number int) (LegacySeason, error) {
	ref, err := s.Resolve(ctx, raw)
	if err != nil {
		return LegacySeason{}, err
	}
	if ref.MediaType != tmdb.MediaTV {
		return EmptySeason(number), nil
	}

	path := "/tv/" + strconv.Itoa(ref.NativeID) + "/season/" + strconv.Itoa(number)
	var season tmdb.Season
	if _, err := s.upstream.FetchInto(ctx, path, nil, tmdb.TTLSeason, &season); err != nil {
		return LegacySeason{}, err
	}
	return s.translator.Season(&season, number), nil
}

// Episode returns an episode record. Ids that are not series yield Response False.
func (s *Service) Episode(ctx context.Context, raw string, season, episode int) (LegacyEpisode, error) {
	ref, err := s.Resolve(ctx, raw)
	if err != nil {
		return LegacyEpisode{}, err
	}
	if ref.MediaType != tmdb.MediaTV {
		return EmptyEpisode(), nil
	}

	path := "/tv/" + strconv.Itoa(ref.NativeID) + "/season/" + strconv.Itoa(season) + "/episode/" + strconv.Itoa(episode)
	var ep tmdb.Episode
	if _, err := s.upstream.FetchInto(ctx, path, nil, tmdb.TTLSeason, &ep); err != nil {
		return LegacyEpisode{}, err
	}
	return s.translator.Episode(&ep, season, episode), nil
}

// Search runs a legacy search. typ is movie, series, tv, or empty for all.
func (s *Service) Search(ctx context.Context, query, typ string, page int) (LegacySearch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return EmptySearch(), nil
	}

	endpoint, forced := "/search/multi", ""
	switch typ {
	case TypeMovie:
		endpoint, forced = "/search/movie", tmdb.MediaMovie
	case TypeSeries, tmdb.MediaTV:
		endpoint, forced = "/search/tv", tmdb.MediaTV
	}

	var (
		results tmdb.SearchPage
		genres  GenreMap
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		params := url.Values{"query": {query}, "page": {strconv.Itoa(page)}}
		_, err := s.upstream.FetchInto(gctx, endpoint, params, tmdb.TTLSearch, &results)
		return err
	})
	if forced != "" {
		g.Go(func() error {
			m, err := s.GenreMap(gctx, forced)
			if err != nil {
				s.logger.Debug("genre map unavailable", slog.String("media_type", forced), slog.String("error", err.Error()))
				return nil
			}
			genres = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LegacySearch{}, err
	}

	return s.translator.SearchResults(&results, forced, genres), nil
}

// SearchPeople finds the top people matching query and returns their
// significant works. A person whose credits cannot be fetched contributes nothing.
func (s *Service) SearchPeople(ctx context.Context, query string, page int) (PersonSearch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return PersonSearch{Results: []PersonWork{}}, nil
	}

	params := url.Values{"query": {query}, "page": {strconv.Itoa(page)}}
	var people tmdb.PersonPage
	if _, err := s.upstream.FetchInto(ctx, "/search/person", params, tmdb.TTLSearch, &people); err != nil {
		return PersonSearch{}, err
	}

	top := people.Results
	if len(top) > maxPeople {
		top = top[:maxPeople]
	}

	perPerson := make([][]PersonWork, len(top))
	p := pool.New().WithMaxGoroutines(maxPeople)
	for i, person := range top {
		i, person := i, person
		p.Go(func() {
			path := "/person/" + strconv.Itoa(person.ID) + "/combined_credits"
			var credits tmdb.CombinedCredits
			if _, err := s.upstream.FetchInto(ctx, path, nil, tmdb.TTLDetails, &credits); err != nil {
				return
			}
			perPerson[i] = s.translator.PersonWorks(person, &credits)
		})
	}
	p.Wait()

	results := make([]PersonWork, 0)
	for _, works := range perPerson {
		results = append(results, works...)
	}
	return PersonSearch{Results: results, TotalResults: len(results)}, nil
}

// SearchByGenre discovers popular titles for a genre word. typ is movie,
// series, or empty for both.
func (s *Service) SearchByGenre(ctx context.Context, genre, typ string, page int) (GenreSearch, error) {
	filter, ok := LookupGenre(genre)
	if !ok {
		return s.translator.GenreResults(nil, 0, nil), nil
	}

	wantMovie := typ != TypeSeries
	wantTV := typ != TypeMovie
	params := filter.Params(page)

	var movies, shows tmdb.SearchPage
	g, gctx := errgroup.WithContext(ctx)
	if wantMovie {
		g.Go(func() error {
			_, err := s.upstream.FetchInto(gctx, "/discover/movie", params, tmdb.TTLSearch, &movies)
			return err
		})
	}
	if wantTV {
		g.Go(func() error {
			_, err := s.upstream.FetchInto(gctx, "/discover/tv", params, tmdb.TTLSearch, &shows)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return GenreSearch{}, err
	}

	hits := make([]tmdb.SearchHit, 0, len(movies.Results)+len(shows.Results))
	hits = append(hits, movies.Results...)
	hits = append(hits, shows.Results...)
	total := len(hits)
	if len(hits) > maxGenreResults {
		hits = hits[:maxGenreResults]
	}

	maps := map[string]GenreMap{}
	lookup := func(mediaType string) GenreMap {
		if m, ok := maps[mediaType]; ok {
			return m
		}
		m, err := s.GenreMap(ctx, mediaType)
		if err != nil {
			s.logger.Debug("genre map unavailable", slog.String("media_type", mediaType), slog.String("error", err.Error()))
		}
		maps[mediaType] = m
		return m
	}
	return s.translator.GenreResults(hits, total, lookup), nil
}

// BatchDetails resolves and translates up to MaxBatchSize ids. Results keep
// the input order and each entry carries its own error.
func (s *Service) BatchDetails(ctx context.Context, ids []string) ([]BatchResult, error) {
	if len(ids) == 0 || len(ids) > MaxBatchSize {
		return nil, apperr.Validation("imdbIDs must contain between 1 and 50 items")
	}

	results := make([]BatchResult, len(ids))
	p := pool.New().WithMaxGoroutines(batchWorkers)
	for i, id := range ids {
		i, id := i, id
		p.Go(func() {
			results[i] = BatchResult{IMDbID: id}
			details, err := s.Details(ctx, id)
			if err != nil {
				msg := apperr.From(err).Message
				if msg == "" {
					msg = "Failed"
				}
				results[i].Error = &msg
				return
			}
			results[i].Data = &details.Record
		})
	}
	p.Wait()
	return results, nil
}

// LegacyRecommendations searches for title and returns up to topN movie
// recommendations for the first hit.
func (s *Service) LegacyRecommendations(ctx context.Context, title string, topN int) ([]LegacyRecommendation, error) {
	params := url.Values{"query": {strings.TrimSpace(title)}, "page": {"1"}}
	var search tmdb.SearchPage
	if _, err := s.upstream.FetchInto(ctx, "/search/movie", params, tmdb.TTLSearch, &search); err != nil {
		return nil, err
	}
	if len(search.Results) == 0 || search.Results[0].ID <= 0 {
		return []LegacyRecommendation{}, nil
	}

	path := "/movie/" + strconv.Itoa(search.Results[0].ID) + "/recommendations"
	var recs tmdb.SearchPage
	if _, err := s.upstream.FetchInto(ctx, path, url.Values{"page": {"1"}}, tmdb.TTLRecommendations, &recs); err != nil {
		return nil, err
	}

	genres, err := s.GenreMap(ctx, tmdb.MediaMovie)
	if err != nil {
		return nil, err
	}
	return s.translator.LegacyRecommendations(recs.Results, genres, topN), nil
}
