package compat

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/reelbridge/reelbridge/internal/tmdb"
)

// NA is the sentinel the legacy client matches for absent values.
const NA = "N/A"

// Legacy type tags.
const (
	TypeMovie  = "movie"
	TypeSeries = "series"
)

// Translation limits.
const (
	maxWriters      = 5
	maxActors       = 5
	maxPeople       = 3
	maxPersonWorks  = 20
	maxGenreResults = 20
	overviewChars   = 100
	minCastVotes    = 50
)

// LegacyDetails is the flat movie/series details record.
type LegacyDetails struct {
	Title        string `json:"Title"`
	Year         string `json:"Year"`
	Rated        string `json:"Rated"`
	Released     string `json:"Released"`
	Runtime      string `json:"Runtime"`
	Genre        string `json:"Genre"`
	Director     string `json:"Director"`
	Writer       string `json:"Writer"`
	Actors       string `json:"Actors"`
	Plot         string `json:"Plot"`
	Language     string `json:"Language"`
	Country      string `json:"Country"`
	Awards       string `json:"Awards"`
	Poster       string `json:"Poster"`
	IMDbRating   string `json:"imdbRating"`
	IMDbVotes    string `json:"imdbVotes"`
	IMDbID       string `json:"imdbID"`
	Type         string `json:"Type"`
	TotalSeasons *int   `json:"totalSeasons,omitempty"`
}

// LegacySeasonEpisode is one row of a season listing.
type LegacySeasonEpisode struct {
	Title      string `json:"Title"`
	Released   string `json:"Released"`
	Episode    string `json:"Episode"`
	IMDbRating string `json:"imdbRating"`
	Runtime    string `json:"Runtime"`
}

// LegacySeason is a season listing.
type LegacySeason struct {
	Season   string                `json:"Season"`
	Episodes []LegacySeasonEpisode `json:"Episodes"`
	Response string                `json:"Response"`
}

// LegacyEpisode is a single episode record.
type LegacyEpisode struct {
	Title      string `json:"Title,omitempty"`
	Released   string `json:"Released,omitempty"`
	Season     string `json:"Season,omitempty"`
	Episode    string `json:"Episode,omitempty"`
	Runtime    string `json:"Runtime,omitempty"`
	IMDbRating string `json:"imdbRating,omitempty"`
	Response   string `json:"Response"`
}

// SearchItem is one legacy search hit.
type SearchItem struct {
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	IMDbID   string `json:"imdbID"`
	Type     string `json:"Type"`
	Poster   string `json:"Poster"`
	Genres   string `json:"_genres"`
	Genre    string `json:"Genre"`
	Actors   string `json:"Actors"`
	Director string `json:"Director"`
	TMDBID   int    `json:"_tmdbId"`
}

// LegacySearch is a legacy search page.
type LegacySearch struct {
	Search       []SearchItem `json:"Search"`
	TotalResults string       `json:"totalResults"`
	Response     string       `json:"Response"`
}

// PersonWork is a title surfaced by person search.
type PersonWork struct {
	Title       string  `json:"Title"`
	Year        string  `json:"Year"`
	IMDbID      string  `json:"imdbID"`
	Type        string  `json:"Type"`
	Poster      string  `json:"Poster"`
	Actors      string  `json:"Actors"`
	IMDbRating  string  `json:"imdbRating"`
	TMDBID      int     `json:"_tmdbId"`
	PersonMatch string  `json:"_personMatch"`
	Popularity  float64 `json:"_popularity"`
}

// PersonSearch is the person search response.
type PersonSearch struct {
	Results      []PersonWork `json:"results"`
	TotalResults int          `json:"totalResults"`
}

// GenreItem is one genre search hit.
type GenreItem struct {
	Title         string `json:"Title"`
	Year          string `json:"Year"`
	IMDbID        string `json:"imdbID"`
	Type          string `json:"Type"`
	Poster        string `json:"Poster"`
	Genre         string `json:"Genre"`
	IMDbRating    string `json:"imdbRating"`
	TMDBID        int    `json:"_tmdbId"`
	IsGenreSearch bool   `json:"_isGenreSearch"`
}

// GenreSearch is the genre search response.
type GenreSearch struct {
	Search       []GenreItem `json:"Search"`
	TotalResults string      `json:"totalResults"`
	Response     string      `json:"Response"`
}

// LegacyRecommendation is one title-based recommendation.
type LegacyRecommendation struct {
	Title       string `json:"title"`
	ReleaseYear string `json:"release_year"`
	Genres      string `json:"genres"`
	IMDbID      string `json:"imdbID"`
	Poster      string `json:"Poster"`
	IMDbRating  string `json:"imdbRating"`
	Runtime     string `json:"Runtime"`
}

// GenreMap maps genre ids to names.
type GenreMap map[int]string

// Names returns the known names for ids, in order.
func (g GenreMap) Names(ids []int) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := g[id]; ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Translator converts upstream payloads into legacy records. It is pure.
type Translator struct {
	imageBase string
}

// NewTranslator creates a Translator for the given image base URL.
func NewTranslator(imageBase string) *Translator {
	return &Translator{imageBase: strings.TrimRight(imageBase, "/")}
}

// Poster expands an image path to a full w500 URL.
func (t *Translator) Poster(path string) string {
	if path == "" {
		return NA
	}
	return t.imageBase + "/w500" + path
}

// Year returns the first four characters of a date, or N/A.
func Year(date string) string {
	if len(date) < 4 || !isDigits(date[:4]) {
		return NA
	}
	return date[:4]
}

// Runtime renders minutes as "<n> min".
func Runtime(minutes int) string {
	if minutes <= 0 {
		return NA
	}
	return strconv.Itoa(minutes) + " min"
}

// Rating formats a vote average with one decimal. Rounding works on the
// exact decimal expansion and sends ties up, so 7.25 gives "7.3" while
// 7.05, stored just below the tie, gives "7.0".
func Rating(vote float64) string {
	if vote <= 0 || math.IsNaN(vote) || math.IsInf(vote, 0) {
		return NA
	}
	exact := strconv.FormatFloat(vote, 'f', 100, 64)
	dot := strings.IndexByte(exact, '.')
	tenths, err := strconv.ParseInt(exact[:dot]+exact[dot+1:dot+2], 10, 64)
	if err != nil {
		return NA
	}
	if exact[dot+2] >= '5' {
		tenths++
	}
	return strconv.FormatInt(tenths/10, 10) + "." + strconv.FormatInt(tenths%10, 10)
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}

func joinOrNA(parts []string) string {
	return orNA(strings.Join(parts, ", "))
}

func legacyType(mediaType string) string {
	if mediaType == tmdb.MediaTV {
		return TypeSeries
	}
	return TypeMovie
}

func legacyID(imdbID, mediaType string, id int) string {
	if imdbID != "" {
		return imdbID
	}
	return FormatID(mediaType, id)
}

// MovieDetails builds a movie record. credits may be nil.
func (t *Translator) MovieDetails(movie *tmdb.Movie, credits *tmdb.Credits, imdbID string) LegacyDetails {
	var directors, writers, actors []string
	if credits != nil {
		for _, c := range credits.Crew {
			if c.Job == "Director" {
				directors = append(directors, c.Name)
			}
		}
		for _, c := range credits.Crew {
			if c.Department == "Writing" && len(writers) < maxWriters {
				writers = append(writers, c.Name)
			}
		}
		for _, c := range credits.Cast {
			if len(actors) == maxActors {
				break
			}
			actors = append(actors, c.Name)
		}
	}

	genres := make([]string, 0, len(movie.Genres))
	for _, g := range movie.Genres {
		genres = append(genres, g.Name)
	}
	countries := make([]string, 0, len(movie.ProductionCountries))
	for _, c := range movie.ProductionCountries {
		countries = append(countries, c.Name)
	}

	return LegacyDetails{
		Title:      orNA(movie.Title),
		Year:       Year(movie.ReleaseDate),
		Rated:      NA,
		Released:   orNA(movie.ReleaseDate),
		Runtime:    Runtime(movie.Runtime),
		Genre:      joinOrNA(genres),
		Director:   joinOrNA(directors),
		Writer:     joinOrNA(writers),
		Actors:     joinOrNA(actors),
		Plot:       orNA(movie.Overview),
		Language:   orNA(movie.OriginalLanguage),
		Country:    joinOrNA(countries),
		Awards:     NA,
		Poster:     t.Poster(movie.PosterPath),
		IMDbRating: Rating(movie.VoteAverage),
		IMDbVotes:  votes(movie.VoteCount),
		IMDbID:     legacyID(imdbID, tmdb.MediaMovie, movie.ID),
		Type:       TypeMovie,
	}
}

// TVDetails builds a series record.
func (t *Translator) TVDetails(tv *tmdb.TV, imdbID string) LegacyDetails {
	runtime := NA
	if len(tv.EpisodeRunTime) > 0 {
		runtime = Runtime(tv.EpisodeRunTime[0])
	}
	genres := make([]string, 0, len(tv.Genres))
	for _, g := range tv.Genres {
		genres = append(genres, g.Name)
	}
	seasons := tv.NumberOfSeasons

	return LegacyDetails{
		Title:        orNA(tv.Name),
		Year:         Year(tv.FirstAirDate),
		Rated:        NA,
		Released:     orNA(tv.FirstAirDate),
		Runtime:      runtime,
		Genre:        joinOrNA(genres),
		Director:     NA,
		Writer:       NA,
		Actors:       NA,
		Plot:         orNA(tv.Overview),
		Language:     orNA(tv.OriginalLanguage),
		Country:      joinOrNA(tv.OriginCountry),
		Awards:       NA,
		Poster:       t.Poster(tv.PosterPath),
		IMDbRating:   Rating(tv.VoteAverage),
		IMDbVotes:    votes(tv.VoteCount),
		IMDbID:       legacyID(imdbID, tmdb.MediaTV, tv.ID),
		Type:         TypeSeries,
		TotalSeasons: &seasons,
	}
}

func votes(n int) string {
	if n <= 0 {
		return NA
	}
	return strconv.Itoa(n)
}

// Season builds a season listing.
func (t *Translator) Season(season *tmdb.Season, number int) LegacySeason {
	episodes := make([]LegacySeasonEpisode, 0, len(season.Episodes))
	for _, ep := range season.Episodes {
		num := ""
		if ep.EpisodeNumber > 0 {
			num = strconv.Itoa(ep.EpisodeNumber)
		}
		episodes = append(episodes, LegacySeasonEpisode{
			Title:      orNA(ep.Name),
			Released:   orNA(ep.AirDate),
			Episode:    num,
			IMDbRating: Rating(ep.VoteAverage),
			Runtime:    Runtime(ep.Runtime),
		})
	}
	return LegacySeason{
		Season:   strconv.Itoa(number),
		Episodes: episodes,
		Response: boolResponse(len(episodes) > 0),
	}
}

// EmptySeason is returned for ids that are not series.
func EmptySeason(number int) LegacySeason {
	return LegacySeason{Season: strconv.Itoa(number), Episodes: []LegacySeasonEpisode{}, Response: "False"}
}

// Episode builds an episode record.
func (t *Translator) Episode(ep *tmdb.Episode, season, episode int) LegacyEpisode {
	return LegacyEpisode{
		Title:      orNA(ep.Name),
		Released:   orNA(ep.AirDate),
		Season:     strconv.Itoa(season),
		Episode:    strconv.Itoa(episode),
		Runtime:    Runtime(ep.Runtime),
		IMDbRating: NA,
		Response:   "True",
	}
}

// EmptyEpisode is returned for ids that are not series.
func EmptyEpisode() LegacyEpisode {
	return LegacyEpisode{Response: "False"}
}

// EmptySearch is the response for a blank query.
func EmptySearch() LegacySearch {
	return LegacySearch{Search: []SearchItem{}, TotalResults: "0", Response: "False"}
}

// SearchResults translates a search page. forcedType is movie, tv or empty
// for multi-search, in which case hits other than movie and tv are dropped.
// genres is applied only for a forced type and may be nil.
func (t *Translator) SearchResults(page *tmdb.SearchPage, forcedType string, genres GenreMap) LegacySearch {
	items := make([]SearchItem, 0, len(page.Results))
	for _, hit := range page.Results {
		mediaType := forcedType
		if mediaType == "" {
			if hit.MediaType != tmdb.MediaMovie && hit.MediaType != tmdb.MediaTV {
				continue
			}
			mediaType = hit.MediaType
		}

		var genre string
		if forcedType != "" && genres != nil {
			genre = strings.Join(genres.Names(hit.GenreIDs), ", ")
		}

		items = append(items, SearchItem{
			Title:    orNA(hit.DisplayTitle(mediaType)),
			Year:     Year(hit.Date(mediaType)),
			IMDbID:   FormatID(mediaType, hit.ID),
			Type:     legacyType(mediaType),
			Poster:   t.Poster(hit.PosterPath),
			Genres:   genre,
			Genre:    genre,
			Actors:   truncateRunes(hit.Overview, overviewChars),
			Director: "",
			TMDBID:   hit.ID,
		})
	}

	total := page.TotalResults
	if total == 0 {
		total = len(items)
	}
	return LegacySearch{
		Search:       items,
		TotalResults: strconv.Itoa(total),
		Response:     boolResponse(len(items) > 0),
	}
}

// SignificantWorks filters and ranks a person's credits.
// Cast roles count for movie and tv with a character and more than 50 votes;
// crew roles count for movie directors and tv executive producers or creators.
func SignificantWorks(credits *tmdb.CombinedCredits) []tmdb.CreditWork {
	works := make([]tmdb.CreditWork, 0, len(credits.Cast)+len(credits.Crew))
	for _, w := range credits.Cast {
		if (w.MediaType == tmdb.MediaMovie || w.MediaType == tmdb.MediaTV) &&
			strings.TrimSpace(w.Character) != "" &&
			w.VoteCount > minCastVotes {
			works = append(works, w)
		}
	}
	for _, w := range credits.Crew {
		if (w.MediaType == tmdb.MediaMovie && w.Job == "Director") ||
			(w.MediaType == tmdb.MediaTV && (w.Job == "Executive Producer" || w.Job == "Creator")) {
			works = append(works, w)
		}
	}

	sort.SliceStable(works, func(i, j int) bool {
		return workScore(works[i]) > workScore(works[j])
	})
	if len(works) > maxPersonWorks {
		works = works[:maxPersonWorks]
	}
	return works
}

func workScore(w tmdb.CreditWork) float64 {
	votes := w.VoteCount
	if votes == 0 {
		votes = 1
	}
	return w.Popularity * math.Log10(float64(votes)+1)
}

// PersonWorks translates the ranked works of one person.
func (t *Translator) PersonWorks(person tmdb.Person, credits *tmdb.CombinedCredits) []PersonWork {
	ranked := SignificantWorks(credits)
	out := make([]PersonWork, 0, len(ranked))
	for _, w := range ranked {
		out = append(out, PersonWork{
			Title:       orNA(w.DisplayTitle(w.MediaType)),
			Year:        Year(w.Date(w.MediaType)),
			IMDbID:      FormatID(w.MediaType, w.ID),
			Type:        legacyType(w.MediaType),
			Poster:      t.Poster(w.PosterPath),
			Actors:      person.Name,
			IMDbRating:  Rating(w.VoteAverage),
			TMDBID:      w.ID,
			PersonMatch: person.Name,
			Popularity:  w.Popularity,
		})
	}
	return out
}

// GenreResults translates discover hits. lookup returns the genre map for a
// media type and may return nil.
func (t *Translator) GenreResults(hits []tmdb.SearchHit, total int, lookup func(mediaType string) GenreMap) GenreSearch {
	if len(hits) == 0 {
		return GenreSearch{Search: []GenreItem{}, TotalResults: "0", Response: "False"}
	}

	items := make([]GenreItem, 0, len(hits))
	for _, hit := range hits {
		mediaType := inferMediaType(hit)
		var genre string
		if gm := lookup(mediaType); gm != nil {
			genre = strings.Join(gm.Names(hit.GenreIDs), ", ")
		}
		items = append(items, GenreItem{
			Title:         orNA(hit.DisplayTitle(mediaType)),
			Year:          Year(hit.Date(mediaType)),
			IMDbID:        FormatID(mediaType, hit.ID),
			Type:          legacyType(mediaType),
			Poster:        t.Poster(hit.PosterPath),
			Genre:         genre,
			IMDbRating:    Rating(hit.VoteAverage),
			TMDBID:        hit.ID,
			IsGenreSearch: true,
		})
	}

	if total == 0 {
		total = len(items)
	}
	return GenreSearch{Search: items, TotalResults: strconv.Itoa(total), Response: "True"}
}

// inferMediaType uses the explicit tag, else a first air date implies tv.
func inferMediaType(hit tmdb.SearchHit) string {
	if hit.MediaType == tmdb.MediaMovie || hit.MediaType == tmdb.MediaTV {
		return hit.MediaType
	}
	if hit.FirstAirDate != "" {
		return tmdb.MediaTV
	}
	return tmdb.MediaMovie
}

// LegacyRecommendations translates the first topN movie recommendations.
func (t *Translator) LegacyRecommendations(hits []tmdb.SearchHit, genres GenreMap, topN int) []LegacyRecommendation {
	if topN > 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	out := make([]LegacyRecommendation, 0, len(hits))
	for _, r := range hits {
		out = append(out, LegacyRecommendation{
			Title:       r.Title,
			ReleaseYear: Year(r.ReleaseDate),
			Genres:      strings.Join(genres.Names(r.GenreIDs), ", "),
			IMDbID:      FormatID(tmdb.MediaMovie, r.ID),
			Poster:      t.Poster(r.PosterPath),
			IMDbRating:  Rating(r.VoteAverage),
			Runtime:     NA,
		})
	}
	return out
}

func boolResponse(ok bool) string {
	if ok {
		return "True"
	}
	return "False"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
