package tmdb

import (
	"encoding/json"
	"net/http"

	"github.com/reelbridge/reelbridge/internal/apperr"
)

// Media types.
const (
	MediaMovie  = "movie"
	MediaTV     = "tv"
	MediaPerson = "person"
)

// Genre is a movie/TV genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Country is a production country.
type Country struct {
	ISO  string `json:"iso_3166_1"`
	Name string `json:"name"`
}

// CastMember is a single cast entry.
type CastMember struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// CrewMember is a single crew entry.
type CrewMember struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// Credits wraps cast and crew arrays.
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// Movie is the response from GET /movie/{id}.
type Movie struct {
	ID                  int       `json:"id"`
	IMDbID              string    `json:"imdb_id"`
	Title               string    `json:"title"`
	Overview            string    `json:"overview"`
	ReleaseDate         string    `json:"release_date"`
	Runtime             int       `json:"runtime"`
	VoteAverage         float64   `json:"vote_average"`
	VoteCount           int       `json:"vote_count"`
	Genres              []Genre   `json:"genres"`
	PosterPath          string    `json:"poster_path"`
	OriginalLanguage    string    `json:"original_language"`
	ProductionCountries []Country `json:"production_countries"`
}

// TV is the response from GET /tv/{id}.
type TV struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Overview         string   `json:"overview"`
	FirstAirDate     string   `json:"first_air_date"`
	EpisodeRunTime   []int    `json:"episode_run_time"`
	NumberOfSeasons  int      `json:"number_of_seasons"`
	VoteAverage      float64  `json:"vote_average"`
	VoteCount        int      `json:"vote_count"`
	Genres           []Genre  `json:"genres"`
	PosterPath       string   `json:"poster_path"`
	OriginalLanguage string   `json:"original_language"`
	OriginCountry    []string `json:"origin_country"`
}

// Episode is the response from GET /tv/{id}/season/{n}/episode/{n}.
type Episode struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	AirDate       string  `json:"air_date"`
	EpisodeNumber int     `json:"episode_number"`
	SeasonNumber  int     `json:"season_number"`
	VoteAverage   float64 `json:"vote_average"`
	Runtime       int     `json:"runtime"`
}

// Season is the response from GET /tv/{id}/season/{n}.
type Season struct {
	ID           int       `json:"id"`
	SeasonNumber int       `json:"season_number"`
	Episodes     []Episode `json:"episodes"`
}

// ExternalIDs is the response from GET /{type}/{id}/external_ids.
type ExternalIDs struct {
	IMDbID string `json:"imdb_id"`
}

// FindHit is one entry of a find-by-external-id response.
type FindHit struct {
	ID int `json:"id"`
}

// FindResult is the response from GET /find/{external_id}.
type FindResult struct {
	MovieResults []FindHit `json:"movie_results"`
	TVResults    []FindHit `json:"tv_results"`
}

// SearchHit is one result from a search, discover, trending or recommendations list.
type SearchHit struct {
	ID           int     `json:"id"`
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	MediaType    string  `json:"media_type,omitempty"`
	GenreIDs     []int   `json:"genre_ids"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
}

// DisplayTitle returns the title for movies and the name for tv.
func (h SearchHit) DisplayTitle(mediaType string) string {
	if mediaType == MediaTV {
		return h.Name
	}
	return h.Title
}

// Date returns the release date for movies and first air date for tv.
func (h SearchHit) Date(mediaType string) string {
	if mediaType == MediaTV {
		return h.FirstAirDate
	}
	return h.ReleaseDate
}

// SearchPage is a paginated list of hits.
type SearchPage struct {
	Page         int         `json:"page"`
	Results      []SearchHit `json:"results"`
	TotalResults int         `json:"total_results"`
	TotalPages   int         `json:"total_pages"`
}

// Person is one result of GET /search/person.
type Person struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Popularity float64 `json:"popularity"`
}

// PersonPage is the response from GET /search/person.
type PersonPage struct {
	Page         int      `json:"page"`
	Results      []Person `json:"results"`
	TotalResults int      `json:"total_results"`
}

// CreditWork is one entry of a person's combined credits.
type CreditWork struct {
	SearchHit
	Character  string `json:"character"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// CombinedCredits is the response from GET /person/{id}/combined_credits.
type CombinedCredits struct {
	Cast []CreditWork `json:"cast"`
	Crew []CreditWork `json:"crew"`
}

// GenreList is the response from GET /genre/{type}/list.
type GenreList struct {
	Genres []Genre `json:"genres"`
}

// Decode unmarshals an upstream payload. Malformed payloads are reported
// as upstream errors.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Upstream(http.StatusBadGateway, "TMDB returned an unexpected payload", err)
	}
	return nil
}
