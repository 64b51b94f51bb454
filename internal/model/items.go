package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Watchlist limits.
const (
	MaxWatchlistNameLength        = 100
	MaxWatchlistDescriptionLength = 500
	MaxWatchlists                 = 200
)

// TMDBItem references a movie or show by its native id.
type TMDBItem struct {
	TMDBID    int            `json:"tmdb_id"`
	MediaType string         `json:"media_type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Validate returns a list of problems.
func (i TMDBItem) Validate() []string {
	var problems []string
	if i.TMDBID < 1 {
		problems = append(problems, "tmdb_id must be an integer greater than or equal to 1")
	}
	if i.MediaType != MediaMovie && i.MediaType != MediaTV {
		problems = append(problems, "media_type must be one of [movie, tv]")
	}
	return problems
}

// Fields returns the item as document fields.
func (i TMDBItem) Fields() map[string]any {
	out := map[string]any{
		"tmdb_id":    i.TMDBID,
		"media_type": i.MediaType,
	}
	if i.Metadata != nil {
		out["metadata"] = i.Metadata
	}
	return out
}

// LegacyMovie is the flat movie object older clients send. Unknown fields
// are kept.
type LegacyMovie map[string]any

var legacyStringFields = []string{"Title", "Year", "Type", "Poster"}

// Validate returns a list of problems.
func (m LegacyMovie) Validate() []string {
	var problems []string
	if m.IMDbID() == "" {
		problems = append(problems, "movie.imdbID is required")
	} else if _, ok := m["imdbID"].(string); !ok {
		problems = append(problems, "movie.imdbID must be a string")
	}
	for _, field := range legacyStringFields {
		v, present := m[field]
		if !present || v == nil {
			continue
		}
		if _, ok := v.(string); !ok {
			problems = append(problems, fmt.Sprintf("movie.%s must be a string", field))
		}
	}
	return problems
}

// IMDbID returns the trimmed legacy id.
func (m LegacyMovie) IMDbID() string {
	return strings.TrimSpace(AsString(m["imdbID"]))
}

// StringOrNil returns a non-empty string field or nil.
func (m LegacyMovie) StringOrNil(field string) any {
	s, _ := m[field].(string)
	if s == "" {
		return nil
	}
	return s
}

// WatchlistCreate is the body of a watchlist creation.
type WatchlistCreate struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Validate trims the fields and returns a list of problems.
func (w *WatchlistCreate) Validate() []string {
	var problems []string
	w.Name = strings.TrimSpace(w.Name)
	if problem := ValidateWatchlistName(w.Name); problem != "" {
		problems = append(problems, problem)
	}
	if w.Description != nil {
		trimmed := strings.TrimSpace(*w.Description)
		w.Description = &trimmed
		if len([]rune(trimmed)) > MaxWatchlistDescriptionLength {
			problems = append(problems, "description must be at most 500 characters")
		}
	}
	return problems
}

// ValidateWatchlistName returns a problem or "".
func ValidateWatchlistName(name string) string {
	n := len([]rune(strings.TrimSpace(name)))
	if n < 1 || n > MaxWatchlistNameLength {
		return "name must be between 1 and 100 characters"
	}
	return ""
}

// AsString renders scalar JSON values the way they compare as strings:
// 550 and "550" are equal, 550.0 renders as "550".
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// ItemMap returns v as an object, or nil.
func ItemMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// MatchesIMDbID reports whether a stored item carries the legacy id.
func MatchesIMDbID(item any, imdbID string) bool {
	m := ItemMap(item)
	return m != nil && m["imdbID"] != nil && AsString(m["imdbID"]) == imdbID
}

// MatchesTMDBID reports whether a stored item carries the native id.
func MatchesTMDBID(item any, tmdbID string) bool {
	m := ItemMap(item)
	return m != nil && m["tmdb_id"] != nil && AsString(m["tmdb_id"]) == tmdbID
}

// MatchesTMDBItem reports whether a stored item is the same title.
func MatchesTMDBItem(item any, tmdbID int, mediaType string) bool {
	m := ItemMap(item)
	return m != nil &&
		AsString(m["tmdb_id"]) == strconv.Itoa(tmdbID) &&
		AsString(m["media_type"]) == mediaType
}

// FirstArray returns the first field of doc holding an array. Later names
// are legacy spellings.
func FirstArray(doc map[string]any, fields ...string) []any {
	for _, f := range fields {
		if arr, ok := doc[f].([]any); ok {
			return arr
		}
	}
	return []any{}
}

// NormalizeItems returns items in canonical shape: every object carries a
// boolean watched flag. Non-object elements are dropped.
func NormalizeItems(items []any) []any {
	out := make([]any, 0, len(items))
	for _, el := range items {
		m := ItemMap(el)
		if m == nil {
			continue
		}
		if _, ok := m["watched"].(bool); !ok {
			m["watched"] = false
		}
		out = append(out, m)
	}
	return out
}
