package compat

import (
	"net/url"
	"strconv"
	"strings"
)

// genreKeywords maps search words to upstream genre ids.
var genreKeywords = map[string]int{
	"action":          28,
	"adventure":       12,
	"animation":       16,
	"comedy":          35,
	"crime":           80,
	"documentary":     99,
	"drama":           18,
	"family":          10751,
	"fantasy":         14,
	"history":         36,
	"horror":          27,
	"music":           10402,
	"mystery":         9648,
	"romance":         10749,
	"science fiction": 878,
	"sci-fi":          878,
	"sci fi":          878,
	"scifi":           878,
	"thriller":        53,
	"war":             10752,
	"western":         37,

	// tv only
	"action & adventure": 10759,
	"kids":               10762,
	"news":               10763,
	"reality":            10764,
	"soap":               10766,
	"talk":               10767,
	"war & politics":     10768,
}

// specialKeyword narrows discover queries beyond a plain genre.
type specialKeyword struct {
	keyword       int
	genre         int
	originCountry string
}

var specialKeywords = map[string]specialKeyword{
	"anime":     {keyword: 210, genre: 16},
	"bollywood": {keyword: 1562, originCountry: "IN"},
	"hollywood": {originCountry: "US"},
	"korean":    {originCountry: "KR"},
	"japanese":  {originCountry: "JP"},
}

// DiscoverFilter is the set of discover parameters for a genre word.
type DiscoverFilter struct {
	Genres        int
	Keywords      int
	OriginCountry string
}

// LookupGenre maps a genre word to discover filters. ok is false for
// unknown words.
func LookupGenre(word string) (DiscoverFilter, bool) {
	word = strings.ToLower(strings.TrimSpace(word))
	if sk, ok := specialKeywords[word]; ok {
		return DiscoverFilter{Genres: sk.genre, Keywords: sk.keyword, OriginCountry: sk.originCountry}, true
	}
	if id, ok := genreKeywords[word]; ok {
		return DiscoverFilter{Genres: id}, true
	}
	return DiscoverFilter{}, false
}

// Params renders the filter as discover query parameters.
func (f DiscoverFilter) Params(page int) url.Values {
	params := url.Values{
		"sort_by": {"popularity.desc"},
		"page":    {strconv.Itoa(page)},
	}
	if f.Genres != 0 {
		params.Set("with_genres", strconv.Itoa(f.Genres))
	}
	if f.Keywords != 0 {
		params.Set("with_keywords", strconv.Itoa(f.Keywords))
	}
	if f.OriginCountry != "" {
		params.Set("with_origin_country", f.OriginCountry)
	}
	return params
}
