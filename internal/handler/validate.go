package handler

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/reelbridge/reelbridge/internal/apperr"
)

// Input limits shared by the endpoints.
const (
	maxQueryLength    = 200
	maxLegacyIDLength = 64
	maxGenreLength    = 50
)

// checker collects every validation problem of one request before
// anything is fetched.
type checker struct {
	r        *http.Request
	problems []string
}

func check(r *http.Request) *checker {
	return &checker{r: r}
}

func (c *checker) addf(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

// Err returns VALIDATION_ERROR with the collected problems, or nil.
func (c *checker) Err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return apperr.Validation("Validation error", c.problems...)
}

// Problems adds problems reported by a model validator.
func (c *checker) Problems(problems []string) {
	c.problems = append(c.problems, problems...)
}

// text validates a trimmed string of length lo..hi.
func (c *checker) text(name, value string, lo, hi int) string {
	value = strings.TrimSpace(value)
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0 && lo > 0:
		c.addf("%s is required", name)
	case n < lo || n > hi:
		c.addf("%s must be between %d and %d characters", name, lo, hi)
	}
	return value
}

// Query validates a required query parameter.
func (c *checker) Query(name string, lo, hi int) string {
	return c.text(name, c.r.URL.Query().Get(name), lo, hi)
}

// Path validates a required path parameter.
func (c *checker) Path(name string, lo, hi int) string {
	return c.text(name, chi.URLParam(c.r, name), lo, hi)
}

// integer parses value as an integer no smaller than lo. Empty values
// yield def.
func (c *checker) integer(name, value string, lo, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		if def < lo {
			c.addf("%s is required", name)
		}
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		c.addf("%s must be an integer", name)
		return def
	}
	if n < lo {
		c.addf("%s must be greater than or equal to %d", name, lo)
		return def
	}
	return n
}

// Page returns ?page, defaulting to 1.
func (c *checker) Page() int {
	return c.integer("page", c.r.URL.Query().Get("page"), 1, 1)
}

// PathInt validates a required integer path parameter.
func (c *checker) PathInt(name string, lo int) int {
	return c.integer(name, chi.URLParam(c.r, name), lo, lo-1)
}

// OneOf validates an optional query parameter against allowed values.
func (c *checker) OneOf(name string, allowed ...string) string {
	value := strings.TrimSpace(c.r.URL.Query().Get(name))
	if value != "" && !slices.Contains(allowed, value) {
		c.addf("%s must be one of [%s]", name, strings.Join(allowed, ", "))
		return ""
	}
	return value
}

// PathOneOf validates a required path parameter against allowed values.
func (c *checker) PathOneOf(name string, allowed ...string) string {
	value := chi.URLParam(c.r, name)
	if !slices.Contains(allowed, value) {
		c.addf("%s must be one of [%s]", name, strings.Join(allowed, ", "))
	}
	return value
}

// Limit returns ?limit, falling back to def for anything unparsable.
func (c *checker) Limit(def int) int {
	n, err := strconv.Atoi(c.r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
