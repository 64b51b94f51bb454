package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reelbridge/reelbridge/internal/auth"
	"github.com/reelbridge/reelbridge/internal/compat"
	"github.com/reelbridge/reelbridge/internal/respond"
	"github.com/reelbridge/reelbridge/internal/service"
)

// SearchHandler serves /search.
type SearchHandler struct {
	media   *service.MediaService
	compat  *compat.Service
	tracker ActivityTracker
	logger  *slog.Logger
}

// NewSearchHandler creates a new SearchHandler. tracker may be nil.
func NewSearchHandler(media *service.MediaService, c *compat.Service, tracker ActivityTracker, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{media: media, compat: c, tracker: activityOrNoop(tracker), logger: logger}
}

// Routes registers the /search endpoints on r.
func (h *SearchHandler) Routes(r chi.Router) {
	r.Get("/multi", h.native("multi", true))
	r.Get("/movie", h.native("movie", true))
	r.Get("/tv", h.native("tv", true))
	r.Get("/person", h.native("person", false))
	r.Get("/by-person", h.ByPerson)
	r.Get("/by-genre", h.ByGenre)
}

// native serves GET /search/{kind}?query&page. Title searches are tracked.
func (h *SearchHandler) native(kind string, tracked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := check(r)
		query := c.Query("query", 1, maxQueryLength)
		page := c.Page()
		if err := c.Err(); err != nil {
			respond.Error(w, r, h.logger, err)
			return
		}

		if tracked {
			h.tracker.TrackSearch(r.Context(), query, auth.UserIDFromContext(r.Context()))
		}
		res, err := h.media.Search(r.Context(), kind, query, page)
		writeResult(w, r, h.logger, res, err)
	}
}

// ByPerson handles GET /search/by-person?query&page and returns the
// significant works of the best matching people.
func (h *SearchHandler) ByPerson(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	query := c.Query("query", 1, maxQueryLength)
	page := c.Page()
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	data, err := h.compat.SearchPeople(r.Context(), query, page)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, data)
}

// ByGenre handles GET /search/by-genre?genre&type&page.
func (h *SearchHandler) ByGenre(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	genre := c.Query("genre", 1, maxGenreLength)
	typ := c.OneOf("type", compat.TypeMovie, compat.TypeSeries)
	page := c.Page()
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	data, err := h.compat.SearchByGenre(r.Context(), genre, typ, page)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, data)
}
