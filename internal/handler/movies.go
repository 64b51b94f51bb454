package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reelbridge/reelbridge/internal/auth"
	"github.com/reelbridge/reelbridge/internal/compat"
	"github.com/reelbridge/reelbridge/internal/handler/dto"
	"github.com/reelbridge/reelbridge/internal/respond"
	"github.com/reelbridge/reelbridge/internal/service"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

// legacySearchTypes are the type filters older clients send.
var legacySearchTypes = []string{"movie", "series", "episode", "all"}

// MoviesHandler serves /movies: the legacy OMDb-shape endpoints and the
// modern proxied ones.
type MoviesHandler struct {
	compat  *compat.Service
	tracker ActivityTracker
	logger  *slog.Logger
	mediaRoutes
}

// NewMoviesHandler creates a new MoviesHandler. tracker may be nil.
func NewMoviesHandler(c *compat.Service, media *service.MediaService, tracker ActivityTracker, logger *slog.Logger) *MoviesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MoviesHandler{
		compat:      c,
		tracker:     activityOrNoop(tracker),
		logger:      logger,
		mediaRoutes: mediaRoutes{media: media, mediaType: tmdb.MediaMovie, logger: logger},
	}
}

// Routes registers the /movies endpoints on r.
func (h *MoviesHandler) Routes(r chi.Router) {
	r.Get("/search", h.Search)
	r.Get("/details/{id}", h.Details)
	r.Get("/season/{id}/{season}", h.Season)
	r.Get("/episode/{id}/{season}/{episode}", h.Episode)
	r.Post("/batch-details", h.BatchDetails)

	r.Get("/popular", h.list("popular"))
	r.Get("/top-rated", h.list("top-rated"))
	r.Get("/now-playing", h.list("now-playing"))
	r.Get("/upcoming", h.list("upcoming"))

	r.Get("/{id}", h.detail("", false))
	r.Get("/{id}/credits", h.detail("credits", false))
	r.Get("/{id}/videos", h.detail("videos", false))
	r.Get("/{id}/images", h.detail("images", false))
	r.Get("/{id}/recommendations", h.detail("recommendations", true))
	r.Get("/{id}/watch-providers", h.detail("watch-providers", false))
	r.Get("/{id}/reviews", h.detail("reviews", true))
}

// Search handles GET /movies/search?q&type&page.
func (h *MoviesHandler) Search(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	q := c.Query("q", 1, maxQueryLength)
	typ := c.OneOf("type", legacySearchTypes...)
	page := c.Page()
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if typ == "all" {
		typ = ""
	}

	h.tracker.TrackSearch(r.Context(), q, auth.UserIDFromContext(r.Context()))

	data, err := h.compat.Search(r.Context(), q, typ, page)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, data)
}

// Details handles GET /movies/details/{id} for movies and series alike.
func (h *MoviesHandler) Details(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	id := c.Path("id", 1, maxLegacyIDLength)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	details, err := h.compat.Details(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	uid := auth.UserIDFromContext(r.Context())
	if details.Ref.MediaType == tmdb.MediaTV {
		h.tracker.TrackTVView(r.Context(), details.Ref.NativeID, details.Record.Title, uid)
	} else {
		h.tracker.TrackMovieView(r.Context(), details.Ref.NativeID, details.Record.Title, uid)
	}
	respond.OK(w, details.Record)
}

// Season handles GET /movies/season/{id}/{season}.
func (h *MoviesHandler) Season(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	id := c.Path("id", 1, maxLegacyIDLength)
	season := c.PathInt("season", 0)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	data, err := h.compat.Season(r.Context(), id, season)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, data)
}

// Episode handles GET /movies/episode/{id}/{season}/{episode}.
func (h *MoviesHandler) Episode(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	id := c.Path("id", 1, maxLegacyIDLength)
	season := c.PathInt("season", 0)
	episode := c.PathInt("episode", 1)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	data, err := h.compat.Episode(r.Context(), id, season, episode)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, data)
}

// BatchDetails handles POST /movies/batch-details.
func (h *MoviesHandler) BatchDetails(w http.ResponseWriter, r *http.Request) {
	var req dto.BatchDetailsRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	c := check(r)
	switch n := len(req.IMDbIDs); {
	case n == 0:
		c.addf("imdbIDs must contain at least 1 item")
	case n > compat.MaxBatchSize:
		c.addf("imdbIDs must contain at most %d items", compat.MaxBatchSize)
	}
	for i, id := range req.IMDbIDs {
		req.IMDbIDs[i] = strings.TrimSpace(id)
		if req.IMDbIDs[i] == "" {
			c.addf("imdbIDs[%d] must not be empty", i)
		}
	}
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	results, err := h.compat.BatchDetails(r.Context(), req.IMDbIDs)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, dto.BatchDetailsResponse{Results: results})
}
