package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reelbridge/reelbridge/internal/respond"
	"github.com/reelbridge/reelbridge/internal/service"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

// TVHandler serves /tv.
type TVHandler struct {
	media  *service.MediaService
	logger *slog.Logger
	mediaRoutes
}

// NewTVHandler creates a new TVHandler.
func NewTVHandler(media *service.MediaService, logger *slog.Logger) *TVHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TVHandler{
		media:       media,
		logger:      logger,
		mediaRoutes: mediaRoutes{media: media, mediaType: tmdb.MediaTV, logger: logger},
	}
}

// Routes registers the /tv endpoints on r.
func (h *TVHandler) Routes(r chi.Router) {
	r.Get("/popular", h.list("popular"))
	r.Get("/top-rated", h.list("top-rated"))
	r.Get("/airing-today", h.list("airing-today"))
	r.Get("/on-the-air", h.list("on-the-air"))

	r.Get("/{id}", h.detail("", false))
	r.Get("/{id}/season/{season}", h.Season)
	r.Get("/{id}/season/{season}/videos", h.SeasonVideos)
	r.Get("/{id}/season/{season}/episode/{episode}", h.Episode)
	r.Get("/{id}/credits", h.detail("credits", false))
	r.Get("/{id}/videos", h.detail("videos", false))
	r.Get("/{id}/images", h.detail("images", false))
	r.Get("/{id}/recommendations", h.detail("recommendations", true))
	r.Get("/{id}/watch-providers", h.detail("watch-providers", false))
	r.Get("/{id}/reviews", h.detail("reviews", true))
}

// Season handles GET /tv/{id}/season/{season}.
func (h *TVHandler) Season(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	id := c.PathInt("id", 1)
	season := c.PathInt("season", 0)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.media.Season(r.Context(), id, season)
	writeResult(w, r, h.logger, res, err)
}

// SeasonVideos handles GET /tv/{id}/season/{season}/videos.
func (h *TVHandler) SeasonVideos(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	id := c.PathInt("id", 1)
	season := c.PathInt("season", 0)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.media.SeasonVideos(r.Context(), id, season)
	writeResult(w, r, h.logger, res, err)
}

// Episode handles GET /tv/{id}/season/{season}/episode/{episode}.
func (h *TVHandler) Episode(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	id := c.PathInt("id", 1)
	season := c.PathInt("season", 0)
	episode := c.PathInt("episode", 1)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.media.Episode(r.Context(), id, season, episode)
	writeResult(w, r, h.logger, res, err)
}
