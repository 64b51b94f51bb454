package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reelbridge/reelbridge/internal/handler/dto"
	"github.com/reelbridge/reelbridge/internal/respond"
	"github.com/reelbridge/reelbridge/internal/service"
)

// TrendingHandler serves /trending.
type TrendingHandler struct {
	media  *service.MediaService
	logger *slog.Logger
}

// NewTrendingHandler creates a new TrendingHandler.
func NewTrendingHandler(media *service.MediaService, logger *slog.Logger) *TrendingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrendingHandler{media: media, logger: logger}
}

// Routes registers the /trending endpoints on r.
func (h *TrendingHandler) Routes(r chi.Router) {
	r.Get("/search/keywords", h.Keywords)
	r.Get("/{type}/{window}", h.Trending)
}

// Keywords handles GET /trending/search/keywords. It never fails.
func (h *TrendingHandler) Keywords(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, dto.KeywordsResponse{Keywords: h.media.TrendingKeywords(r.Context())})
}

// Trending handles GET /trending/{type}/{window}.
func (h *TrendingHandler) Trending(w http.ResponseWriter, r *http.Request) {
	c := check(r)
	typ := c.PathOneOf("type", service.TrendingTypes...)
	window := c.PathOneOf("window", service.TrendingWindows...)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	res, err := h.media.Trending(r.Context(), typ, window)
	writeResult(w, r, h.logger, res, err)
}
