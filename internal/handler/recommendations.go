package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reelbridge/reelbridge/internal/compat"
	"github.com/reelbridge/reelbridge/internal/handler/dto"
	"github.com/reelbridge/reelbridge/internal/respond"
	"github.com/reelbridge/reelbridge/internal/service"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

// Recommender is the external content-based recommender. *service.MLClient
// implements it.
type Recommender interface {
	Recommend(ctx context.Context, req service.MLRequest) (*service.MLResponse, error)
}

// RecommendationsHandler serves /recommendations.
type RecommendationsHandler struct {
	media  *service.MediaService
	compat *compat.Service
	ml     Recommender
	logger *slog.Logger
}

// NewRecommendationsHandler creates a new RecommendationsHandler.
func NewRecommendationsHandler(media *service.MediaService, c *compat.Service, ml Recommender, logger *slog.Logger) *RecommendationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecommendationsHandler{media: media, compat: c, ml: ml, logger: logger}
}

// Routes registers the /recommendations endpoints on r.
func (h *RecommendationsHandler) Routes(r chi.Router) {
	r.Post("/", h.Recommend)
	r.Post("/ml", h.ML)
}

// Recommend handles POST /recommendations with either
// {media_type, tmdb_id, page} or {title, top_n}.
func (h *RecommendationsHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req dto.RecommendationRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	c := check(r)
	if req.Title != nil {
		title := c.text("title", *req.Title, 1, maxQueryLength)
		topN := topNOrDefault(c, req.TopN)
		if err := c.Err(); err != nil {
			respond.Error(w, r, h.logger, err)
			return
		}

		recs, err := h.compat.LegacyRecommendations(r.Context(), title, topN)
		if err != nil {
			respond.Error(w, r, h.logger, err)
			return
		}
		respond.OK(w, dto.LegacyRecommendationsResponse{Recommendations: recs})
		return
	}

	if req.MediaType != tmdb.MediaMovie && req.MediaType != tmdb.MediaTV {
		c.addf("media_type must be one of [movie, tv]")
	}
	id := 0
	switch {
	case req.TMDBID == nil:
		c.addf("tmdb_id is required")
	case *req.TMDBID < 1:
		c.addf("tmdb_id must be greater than or equal to 1")
	default:
		id = *req.TMDBID
	}
	page := 1
	if req.Page != nil {
		if *req.Page < 1 {
			c.addf("page must be greater than or equal to 1")
		}
		page = *req.Page
	}
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	res, err := h.media.Recommendations(r.Context(), req.MediaType, id, page)
	writeResult(w, r, h.logger, res, err)
}

// ML handles POST /recommendations/ml. Recommender failures answer 503.
func (h *RecommendationsHandler) ML(w http.ResponseWriter, r *http.Request) {
	var req dto.MLRecommendationRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	c := check(r)
	switch n := len(req.Titles); {
	case n == 0:
		c.addf("titles must contain at least 1 item")
	case n > service.MaxMLTitles:
		c.addf("titles must contain at most %d items", service.MaxMLTitles)
	}
	for i, t := range req.Titles {
		req.Titles[i] = strings.TrimSpace(t)
		if req.Titles[i] == "" {
			c.addf("titles[%d] must not be empty", i)
		}
	}
	topN := topNOrDefault(c, req.TopN)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	out, err := h.ml.Recommend(r.Context(), service.MLRequest{Titles: req.Titles, TopN: topN})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, out)
}

func topNOrDefault(c *checker, topN *int) int {
	if topN == nil {
		return service.DefaultTopN
	}
	if *topN < 1 || *topN > service.MaxTopN {
		c.addf("top_n must be between 1 and %d", service.MaxTopN)
	}
	return *topN
}
