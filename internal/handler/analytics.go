package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelbridge/reelbridge/internal/analytics"
	"github.com/reelbridge/reelbridge/internal/handler/dto"
	"github.com/reelbridge/reelbridge/internal/respond"
)

// AnalyticsReader reads the aggregated request metrics. *analytics.Tracker
// implements it.
type AnalyticsReader interface {
	Overview(ctx context.Context) (analytics.Overview, error)
	PopularSearches(ctx context.Context, limit int) ([]analytics.PopularSearch, error)
	PopularContent(ctx context.Context, limit int) (analytics.PopularContent, error)
	UserEngagement(ctx context.Context) (analytics.Engagement, error)
	Performance(ctx context.Context) (map[string]analytics.EndpointPerformance, error)
}

// AnalyticsHandler handles analytics API requests.
type AnalyticsHandler struct {
	reader AnalyticsReader
	logger *slog.Logger
	now    func() time.Time
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(reader AnalyticsReader, logger *slog.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandler{
		reader: reader,
		logger: logger.With("component", "handler.analytics"),
		now:    time.Now,
	}
}

// Routes registers the /analytics endpoints on r.
func (h *AnalyticsHandler) Routes(r chi.Router) {
	r.Get("/overview", h.Overview)
	r.Get("/popular-searches", h.PopularSearches)
	r.Get("/popular-content", h.PopularContent)
	r.Get("/user-engagement", h.UserEngagement)
	r.Get("/performance", h.Performance)
}

func (h *AnalyticsHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

// Overview handles GET /analytics/overview.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.reader.Overview(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	engagement, err := h.reader.UserEngagement(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, dto.OverviewResponse{Overview: overview, Engagement: engagement, Timestamp: h.timestamp()})
}

// PopularSearches handles GET /analytics/popular-searches?limit.
func (h *AnalyticsHandler) PopularSearches(w http.ResponseWriter, r *http.Request) {
	searches, err := h.reader.PopularSearches(r.Context(), check(r).Limit(analytics.DefaultTopLimit))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, dto.PopularSearchesResponse{Searches: searches, Count: len(searches)})
}

// PopularContent handles GET /analytics/popular-content?limit.
func (h *AnalyticsHandler) PopularContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.reader.PopularContent(r.Context(), check(r).Limit(analytics.DefaultTopLimit))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, content)
}

// UserEngagement handles GET /analytics/user-engagement.
func (h *AnalyticsHandler) UserEngagement(w http.ResponseWriter, r *http.Request) {
	engagement, err := h.reader.UserEngagement(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, engagement)
}

// Performance handles GET /analytics/performance.
func (h *AnalyticsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.reader.Performance(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, dto.PerformanceResponse{Endpoints: endpoints, Timestamp: h.timestamp()})
}
