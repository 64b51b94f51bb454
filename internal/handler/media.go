package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/reelbridge/reelbridge/internal/respond"
	"github.com/reelbridge/reelbridge/internal/service"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

// ActivityTracker records searches and title views. *analytics.Tracker
// implements it; every method is best effort.
type ActivityTracker interface {
	TrackSearch(ctx context.Context, query, uid string)
	TrackMovieView(ctx context.Context, id int, title, uid string)
	TrackTVView(ctx context.Context, id int, title, uid string)
}

type noopActivity struct{}

func (noopActivity) TrackSearch(context.Context, string, string)           {}
func (noopActivity) TrackMovieView(context.Context, int, string, string) {}
func (noopActivity) TrackTVView(context.Context, int, string, string)    {}

func activityOrNoop(t ActivityTracker) ActivityTracker {
	if t == nil {
		return noopActivity{}
	}
	return t
}

// mediaRoutes serves the modern-shape endpoints shared by movies and tv.
type mediaRoutes struct {
	media     *service.MediaService
	mediaType string
	logger    *slog.Logger
}

// writeResult answers with a proxied payload and its source.
func writeResult(w http.ResponseWriter, r *http.Request, logger *slog.Logger, res *tmdb.Result, err error) {
	if err != nil {
		respond.Error(w, r, logger, err)
		return
	}
	respond.WithSource(w, res.Data, res.Source)
}

// list serves one named list page.
func (m mediaRoutes) list(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := check(r)
		page := c.Page()
		if err := c.Err(); err != nil {
			respond.Error(w, r, m.logger, err)
			return
		}

		var (
			res *tmdb.Result
			err error
		)
		if m.mediaType == tmdb.MediaTV {
			res, err = m.media.TVList(r.Context(), name, page)
		} else {
			res, err = m.media.MovieList(r.Context(), name, page)
		}
		writeResult(w, r, m.logger, res, err)
	}
}

// detail serves the base record or one of its sub-resources.
func (m mediaRoutes) detail(sub string, paged bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := check(r)
		id := c.PathInt("id", 1)
		page := 1
		if paged {
			page = c.Page()
		}
		if err := c.Err(); err != nil {
			respond.Error(w, r, m.logger, err)
			return
		}

		res, err := m.media.Detail(r.Context(), m.mediaType, id, sub, page)
		writeResult(w, r, m.logger, res, err)
	}
}
