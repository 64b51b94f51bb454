package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/auth"
	"github.com/reelbridge/reelbridge/internal/handler/dto"
	"github.com/reelbridge/reelbridge/internal/model"
	"github.com/reelbridge/reelbridge/internal/respond"
	"github.com/reelbridge/reelbridge/internal/service"
)

// UserHandler serves the authenticated /user sub-API.
type UserHandler struct {
	profiles   *service.ProfileService
	favorites  *service.FavoritesService
	watchlists *service.WatchlistService
	logger     *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(profiles *service.ProfileService, favorites *service.FavoritesService, watchlists *service.WatchlistService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{profiles: profiles, favorites: favorites, watchlists: watchlists, logger: logger}
}

// Routes registers the /user endpoints on r. The caller installs Auth.
func (h *UserHandler) Routes(r chi.Router) {
	r.Get("/profile", h.GetProfile)
	r.Put("/profile", h.UpdateProfile)

	r.Get("/favorites", h.ListFavorites)
	r.Post("/favorites", h.AddFavorite)
	r.Delete("/favorites/{id}", h.RemoveFavorite)

	r.Get("/watchlists", h.ListWatchlists)
	r.Post("/watchlists", h.CreateWatchlist)
	r.Get("/watchlists/{name}", h.GetWatchlist)
	r.Delete("/watchlists/{name}", h.DeleteWatchlist)
	r.Post("/watchlists/{name}/movies", h.AddLegacyMovie)
	r.Patch("/watchlists/{name}/movies/{imdbID}/watched", h.ToggleLegacyWatched)
	r.Delete("/watchlists/{name}/movies/{imdbID}", h.RemoveLegacyMovie)
	r.Post("/watchlists/{name}/items", h.AddItem)
	r.Delete("/watchlists/{name}/items/{tmdb_id}", h.RemoveItem)
	r.Patch("/watchlists/{name}/items/{tmdb_id}/watched", h.ToggleWatched)

	r.Get("/subscriptions", h.GetSubscriptions)
	r.Put("/subscriptions", h.UpdateSubscriptions)
}

// uid returns the authenticated user id, answering 401 when it is missing.
func (h *UserHandler) uid(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := auth.UserIDFromContext(r.Context())
	if uid == "" {
		respond.Error(w, r, h.logger, apperr.Unauthorized("Missing Authorization bearer token"))
		return "", false
	}
	return uid, true
}

// reply writes data or the error.
func (h *UserHandler) reply(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, data)
}

// GetProfile handles GET /user/profile.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	doc, err := h.profiles.Get(r.Context(), uid)
	h.reply(w, r, doc, err)
}

// UpdateProfile handles PUT /user/profile.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	var patch model.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	c := check(r)
	c.Problems(patch.Validate())
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	doc, err := h.profiles.Upsert(r.Context(), uid, patch)
	h.reply(w, r, doc, err)
}

// ListFavorites handles GET /user/favorites.
func (h *UserHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	list, err := h.favorites.List(r.Context(), uid)
	h.reply(w, r, list, err)
}

// AddFavorite handles POST /user/favorites.
func (h *UserHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	var req dto.FavoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	c := check(r)
	if req.Movie != nil {
		c.Problems(req.Movie.Validate())
	} else {
		c.Problems(req.TMDBItem.Validate())
	}
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	var (
		list []any
		err  error
	)
	if req.Movie != nil {
		list, err = h.favorites.AddLegacy(r.Context(), uid, req.Movie)
	} else {
		list, err = h.favorites.Add(r.Context(), uid, req.TMDBItem)
	}
	h.reply(w, r, list, err)
}

// RemoveFavorite handles DELETE /user/favorites/{id}. The id may be a
// legacy identifier or a bare native id.
func (h *UserHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	c := check(r)
	id := c.Path("id", 1, maxLegacyIDLength)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.favorites.Remove(r.Context(), uid, id)
	h.reply(w, r, res, err)
}

// ListWatchlists handles GET /user/watchlists.
func (h *UserHandler) ListWatchlists(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	list, err := h.watchlists.List(r.Context(), uid)
	h.reply(w, r, list, err)
}

// CreateWatchlist handles POST /user/watchlists.
func (h *UserHandler) CreateWatchlist(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	var in model.WatchlistCreate
	if err := decodeJSON(r, &in); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	c := check(r)
	c.Problems(in.Validate())
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	doc, err := h.watchlists.Create(r.Context(), uid, in)
	h.reply(w, r, doc, err)
}

// watchlistName validates the {name} path parameter.
func watchlistName(c *checker) string {
	return c.Path("name", 1, model.MaxWatchlistNameLength)
}

// GetWatchlist handles GET /user/watchlists/{name}.
func (h *UserHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	c := check(r)
	name := watchlistName(c)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	doc, err := h.watchlists.Get(r.Context(), uid, name)
	h.reply(w, r, doc, err)
}

// DeleteWatchlist handles DELETE /user/watchlists/{name}.
func (h *UserHandler) DeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	c := check(r)
	name := watchlistName(c)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.watchlists.Delete(r.Context(), uid, name)
	h.reply(w, r, res, err)
}

// AddLegacyMovie handles POST /user/watchlists/{name}/movies.
func (h *UserHandler) AddLegacyMovie(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	var req dto.LegacyMovieRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	c := check(r)
	name := watchlistName(c)
	if req.Movie == nil {
		c.addf("movie is required")
	} else {
		c.Problems(req.Movie.Validate())
	}
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	res, err := h.watchlists.AddMovieLegacy(r.Context(), uid, name, req.Movie)
	h.reply(w, r, res, err)
}

// ToggleLegacyWatched handles PATCH /user/watchlists/{name}/movies/{imdbID}/watched.
func (h *UserHandler) ToggleLegacyWatched(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	c := check(r)
	name := watchlistName(c)
	imdbID := c.Path("imdbID", 1, maxLegacyIDLength)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.watchlists.ToggleWatchedLegacy(r.Context(), uid, name, imdbID)
	h.reply(w, r, res, err)
}

// RemoveLegacyMovie handles DELETE /user/watchlists/{name}/movies/{imdbID}.
func (h *UserHandler) RemoveLegacyMovie(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	c := check(r)
	name := watchlistName(c)
	imdbID := c.Path("imdbID", 1, maxLegacyIDLength)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.watchlists.RemoveMovieLegacy(r.Context(), uid, name, imdbID)
	h.reply(w, r, res, err)
}

// AddItem handles POST /user/watchlists/{name}/items.
func (h *UserHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	var item model.TMDBItem
	if err := decodeJSON(r, &item); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	c := check(r)
	name := watchlistName(c)
	c.Problems(item.Validate())
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.watchlists.AddItem(r.Context(), uid, name, item)
	h.reply(w, r, res, err)
}

// RemoveItem handles DELETE /user/watchlists/{name}/items/{tmdb_id}.
func (h *UserHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	c := check(r)
	name := watchlistName(c)
	id := c.PathInt("tmdb_id", 1)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.watchlists.RemoveItem(r.Context(), uid, name, id)
	h.reply(w, r, res, err)
}

// ToggleWatched handles PATCH /user/watchlists/{name}/items/{tmdb_id}/watched.
func (h *UserHandler) ToggleWatched(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	c := check(r)
	name := watchlistName(c)
	id := c.PathInt("tmdb_id", 1)
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.watchlists.ToggleWatched(r.Context(), uid, name, id)
	h.reply(w, r, res, err)
}

// GetSubscriptions handles GET /user/subscriptions.
func (h *UserHandler) GetSubscriptions(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	ids, err := h.profiles.Subscriptions(r.Context(), uid)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, dto.SubscriptionsResponse{Subscriptions: ids})
}

// UpdateSubscriptions handles PUT /user/subscriptions.
func (h *UserHandler) UpdateSubscriptions(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uid(w, r)
	if !ok {
		return
	}
	var body dto.SubscriptionsRequest
	if err := decodeJSON(r, &body); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	c := check(r)
	if body.Subscriptions == nil {
		c.addf("subscriptions is required")
	} else {
		c.Problems(model.ValidateSubscriptions(*body.Subscriptions))
	}
	if err := c.Err(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	doc, err := h.profiles.UpdateSubscriptions(r.Context(), uid, *body.Subscriptions)
	h.reply(w, r, doc, err)
}
