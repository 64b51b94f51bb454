package service

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/model"
	"github.com/reelbridge/reelbridge/internal/store"
)

const (
	msgWatchlistExists   = "Watchlist already exists"
	msgWatchlistNotFound = "Watchlist not found"
	msgItemNotFound      = "Item not found in watchlist"
)

// WatchlistService manages users/<uid>/watchlists/<name>.
type WatchlistService struct {
	userBase
}

// NewWatchlistService creates a new WatchlistService.
func NewWatchlistService(opts Options) *WatchlistService {
	return &WatchlistService{userBase: newUserBase(opts)}
}

// List returns up to 200 watchlists, newest first.
func (s *WatchlistService) List(ctx context.Context, uid string) ([]store.Document, error) {
	entries, err := s.store.List(ctx, store.WatchlistsCollection(uid), store.ListOptions{Limit: model.MaxWatchlists})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]store.Document, 0, len(entries))
	for _, e := range entries {
		w := store.Document{"id": e.ID, "name": e.ID}
		for k, v := range canonicalWatchlist(e.Data) {
			w[k] = v
		}
		out = append(out, w)
	}

	// Missing createdAt sorts last.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].String(model.FieldCreatedAt) > out[j].String(model.FieldCreatedAt)
	})
	return out, nil
}

// Create makes an empty watchlist. CONFLICT when the name is taken.
func (s *WatchlistService) Create(ctx context.Context, uid string, in model.WatchlistCreate) (store.Document, error) {
	now := s.timestamp()
	doc := store.Document{
		"name":               in.Name,
		model.FieldMovies:    []any{},
		model.FieldCreatedAt: now,
		model.FieldUpdatedAt: now,
	}
	if in.Description != nil {
		doc["description"] = *in.Description
	}

	err := s.store.Create(ctx, store.WatchlistRef(uid, in.Name), doc)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, apperr.Conflict(msgWatchlistExists)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := store.Document{"id": in.Name}
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

// Get returns one watchlist. NOT_FOUND when missing.
func (s *WatchlistService) Get(ctx context.Context, uid, name string) (store.Document, error) {
	doc, err := s.load(ctx, uid, name)
	if err != nil {
		return nil, err
	}
	out := store.Document{"id": name}
	for k, v := range canonicalWatchlist(doc) {
		out[k] = v
	}
	return out, nil
}

// Delete removes a watchlist. Deleting a missing watchlist succeeds.
func (s *WatchlistService) Delete(ctx context.Context, uid, name string) (RemovedResult, error) {
	if err := s.store.Delete(ctx, store.WatchlistRef(uid, name)); err != nil {
		return RemovedResult{}, apperr.Internal(err)
	}
	return RemovedResult{Removed: true}, nil
}

// AddItem appends a native-id item unless the same (tmdb_id, media_type)
// is already on the list.
func (s *WatchlistService) AddItem(ctx context.Context, uid, name string, item model.TMDBItem) (AddedResult, error) {
	entry := item.Fields()
	return s.addItem(ctx, uid, name, entry, func(existing any) bool {
		return model.MatchesTMDBItem(existing, item.TMDBID, item.MediaType)
	})
}

// AddMovieLegacy appends a flat movie object unless its imdbID is already
// on the list.
func (s *WatchlistService) AddMovieLegacy(ctx context.Context, uid, name string, movie model.LegacyMovie) (AddedResult, error) {
	imdbID := movie.IMDbID()
	entry := map[string]any{
		"imdbID":   imdbID,
		"title":    movie.StringOrNil("Title"),
		"poster":   movie.StringOrNil("Poster"),
		"metadata": map[string]any(movie),
	}
	return s.addItem(ctx, uid, name, entry, func(existing any) bool {
		return model.MatchesIMDbID(existing, imdbID)
	})
}

func (s *WatchlistService) addItem(ctx context.Context, uid, name string, entry map[string]any, same func(any) bool) (AddedResult, error) {
	ref := store.WatchlistRef(uid, name)
	unlock := s.locks.Lock(ref.String())
	defer unlock()

	doc, err := s.load(ctx, uid, name)
	if err != nil {
		return AddedResult{}, err
	}

	items := watchlistItems(doc)
	for _, existing := range items {
		if same(existing) {
			return AddedResult{Added: false}, nil
		}
	}

	now := s.timestamp()
	entry["watched"] = false
	entry["addedAt"] = now
	entry["itemId"] = s.newID()

	if err := s.writeItems(ctx, ref, append(items, entry), now); err != nil {
		return AddedResult{}, err
	}
	s.emit(ctx, EventWatchlistAdd, uid, eventData(name, entry))
	return AddedResult{Added: true}, nil
}

// RemoveItem drops every item whose tmdb_id equals tmdbID.
func (s *WatchlistService) RemoveItem(ctx context.Context, uid, name string, tmdbID int) (RemovedResult, error) {
	id := strconv.Itoa(tmdbID)
	return s.remove(ctx, uid, name, func(item any) bool { return model.MatchesTMDBID(item, id) },
		map[string]any{"watchlist": name, "tmdb_id": tmdbID})
}

// RemoveMovieLegacy drops every item whose imdbID equals imdbID.
func (s *WatchlistService) RemoveMovieLegacy(ctx context.Context, uid, name, imdbID string) (RemovedResult, error) {
	return s.remove(ctx, uid, name, func(item any) bool { return model.MatchesIMDbID(item, imdbID) },
		map[string]any{"watchlist": name, "imdbID": imdbID})
}

func (s *WatchlistService) remove(ctx context.Context, uid, name string, match func(any) bool, event map[string]any) (RemovedResult, error) {
	ref := store.WatchlistRef(uid, name)
	unlock := s.locks.Lock(ref.String())
	defer unlock()

	doc, err := s.load(ctx, uid, name)
	if err != nil {
		return RemovedResult{}, err
	}

	items := watchlistItems(doc)
	next := make([]any, 0, len(items))
	for _, item := range items {
		if !match(item) {
			next = append(next, item)
		}
	}

	if err := s.writeItems(ctx, ref, next, s.timestamp()); err != nil {
		return RemovedResult{}, err
	}
	if len(next) != len(items) {
		s.emit(ctx, EventWatchlistRemove, uid, event)
	}
	return RemovedResult{Removed: true}, nil
}

// ToggleWatched flips the watched flag of the item with tmdbID.
func (s *WatchlistService) ToggleWatched(ctx context.Context, uid, name string, tmdbID int) (WatchedResult, error) {
	id := strconv.Itoa(tmdbID)
	return s.toggle(ctx, uid, name, func(item any) bool { return model.MatchesTMDBID(item, id) })
}

// ToggleWatchedLegacy flips the watched flag of the item with imdbID.
func (s *WatchlistService) ToggleWatchedLegacy(ctx context.Context, uid, name, imdbID string) (WatchedResult, error) {
	return s.toggle(ctx, uid, name, func(item any) bool { return model.MatchesIMDbID(item, imdbID) })
}

func (s *WatchlistService) toggle(ctx context.Context, uid, name string, match func(any) bool) (WatchedResult, error) {
	ref := store.WatchlistRef(uid, name)
	unlock := s.locks.Lock(ref.String())
	defer unlock()

	doc, err := s.load(ctx, uid, name)
	if err != nil {
		return WatchedResult{}, err
	}

	items := watchlistItems(doc)
	idx := -1
	for i, item := range items {
		if match(item) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return WatchedResult{}, apperr.NotFound(msgItemNotFound)
	}

	now := s.timestamp()
	item := model.ItemMap(items[idx])
	watched := !(item["watched"] == true)
	item["watched"] = watched
	if watched {
		item["watchedAt"] = now
	} else {
		item["watchedAt"] = nil
	}

	if err := s.writeItems(ctx, ref, items, now); err != nil {
		return WatchedResult{}, err
	}
	return WatchedResult{Watched: watched}, nil
}

func (s *WatchlistService) load(ctx context.Context, uid, name string) (store.Document, error) {
	doc, err := s.store.Get(ctx, store.WatchlistRef(uid, name))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgWatchlistNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return doc, nil
}

func (s *WatchlistService) writeItems(ctx context.Context, ref store.Ref, items []any, now string) error {
	err := s.store.Set(ctx, ref, store.Document{
		model.FieldMovies:    items,
		model.FieldUpdatedAt: now,
	}, true)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// watchlistItems reads the list under its canonical or legacy field.
func watchlistItems(doc store.Document) []any {
	return model.NormalizeItems(model.FirstArray(doc, model.FieldMovies, model.FieldItemsLegacy))
}

// canonicalWatchlist returns doc with items under the canonical field only.
func canonicalWatchlist(doc store.Document) store.Document {
	out := make(store.Document, len(doc)+1)
	for k, v := range doc {
		if k == model.FieldItemsLegacy {
			continue
		}
		out[k] = v
	}
	out[model.FieldMovies] = watchlistItems(doc)
	return out
}

func eventData(name string, entry map[string]any) map[string]any {
	data := map[string]any{"watchlist": name}
	for _, k := range []string{"tmdb_id", "media_type", "imdbID"} {
		if v, ok := entry[k]; ok {
			data[k] = v
		}
	}
	return data
}
