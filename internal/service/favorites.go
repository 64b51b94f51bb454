package service

import (
	"context"
	"errors"
	"maps"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/compat"
	"github.com/reelbridge/reelbridge/internal/model"
	"github.com/reelbridge/reelbridge/internal/store"
)

// FavoritesService manages the favorites array on users/<uid>.
type FavoritesService struct {
	userBase
}

// NewFavoritesService creates a new FavoritesService.
func NewFavoritesService(opts Options) *FavoritesService {
	return &FavoritesService{userBase: newUserBase(opts)}
}

// List returns the favorites, or an empty list.
func (s *FavoritesService) List(ctx context.Context, uid string) ([]any, error) {
	doc, err := s.getUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	return model.FirstArray(doc, model.FieldFavorites, model.FieldFavoritesLegacy), nil
}

// Add appends a native-id item unless the same title is already present,
// and returns the list.
func (s *FavoritesService) Add(ctx context.Context, uid string, item model.TMDBItem) ([]any, error) {
	return s.add(ctx, uid, item.Fields(), func(existing any) bool {
		return model.MatchesTMDBItem(existing, item.TMDBID, item.MediaType)
	}, map[string]any{"tmdb_id": item.TMDBID, "media_type": item.MediaType})
}

// AddLegacy appends a flat movie object unless its imdbID is already
// present, and returns the list.
func (s *FavoritesService) AddLegacy(ctx context.Context, uid string, movie model.LegacyMovie) ([]any, error) {
	imdbID := movie.IMDbID()
	value := maps.Clone(map[string]any(movie))
	value["imdbID"] = imdbID
	return s.add(ctx, uid, value, func(existing any) bool {
		return model.MatchesIMDbID(existing, imdbID)
	}, map[string]any{"imdbID": imdbID})
}

func (s *FavoritesService) add(ctx context.Context, uid string, value map[string]any, same func(any) bool, event map[string]any) ([]any, error) {
	unlock := s.locks.Lock(store.UserRef(uid).String())
	defer unlock()

	doc, err := s.getUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	current := doc.Array(model.FieldFavorites)
	if len(current) == 0 {
		current = model.FirstArray(doc, model.FieldFavoritesLegacy)
	}
	for _, existing := range current {
		if same(existing) {
			return current, nil
		}
	}

	if err := s.migrateLegacy(ctx, uid, doc); err != nil {
		return nil, err
	}

	value["itemId"] = s.newID()
	value["addedAt"] = s.timestamp()
	if err := s.store.ArrayUnion(ctx, store.UserRef(uid), model.FieldFavorites, value); err != nil {
		return nil, apperr.Internal(err)
	}
	s.emit(ctx, EventFavoriteAdd, uid, event)

	return s.List(ctx, uid)
}

// migrateLegacy moves favorites stored under the legacy field name to the
// canonical one so the next append lands next to them.
func (s *FavoritesService) migrateLegacy(ctx context.Context, uid string, doc store.Document) error {
	legacy := doc.Array(model.FieldFavoritesLegacy)
	if len(legacy) == 0 || len(doc.Array(model.FieldFavorites)) > 0 {
		return nil
	}
	err := s.store.Set(ctx, store.UserRef(uid), store.Document{
		model.FieldFavorites:       legacy,
		model.FieldFavoritesLegacy: []any{},
	}, true)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Remove deletes the first favorite carrying id. Legacy ids match imdbID;
// bare numbers match tmdb_id.
func (s *FavoritesService) Remove(ctx context.Context, uid, id string) (RemovedResult, error) {
	unlock := s.locks.Lock(store.UserRef(uid).String())
	defer unlock()

	doc, err := s.getUser(ctx, uid)
	if err != nil {
		return RemovedResult{}, err
	}
	if doc == nil {
		return RemovedResult{Removed: false}, nil
	}

	var target any
	field := model.FieldFavorites
	for _, f := range []string{model.FieldFavorites, model.FieldFavoritesLegacy} {
		for _, el := range doc.Array(f) {
			if model.MatchesIMDbID(el, id) || (!compat.IsLegacyID(id) && model.MatchesTMDBID(el, id)) {
				target, field = el, f
				break
			}
		}
		if target != nil {
			break
		}
	}
	if target == nil {
		return RemovedResult{Removed: false}, nil
	}

	err = s.store.ArrayRemove(ctx, store.UserRef(uid), field, target)
	if errors.Is(err, store.ErrNotFound) {
		return RemovedResult{Removed: false}, nil
	}
	if err != nil {
		return RemovedResult{}, apperr.Internal(err)
	}
	s.emit(ctx, EventFavoriteRemove, uid, map[string]any{"id": id})
	return RemovedResult{Removed: true}, nil
}
