package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/model"
	"github.com/reelbridge/reelbridge/internal/store"
)

type recordedEvent struct {
	Type string
	Data map[string]any
	UID  any
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) Track(_ context.Context, eventType string, data, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{Type: eventType, Data: data, UID: metadata["userId"]})
	return nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store  *store.Memory
	events *fakeEvents
	opts   Options
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{store: store.NewMemory(), events: &fakeEvents{}, clock: &now}
	n := 0
	f.opts = Options{
		Store:  f.store,
		Events: f.events,
		Now:    func() time.Time { return *f.clock },
		NewID: func() string {
			n++
			return fmt.Sprintf("item-%d", n)
		},
	}
	return f
}

func (f *fixture) advance(d time.Duration) {
	next := f.clock.Add(d)
	*f.clock = next
}

func TestProfile_GetCreatesDocument(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewProfileService(f.opts)
	ctx := context.Background()

	doc, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc["uid"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", doc["createdAt"])

	stored, err := f.store.Get(ctx, store.UserRef("u1"))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", stored["updatedAt"])
}

func TestProfile_UpsertPreservesCreatedAt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewProfileService(f.opts)
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	f.advance(time.Hour)

	name := "ada"
	doc, err := svc.Upsert(ctx, "u1", model.ProfilePatch{Username: &name, Preferences: map[string]any{"theme": "dark"}})
	require.NoError(t, err)
	assert.Equal(t, "ada", doc["username"])
	assert.Equal(t, map[string]any{"theme": "dark"}, doc["preferences"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", doc["createdAt"])
	assert.Equal(t, "2024-05-01T13:00:00.000Z", doc["updatedAt"])
}

func TestProfile_UpsertWithoutDocument(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewProfileService(f.opts)

	doc, err := svc.Upsert(context.Background(), "u2", model.ProfilePatch{})
	require.NoError(t, err)
	assert.Equal(t, "u2", doc["uid"])
	assert.NotEmpty(t, doc["createdAt"])
}

func TestProfile_Subscriptions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewProfileService(f.opts)
	ctx := context.Background()

	subs, err := svc.Subscriptions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int{}, subs)

	doc, err := svc.UpdateSubscriptions(ctx, "u1", []int{8, 337})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(8), float64(337)}, doc["streamingSubscriptions"])

	subs, err = svc.Subscriptions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int{8, 337}, subs)

	doc, err = svc.UpdateSubscriptions(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{}, doc["streamingSubscriptions"])
}

func TestFavorites_AddListRemove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewFavoritesService(f.opts)
	ctx := context.Background()

	empty, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	list, err := svc.AddLegacy(ctx, "u1", model.LegacyMovie{"imdbID": "tt0372784", "Title": "Batman Begins"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "item-1", list[0].(map[string]any)["itemId"])

	list, err = svc.AddLegacy(ctx, "u1", model.LegacyMovie{"imdbID": "tt0372784", "Title": "Batman Begins"})
	require.NoError(t, err)
	assert.Len(t, list, 1, "duplicate imdbID is ignored")

	list, err = svc.Add(ctx, "u1", model.TMDBItem{TMDBID: 1399, MediaType: "tv"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	res, err := svc.Remove(ctx, "u1", "tt0372784")
	require.NoError(t, err)
	assert.True(t, res.Removed)

	res, err = svc.Remove(ctx, "u1", "1399")
	require.NoError(t, err)
	assert.True(t, res.Removed)

	res, err = svc.Remove(ctx, "u1", "tt9999999")
	require.NoError(t, err)
	assert.False(t, res.Removed)

	list, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.Equal(t, []string{EventFavoriteAdd, EventFavoriteAdd, EventFavoriteRemove, EventFavoriteRemove}, f.events.types())
}

func TestFavorites_RemoveWithoutDocument(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewFavoritesService(f.opts)

	res, err := svc.Remove(context.Background(), "nobody", "tt1")
	require.NoError(t, err)
	assert.False(t, res.Removed)
}

func TestFavorites_ReadsLegacyField(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewFavoritesService(f.opts)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, store.UserRef("u1"), store.Document{
		"favorites": []any{map[string]any{"imdbID": "tt1"}},
	}, false))

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	res, err := svc.Remove(ctx, "u1", "tt1")
	require.NoError(t, err)
	assert.True(t, res.Removed)
}

func TestFavorites_AddKeepsLegacyFavorites(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewFavoritesService(f.opts)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, store.UserRef("u1"), store.Document{
		"favorites": []any{
			map[string]any{"imdbID": "tt1", "Title": "Alien"},
			map[string]any{"imdbID": "tt2", "Title": "Aliens"},
		},
	}, false))

	list, err := svc.AddLegacy(ctx, "u1", model.LegacyMovie{"imdbID": "tt3", "Title": "Alien 3"})
	require.NoError(t, err)
	require.Len(t, list, 3)

	list, err = svc.AddLegacy(ctx, "u1", model.LegacyMovie{"imdbID": "tt1", "Title": "Alien"})
	require.NoError(t, err)
	assert.Len(t, list, 3, "a legacy favorite must not be added twice")

	doc, err := f.store.Get(ctx, store.UserRef("u1"))
	require.NoError(t, err)
	assert.Len(t, doc.Array("userFavorites"), 3)
	assert.Empty(t, doc.Array("favorites"))

	res, err := svc.Remove(ctx, "u1", "tt2")
	require.NoError(t, err)
	assert.True(t, res.Removed)

	list, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	ids := make([]any, 0, len(list))
	for _, el := range list {
		ids = append(ids, el.(map[string]any)["imdbID"])
	}
	assert.Equal(t, []any{"tt1", "tt3"}, ids)
}

func TestWatchlists_CreateConflictAndGet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewWatchlistService(f.opts)
	ctx := context.Background()

	desc := "for the weekend"
	created, err := svc.Create(ctx, "u1", model.WatchlistCreate{Name: "Weekend", Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Weekend", created["id"])
	assert.Equal(t, []any{}, created["movies"])

	_, err = svc.Create(ctx, "u1", model.WatchlistCreate{Name: "Weekend"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.Equal(t, "Watchlist already exists", apperr.From(err).Message)

	got, err := svc.Get(ctx, "u1", "Weekend")
	require.NoError(t, err)
	assert.Equal(t, "for the weekend", got["description"])

	_, err = svc.Get(ctx, "u1", "Missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Equal(t, "Watchlist not found", apperr.From(err).Message)
}

func TestWatchlists_ListNewestFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewWatchlistService(f.opts)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.Create(ctx, "u1", model.WatchlistCreate{Name: name})
		require.NoError(t, err)
		f.advance(time.Minute)
	}
	require.NoError(t, f.store.Set(ctx, store.WatchlistRef("u1", "Old"), store.Document{
		"items": []any{map[string]any{"imdbID": "tt1"}},
	}, false))

	lists, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lists, 4)
	assert.Equal(t, "C", lists[0]["id"])
	assert.Equal(t, "A", lists[2]["id"])
	assert.Equal(t, "Old", lists[3]["name"])

	legacy := lists[3]["movies"].([]any)
	require.Len(t, legacy, 1)
	assert.Equal(t, false, legacy[0].(map[string]any)["watched"])
	assert.NotContains(t, lists[3], "items")
}

func TestWatchlists_Items(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewWatchlistService(f.opts)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", "Missing", model.TMDBItem{TMDBID: 550, MediaType: "movie"})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = svc.Create(ctx, "u1", model.WatchlistCreate{Name: "Weekend"})
	require.NoError(t, err)

	added, err := svc.AddItem(ctx, "u1", "Weekend", model.TMDBItem{TMDBID: 550, MediaType: "movie"})
	require.NoError(t, err)
	assert.True(t, added.Added)

	added, err = svc.AddItem(ctx, "u1", "Weekend", model.TMDBItem{TMDBID: 550, MediaType: "movie"})
	require.NoError(t, err)
	assert.False(t, added.Added)

	added, err = svc.AddItem(ctx, "u1", "Weekend", model.TMDBItem{TMDBID: 550, MediaType: "tv"})
	require.NoError(t, err)
	assert.True(t, added.Added, "same id with another media type is a different title")

	watched, err := svc.ToggleWatched(ctx, "u1", "Weekend", 550)
	require.NoError(t, err)
	assert.True(t, watched.Watched)

	got, err := svc.Get(ctx, "u1", "Weekend")
	require.NoError(t, err)
	first := got["movies"].([]any)[0].(map[string]any)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", first["watchedAt"])
	assert.Equal(t, "item-1", first["itemId"])

	watched, err = svc.ToggleWatched(ctx, "u1", "Weekend", 550)
	require.NoError(t, err)
	assert.False(t, watched.Watched)

	_, err = svc.ToggleWatched(ctx, "u1", "Weekend", 1)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Equal(t, "Item not found in watchlist", apperr.From(err).Message)

	removed, err := svc.RemoveItem(ctx, "u1", "Weekend", 550)
	require.NoError(t, err)
	assert.True(t, removed.Removed)

	got, err = svc.Get(ctx, "u1", "Weekend")
	require.NoError(t, err)
	assert.Empty(t, got["movies"])
}

func TestWatchlists_LegacyMovies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewWatchlistService(f.opts)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", model.WatchlistCreate{Name: "Weekend"})
	require.NoError(t, err)

	movie := model.LegacyMovie{"imdbID": "tt0372784", "Title": "Batman Begins", "Poster": "", "Year": "2005"}
	added, err := svc.AddMovieLegacy(ctx, "u1", "Weekend", movie)
	require.NoError(t, err)
	assert.True(t, added.Added)

	added, err = svc.AddMovieLegacy(ctx, "u1", "Weekend", movie)
	require.NoError(t, err)
	assert.False(t, added.Added)

	got, err := svc.Get(ctx, "u1", "Weekend")
	require.NoError(t, err)
	items := got["movies"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Batman Begins", item["title"])
	assert.Nil(t, item["poster"])
	assert.Equal(t, "2005", item["metadata"].(map[string]any)["Year"])

	watched, err := svc.ToggleWatchedLegacy(ctx, "u1", "Weekend", "tt0372784")
	require.NoError(t, err)
	assert.True(t, watched.Watched)

	removed, err := svc.RemoveMovieLegacy(ctx, "u1", "Weekend", "tt0372784")
	require.NoError(t, err)
	assert.True(t, removed.Removed)

	assert.Equal(t, []string{EventWatchlistAdd, EventWatchlistRemove}, f.events.types())
}

func TestWatchlists_Delete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewWatchlistService(f.opts)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", model.WatchlistCreate{Name: "Weekend"})
	require.NoError(t, err)

	res, err := svc.Delete(ctx, "u1", "Weekend")
	require.NoError(t, err)
	assert.True(t, res.Removed)

	_, err = svc.Get(ctx, "u1", "Weekend")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestWatchlists_ConcurrentAdds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	opts := f.opts
	var mu sync.Mutex
	n := 0
	opts.NewID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
	svc := NewWatchlistService(opts)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", model.WatchlistCreate{Name: "Weekend"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, _ = svc.AddItem(ctx, "u1", "Weekend", model.TMDBItem{TMDBID: id, MediaType: "movie"})
		}(i)
	}
	wg.Wait()

	got, err := svc.Get(ctx, "u1", "Weekend")
	require.NoError(t, err)
	assert.Len(t, got["movies"], 10)
}
