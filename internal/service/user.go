// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/store"
)

// Analytics event types emitted by user-state mutations.
const (
	EventWatchlistAdd    = "watchlist.add"
	EventWatchlistRemove = "watchlist.remove"
	EventFavoriteAdd     = "favorite.add"
	EventFavoriteRemove  = "favorite.remove"
)

// EventTracker receives analytics events. Delivery is best effort.
type EventTracker interface {
	Track(ctx context.Context, eventType string, data, metadata map[string]any) error
}

type noopEvents struct{}

func (noopEvents) Track(context.Context, string, map[string]any, map[string]any) error { return nil }

// RemovedResult reports whether a removal changed anything.
type RemovedResult struct {
	Removed bool `json:"removed"`
}

// AddedResult reports whether an add changed anything.
type AddedResult struct {
	Added bool `json:"added"`
}

// WatchedResult carries the watched flag after a toggle.
type WatchedResult struct {
	Watched bool `json:"watched"`
}

// Options configures the user-state services.
type Options struct {
	Store  store.Store
	Events EventTracker
	Logger *slog.Logger
	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

// userBase holds what every user-state service shares.
type userBase struct {
	store  store.Store
	events EventTracker
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	locks  *keyedMutex
}

func newUserBase(opts Options) userBase {
	b := userBase{
		store:  opts.Store,
		events: opts.Events,
		logger: opts.Logger,
		now:    opts.Now,
		newID:  opts.NewID,
		locks:  &keyedMutex{},
	}
	if b.events == nil {
		b.events = noopEvents{}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newID == nil {
		b.newID = func() string { return ulid.Make().String() }
	}
	return b
}

func (b userBase) timestamp() string {
	return store.Timestamp(b.now())
}

func (b userBase) emit(ctx context.Context, eventType, uid string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	err := b.events.Track(context.WithoutCancel(ctx), eventType, data, map[string]any{"userId": uid})
	if err != nil {
		b.logger.Debug("analytics event dropped", "type", eventType, "error", err)
	}
}

// getUser returns the user document, or nil when it does not exist.
func (b userBase) getUser(ctx context.Context, uid string) (store.Document, error) {
	doc, err := b.store.Get(ctx, store.UserRef(uid))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return doc, nil
}

// keyedMutex serializes read-modify-write cycles on one document.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
