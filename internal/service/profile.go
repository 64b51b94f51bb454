package service

import (
	"context"
	"math"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/model"
	"github.com/reelbridge/reelbridge/internal/store"
)

// ProfileService manages users/<uid> profile fields and subscriptions.
type ProfileService struct {
	userBase
}

// NewProfileService creates a new ProfileService.
func NewProfileService(opts Options) *ProfileService {
	return &ProfileService{userBase: newUserBase(opts)}
}

// Get returns the profile, creating {uid, createdAt, updatedAt} on first access.
func (s *ProfileService) Get(ctx context.Context, uid string) (store.Document, error) {
	doc, err := s.getUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	now := s.timestamp()
	doc = store.Document{
		model.FieldUID:       uid,
		model.FieldCreatedAt: now,
		model.FieldUpdatedAt: now,
	}
	if err := s.store.Set(ctx, store.UserRef(uid), doc, true); err != nil {
		return nil, apperr.Internal(err)
	}
	return doc, nil
}

// Upsert merges patch into the profile and returns the stored document.
func (s *ProfileService) Upsert(ctx context.Context, uid string, patch model.ProfilePatch) (store.Document, error) {
	unlock := s.locks.Lock(store.UserRef(uid).String())
	defer unlock()

	existing, err := s.getUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	fields := store.Document(patch.Fields())
	fields[model.FieldUID] = uid
	fields[model.FieldUpdatedAt] = now
	if existing.String(model.FieldCreatedAt) == "" {
		fields[model.FieldCreatedAt] = now
	}

	return s.mergeAndRead(ctx, uid, fields)
}

// Subscriptions returns the streaming provider ids, or an empty list.
func (s *ProfileService) Subscriptions(ctx context.Context, uid string) ([]int, error) {
	doc, err := s.getUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	raw := doc.Array(model.FieldSubscriptions)
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			out = append(out, int(f))
		}
	}
	return out, nil
}

// UpdateSubscriptions replaces the provider ids and returns the profile.
func (s *ProfileService) UpdateSubscriptions(ctx context.Context, uid string, ids []int) (store.Document, error) {
	if ids == nil {
		ids = []int{}
	}
	return s.mergeAndRead(ctx, uid, store.Document{
		model.FieldSubscriptions: ids,
		model.FieldUpdatedAt:     s.timestamp(),
	})
}

func (s *ProfileService) mergeAndRead(ctx context.Context, uid string, fields store.Document) (store.Document, error) {
	ref := store.UserRef(uid)
	if err := s.store.Set(ctx, ref, fields, true); err != nil {
		return nil, apperr.Internal(err)
	}
	doc, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return doc, nil
}
