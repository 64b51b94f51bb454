package dto

import (
	"github.com/reelbridge/reelbridge/internal/model"
)

// FavoriteRequest is either a native-id item or {movie: {...}}.
type FavoriteRequest struct {
	model.TMDBItem
	Movie model.LegacyMovie `json:"movie"`
}

// LegacyMovieRequest wraps the flat movie object older clients send.
type LegacyMovieRequest struct {
	Movie model.LegacyMovie `json:"movie"`
}

// SubscriptionsRequest is the body of PUT /user/subscriptions.
type SubscriptionsRequest struct {
	Subscriptions *[]int `json:"subscriptions"`
}

// SubscriptionsResponse lists streaming provider ids.
type SubscriptionsResponse struct {
	Subscriptions []int `json:"subscriptions"`
}
