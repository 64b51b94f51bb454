// Package model defines domain entities for the application.
package model

import (
	"strings"
)

// Media types accepted on user lists.
const (
	MediaMovie = "movie"
	MediaTV    = "tv"
)

// Document field names on users/<uid>.
const (
	FieldFavorites       = "userFavorites"
	FieldFavoritesLegacy = "favorites"
	FieldSubscriptions   = "streamingSubscriptions"
	FieldCreatedAt       = "createdAt"
	FieldUpdatedAt       = "updatedAt"
	FieldUID             = "uid"
)

// Document field names on users/<uid>/watchlists/<name>.
const (
	FieldMovies      = "movies"
	FieldItemsLegacy = "items"
)

// Profile length limits.
const (
	MaxUsernameLength = 64
)

// ProfilePatch is the body of a profile update. Unset fields are left alone.
type ProfilePatch struct {
	Username    *string        `json:"username,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// Validate trims the username and returns a list of problems.
func (p *ProfilePatch) Validate() []string {
	var problems []string
	if p.Username != nil {
		trimmed := strings.TrimSpace(*p.Username)
		p.Username = &trimmed
		if n := len([]rune(trimmed)); n < 1 || n > MaxUsernameLength {
			problems = append(problems, "username must be between 1 and 64 characters")
		}
	}
	return problems
}

// Fields returns the patch as document fields.
func (p ProfilePatch) Fields() map[string]any {
	out := make(map[string]any, 2)
	if p.Username != nil {
		out["username"] = *p.Username
	}
	if p.Preferences != nil {
		out["preferences"] = p.Preferences
	}
	return out
}

// ValidateSubscriptions checks that every provider id is a positive integer.
func ValidateSubscriptions(ids []int) []string {
	for _, id := range ids {
		if id < 1 {
			return []string{"subscriptions must contain integers greater than or equal to 1"}
		}
	}
	return nil
}
