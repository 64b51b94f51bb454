// Package auth verifies identity-provider ID tokens and carries the caller's
// identity through request contexts.
package auth

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the verified caller.
type Identity struct {
	UID     string         `json:"uid"`
	Email   string         `json:"email,omitempty"`
	Name    string         `json:"name,omitempty"`
	Picture string         `json:"picture,omitempty"`
	Claims  map[string]any `json:"claims,omitempty"`
}

// ContextWithIdentity adds the identity to the context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the identity from the context.
// Returns nil if not present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// UserIDFromContext returns the caller's uid, or "" when unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	id := IdentityFromContext(ctx)
	if id == nil {
		return ""
	}
	return id.UID
}
