// Package store persists small JSON-shaped user documents.
//
// Documents are addressed by a collection path and an id, mirroring a
// hierarchical document database: users/<uid> holds the profile and
// favorites, users/<uid>/watchlists/<name> holds one watchlist. Every
// backend normalizes values through JSON so callers see the same shapes
// regardless of where the data lives.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the document exists.
	ErrAlreadyExists = errors.New("document already exists")
)

// Document is a JSON object.
type Document map[string]any

// Ref addresses a document.
type Ref struct {
	Collection string
	ID         string
}

func (r Ref) String() string {
	return r.Collection + "/" + r.ID
}

// Entry is a listed document.
type Entry struct {
	ID   string
	Data Document
}

// ListOptions bounds a List call.
type ListOptions struct {
	Limit int
}

// Store is a document store.
type Store interface {
	// Get returns the document at ref or ErrNotFound.
	Get(ctx context.Context, ref Ref) (Document, error)
	// Set writes doc. With merge, top-level fields are merged into an
	// existing document; otherwise the document is replaced.
	Set(ctx context.Context, ref Ref, doc Document, merge bool) error
	// Create writes doc only if nothing exists at ref, else ErrAlreadyExists.
	Create(ctx context.Context, ref Ref, doc Document) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, ref Ref) error
	// List returns up to opts.Limit documents of a collection.
	List(ctx context.Context, collection string, opts ListOptions) ([]Entry, error)
	// ArrayUnion appends value to the array field unless an equal element
	// is present. The document is created when missing.
	ArrayUnion(ctx context.Context, ref Ref, field string, value any) error
	// ArrayRemove removes every element equal to value from the array field.
	// Returns ErrNotFound when the document is missing.
	ArrayRemove(ctx context.Context, ref Ref, field string, value any) error
	Ping(ctx context.Context) error
	Close() error
}

// Collection names.
const (
	UsersCollection = "users"
)

// UserRef addresses the user document.
func UserRef(uid string) Ref {
	return Ref{Collection: UsersCollection, ID: uid}
}

// WatchlistsCollection is the collection path of a user's watchlists.
func WatchlistsCollection(uid string) string {
	return UsersCollection + "/" + uid + "/watchlists"
}

// WatchlistRef addresses one watchlist.
func WatchlistRef(uid, name string) Ref {
	return Ref{Collection: WatchlistsCollection(uid), ID: name}
}

// timestampLayout is ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t for storage.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Normalize round-trips v through JSON so numbers become float64, structs
// become maps and slices become []any.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return out, nil
}

// NormalizeDocument is Normalize for documents.
func NormalizeDocument(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	v, err := Normalize(map[string]any(doc))
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("normalize: document is not an object")
	}
	return Document(m), nil
}

// Array returns doc[field] as a slice, or nil when absent or not an array.
func (d Document) Array(field string) []any {
	if d == nil {
		return nil
	}
	arr, _ := d[field].([]any)
	return arr
}

// String returns doc[field] as a string, or "".
func (d Document) String(field string) string {
	if d == nil {
		return ""
	}
	s, _ := d[field].(string)
	return s
}
