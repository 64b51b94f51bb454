// Package compat resolves legacy identifiers and translates upstream
// payloads into the flat legacy schema the mobile client consumes.
package compat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/tmdb"
)

// Namespace prefixes synthesized compound ids.
const Namespace = "tmdb"

// IDKind classifies a legacy identifier.
type IDKind int

// Identifier kinds.
const (
	KindUnsupported IDKind = iota
	KindIMDb
	KindCompound
	KindNumeric
)

// Ref binds a legacy identifier to an upstream reference.
type Ref struct {
	MediaType string `json:"media_type"`
	NativeID  int    `json:"tmdb_id"`
	// LegacyID is the foreign identifier the ref was resolved from, if any.
	LegacyID string `json:"imdb_id,omitempty"`
}

// ParsedID is the result of classifying an identifier without I/O.
type ParsedID struct {
	Kind      IDKind
	IMDbID    string
	MediaType string
	NativeID  int
}

// FormatID synthesizes a compound identifier.
func FormatID(mediaType string, id int) string {
	return fmt.Sprintf("%s:%s:%d", Namespace, mediaType, id)
}

// IsLegacyID reports whether raw looks like a foreign or compound identifier.
func IsLegacyID(raw string) bool {
	return strings.HasPrefix(raw, "tt") || strings.HasPrefix(raw, Namespace+":")
}

// ParseID classifies raw. It never performs network calls.
func ParseID(raw string) (ParsedID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ParsedID{}, apperr.Validation("Missing id")
	}

	if strings.HasPrefix(raw, "tt") {
		return ParsedID{Kind: KindIMDb, IMDbID: raw}, nil
	}

	for _, mediaType := range []string{tmdb.MediaMovie, tmdb.MediaTV} {
		prefix := Namespace + ":" + mediaType + ":"
		if rest, ok := strings.CutPrefix(raw, prefix); ok {
			id, err := strconv.Atoi(rest)
			if err != nil || id <= 0 {
				return ParsedID{}, apperr.Validation("Unsupported id format", "native id must be a positive integer")
			}
			return ParsedID{Kind: KindCompound, MediaType: mediaType, NativeID: id}, nil
		}
	}

	// Legacy shim: a bare number is assumed to be a movie. Ambiguous for tv ids,
	// kept only because older clients send it.
	if isDigits(raw) {
		id, err := strconv.Atoi(raw)
		if err == nil && id > 0 {
			return ParsedID{Kind: KindNumeric, MediaType: tmdb.MediaMovie, NativeID: id}, nil
		}
	}

	return ParsedID{Kind: KindUnsupported}, apperr.Validation("Unsupported id format")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
