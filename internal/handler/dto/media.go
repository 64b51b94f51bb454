// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/reelbridge/reelbridge/internal/compat"
)

// BatchDetailsRequest is the body of POST /movies/batch-details.
type BatchDetailsRequest struct {
	IMDbIDs []string `json:"imdbIDs"`
}

// BatchDetailsResponse carries one result per requested id, in order.
type BatchDetailsResponse struct {
	Results []compat.BatchResult `json:"results"`
}

// RecommendationRequest accepts both recommendation body shapes. A title
// selects the legacy shape.
type RecommendationRequest struct {
	MediaType string  `json:"media_type"`
	TMDBID    *int    `json:"tmdb_id"`
	Page      *int    `json:"page"`
	Title     *string `json:"title"`
	TopN      *int    `json:"top_n"`
}

// LegacyRecommendationsResponse is the title-based recommendation answer.
type LegacyRecommendationsResponse struct {
	Recommendations []compat.LegacyRecommendation `json:"recommendations"`
}

// MLRecommendationRequest is the body of POST /recommendations/ml.
type MLRecommendationRequest struct {
	Titles []string `json:"titles"`
	TopN   *int     `json:"top_n"`
}

// KeywordsResponse lists suggested search terms.
type KeywordsResponse struct {
	Keywords []string `json:"keywords"`
}
