package dto

import (
	"github.com/reelbridge/reelbridge/internal/analytics"
)

// OverviewResponse is the aggregate analytics picture.
type OverviewResponse struct {
	analytics.Overview
	Engagement analytics.Engagement `json:"engagement"`
	Timestamp  string               `json:"timestamp"`
}

// PopularSearchesResponse lists ranked queries.
type PopularSearchesResponse struct {
	Searches []analytics.PopularSearch `json:"searches"`
	Count    int                       `json:"count"`
}

// PerformanceResponse maps "METHOD:route" to its latency and errors.
type PerformanceResponse struct {
	Endpoints map[string]analytics.EndpointPerformance `json:"endpoints"`
	Timestamp string                                   `json:"timestamp"`
}
