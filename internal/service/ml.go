package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/reelbridge/reelbridge/internal/apperr"
)

// MLRecommendation limits.
const (
	MaxMLTitles     = 5
	MaxTopN         = 20
	DefaultTopN     = 10
	mlMaxBodySize   = 4 << 20
	mlSource        = "external_ml_api"
	mlColdStartNote = "First request may take ~60s due to Render cold start"
)

// MLRequest is the body sent to the external recommender.
type MLRequest struct {
	Titles []string `json:"titles"`
	TopN   int      `json:"top_n"`
}

// MLResponse is what the external recommender answers, passed through with
// source annotations.
type MLResponse struct {
	Recommendations       json.RawMessage `json:"recommendations"`
	FoundTitles           json.RawMessage `json:"found_titles"`
	Message               json.RawMessage `json:"message,omitempty"`
	ProcessingTime        json.RawMessage `json:"processing_time,omitempty"`
	RecommendationSources json.RawMessage `json:"recommendation_sources,omitempty"`
	Source                string          `json:"source"`
	Note                  string          `json:"note"`
}

// MLClient calls the external content-based recommender.
type MLClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewMLClient creates an MLClient. The timeout covers the recommender's
// cold start.
func NewMLClient(url string, timeout time.Duration, logger *slog.Logger) *MLClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &MLClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Recommend posts titles to the recommender. Any failure is UPSTREAM_UNAVAILABLE.
func (c *MLClient) Recommend(ctx context.Context, req MLRequest) (*MLResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, c.unavailable(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.unavailable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, mlMaxBodySize))
	if err != nil {
		return nil, c.unavailable(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.unavailable(fmt.Errorf("recommender returned status %d", resp.StatusCode))
	}

	var out MLResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, c.unavailable(err)
	}
	if len(out.Recommendations) == 0 || string(out.Recommendations) == "null" {
		out.Recommendations = json.RawMessage("[]")
	}
	if len(out.FoundTitles) == 0 || string(out.FoundTitles) == "null" {
		out.FoundTitles = json.RawMessage("[]")
	}
	out.Source = mlSource
	out.Note = mlColdStartNote
	return &out, nil
}

func (c *MLClient) unavailable(err error) error {
	c.logger.Error("external ML API failed", "error", err)
	return apperr.Unavailable("External ML API temporarily unavailable", err)
}
