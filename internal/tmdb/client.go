// Package tmdb wraps the upstream media-metadata API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/reelbridge/reelbridge/internal/apperr"
	"github.com/reelbridge/reelbridge/internal/metrics"
)

const (
	// DefaultTimeout is the per-call ceiling when none is configured.
	DefaultTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second

	// maxBodySize caps upstream response bodies.
	maxBodySize = 8 << 20
)

// Getter performs a single upstream GET.
type Getter interface {
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Recorder   metrics.Recorder
}

// Client calls the upstream API with the fixed credential.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewHTTPClient creates an HTTP client for upstream calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: TLSHandshakeTimeout,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(opts.Timeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    httpClient,
		logger:  logger.With("component", "tmdb.client"),
		metrics: recorder,
	}
}

// Get fetches path with params and returns the raw JSON body.
//
// The call is detached from ctx cancellation: a client disconnect does not
// abort an in-flight upstream request. The HTTP client timeout still applies.
// Failures are returned as *apperr.Error with code TMDB_ERROR and are never retried.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("api_key", c.apiKey)

	reqURL := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Upstream(http.StatusBadGateway, "TMDB request failed", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("tmdb request",
		slog.String("path", path),
		slog.Any("params", paramNames(params)),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		err = unwrapURLError(err)
		c.fail(path, 0, start, err)
		return nil, apperr.Upstream(http.StatusBadGateway, err.Error(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.fail(path, resp.StatusCode, start, err)
		return nil, apperr.Upstream(http.StatusBadGateway, "TMDB response unreadable", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := statusMessage(body)
		c.fail(path, resp.StatusCode, start, errors.New(message))
		return nil, apperr.Upstream(resp.StatusCode, message, nil)
	}

	if !json.Valid(body) {
		c.fail(path, resp.StatusCode, start, errors.New("invalid JSON"))
		return nil, apperr.Upstream(http.StatusBadGateway, "TMDB returned invalid JSON", nil)
	}

	elapsed := time.Since(start)
	c.metrics.IncUpstreamRequest("success")
	c.metrics.ObserveUpstreamDuration(elapsed)
	c.logger.Debug("tmdb response",
		slog.String("path", path),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	)
	return json.RawMessage(body), nil
}

func (c *Client) fail(path string, status int, start time.Time, err error) {
	elapsed := time.Since(start)
	c.metrics.IncUpstreamRequest("error")
	c.metrics.ObserveUpstreamDuration(elapsed)
	c.logger.Warn("tmdb request failed",
		slog.String("path", path),
		slog.Int("status", status),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.String("error", err.Error()),
	)
}

// statusMessage extracts the upstream status_message, if any.
func statusMessage(body []byte) string {
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.StatusMessage != "" {
		return payload.StatusMessage
	}
	return "TMDB request failed"
}

// unwrapURLError drops the request URL, which carries the api_key.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("timeout: %w", urlErr.Err)
		}
		return urlErr.Err
	}
	return err
}

func paramNames(params url.Values) []string {
	names := make([]string, 0, len(params))
	for k := range params {
		if k == "api_key" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
