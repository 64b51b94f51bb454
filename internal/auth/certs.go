package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultCertsTTL     = time.Hour
	defaultCertsTimeout = 10 * time.Second
	maxCertsBodySize    = 1 << 20
)

// ErrCertificates wraps failures to fetch or parse the signing certificates.
var ErrCertificates = errors.New("auth: signing certificates unavailable")

// certSource caches the provider's x509 signing certificates by kid.
type certSource struct {
	url    string
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func newCertSource(url string, client *http.Client, logger *slog.Logger, now func() time.Time) *certSource {
	if client == nil {
		client = &http.Client{Timeout: defaultCertsTimeout}
	}
	return &certSource{url: url, client: client, logger: logger, now: now}
}

// Key returns the public key for kid, refreshing the set once it expires.
func (c *certSource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keys == nil || !c.now().Before(c.expires) {
		keys, ttl, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.keys = keys
		c.expires = c.now().Add(ttl)
		c.logger.Debug("signing certificates refreshed", "count", len(keys), "ttl", ttl)
	}

	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no certificate for kid %q", kid)
	}
	return key, nil
}

func (c *certSource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrCertificates, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrCertificates, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: status %d", ErrCertificates, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCertsBodySize))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrCertificates, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: decode: %w", ErrCertificates, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(raw))
	for kid, certPEM := range raw {
		key, err := parseCertificate(certPEM)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: kid %s: %w", ErrCertificates, kid, err)
		}
		keys[kid] = key
	}
	return keys, maxAge(resp.Header.Get("Cache-Control")), nil
}

func parseCertificate(certPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, errors.New("invalid PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate key is not RSA")
	}
	return key, nil
}

// maxAge reads max-age from a Cache-Control header.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs <= 0 {
			break
		}
		return time.Duration(secs) * time.Second
	}
	return defaultCertsTTL
}
