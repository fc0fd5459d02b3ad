package testrail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/janainarocha/testrailviewer/internal/metrics"
)

const (
	maxAttempts    = 3
	defaultBackoff = time.Second
)

// Client issues authenticated GET requests against the TestRail API.
// It is read-only: no call mutates remote state.
type Client struct {
	baseURL    string
	user       string
	key        string
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff overrides the base retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithRateLimit bounds the request rate of the sync crawl.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithMetrics attaches Prometheus counters for requests and retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a TestRail client. Missing base URL or credentials fail here,
// before any request is made.
func New(baseURL, user, key string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" || user == "" || key == "" {
		return nil, fmt.Errorf("testrail credentials/config missing")
	}
	c := &Client{
		baseURL:    baseURL,
		user:       user,
		key:        key,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		backoff:    defaultBackoff,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// get performs a single authenticated GET against an API v2 endpoint.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("%s/index.php?/api/v2/%s", c.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countRequest("network_error")
		return nil, fmt.Errorf("testrail request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countRequest("read_error")
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.countRequest("http_error")
		return nil, fmt.Errorf("testrail HTTP %d: %s", resp.StatusCode, string(body))
	}
	c.countRequest("ok")
	return body, nil
}

// getRetry wraps get with the sync path's retry policy: up to maxAttempts
// total, waiting backoff × attempt between tries. The final error propagates
// unmodified.
func (c *Client) getRetry(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err := c.get(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		c.logger.Warn("testrail request failed, retrying",
			"endpoint", endpoint, "attempt", attempt, "error", err)
		if c.metrics != nil {
			c.metrics.RemoteRetriesTotal.Inc()
		}
		select {
		case <-time.After(c.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) countRequest(status string) {
	if c.metrics != nil {
		c.metrics.RemoteRequestsTotal.WithLabelValues(status).Inc()
	}
}
