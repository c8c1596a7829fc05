// Package client implements the fetch gateway for the Rick and Morty API:
// given a URL (or none, meaning the default character endpoint) it performs a
// single GET and decodes the JSON body into a caller-supplied type.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/rickmorty-client/pkg/logging"
	"github.com/Sternrassler/rickmorty-client/pkg/model"
	"github.com/Sternrassler/rickmorty-client/pkg/ratelimit"
	"github.com/google/go-querystring/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the list-characters endpoint used when no URL is given.
const DefaultBaseURL = "https://rickandmortyapi.com/api/character"

// Prometheus metrics for gateway operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rickmorty_requests_total",
		Help: "Total API requests by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rickmorty_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rickmorty_errors_total",
		Help: "Total gateway errors by kind",
	}, []string{"kind"})
)

// Gateway fetches a URL and decodes the JSON response into v.
// An empty rawURL selects the gateway's default endpoint.
type Gateway interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
}

// Fetch decodes the response at rawURL into a new T.
func Fetch[T any](ctx context.Context, g Gateway, rawURL string) (T, error) {
	var v T
	if err := g.GetJSON(ctx, rawURL, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Filter narrows the default character endpoint. Zero fields are omitted.
type Filter struct {
	Name    string `url:"name,omitempty"`
	Status  string `url:"status,omitempty"`
	Species string `url:"species,omitempty"`
	Type    string `url:"type,omitempty"`
	Gender  string `url:"gender,omitempty"`
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the default endpoint. Empty means DefaultBaseURL.
	// It is validated per request, not at construction.
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// Filter is applied to the default endpoint only; cursor URLs are used verbatim.
	Filter Filter

	// RateLimit paces outgoing requests
	RateLimit ratelimit.Config
}

// DefaultConfig returns a default configuration for the public API.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "rickmorty-client/0.1.0",
		Timeout:   30 * time.Second,
		RateLimit: ratelimit.DefaultConfig(),
	}
}

// Client is the production Gateway backed by net/http.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	config     Config
	logger     zerolog.Logger
}

var _ Gateway = (*Client)(nil)

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	logger := logging.NewLogger(logging.ComponentGateway)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: ratelimit.NewLimiter(cfg.RateLimit, logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

// GetJSON performs exactly one GET against rawURL (or the default endpoint)
// and decodes the body into v. Every failure is a *FetchError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	target, err := c.resolve(rawURL)
	if err != nil {
		return c.fail(&FetchError{Kind: KindMalformedURL, URL: rawURL, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return c.fail(&FetchError{Kind: KindMalformedURL, URL: target, Err: fmt.Errorf("create request: %w", err)})
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	if err := c.limiter.Wait(ctx); err != nil {
		return c.fail(&FetchError{Kind: KindTransport, URL: target, Err: err})
	}

	c.logger.Debug().Str("url", target).Msg("Executing API request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return c.fail(&FetchError{Kind: KindTransport, URL: target, Err: err})
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return c.fail(&FetchError{
			Kind:       KindTransport,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", resp.Status),
		})
	}

	if err := decodeJSON(resp.Body, v); err != nil {
		return c.fail(&FetchError{Kind: KindDecode, URL: target, Err: err})
	}

	c.logger.Debug().
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request succeeded")

	return nil
}

// decodeJSON decodes exactly one JSON value from r into v.
func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return errors.New("unexpected data after JSON value")
		}
		return fmt.Errorf("after JSON value: %w", err)
	}
	return nil
}

// FetchPage fetches one page of characters.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (*model.Page, error) {
	page, err := Fetch[model.Page](ctx, c, rawURL)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// resolve returns the absolute URL to request.
func (c *Client) resolve(rawURL string) (string, error) {
	if rawURL != "" {
		if _, err := parseAbsolute(rawURL); err != nil {
			return "", err
		}
		return rawURL, nil
	}

	u, err := parseAbsolute(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("default endpoint: %w", err)
	}

	values, err := query.Values(c.config.Filter)
	if err != nil {
		return "", fmt.Errorf("encode filter: %w", err)
	}
	if len(values) > 0 {
		q := u.Query()
		for key := range values {
			q.Set(key, values.Get(key))
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// parseAbsolute accepts only absolute http(s) URLs with a host.
func parseAbsolute(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

func (c *Client) fail(err *FetchError) error {
	errorsTotal.WithLabelValues(string(err.Kind)).Inc()
	c.logger.Warn().
		Err(err.Err).
		Str("url", err.URL).
		Str("kind", string(err.Kind)).
		Int("status", err.StatusCode).
		Msg("API request failed")
	return err
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
