// Package client provides the Open Brewery DB HTTP client with request
// pacing, error classification and metrics.
//
// The client never retries: a failed request is returned to the caller
// classified, and retrying is left to whoever schedules the pipeline.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/cache"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/ratelimit"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/record"
)

// Prometheus metrics for brewery API calls.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewery_api_requests_total",
		Help: "Total brewery API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brewery_api_request_duration_seconds",
		Help:    "Brewery API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brewery_api_errors_total",
		Help: "Total brewery API errors by class",
	}, []string{"class"})
)

// Endpoint labels.
const (
	endpointList = "list"
	endpointGet  = "get"
)

// DefaultBaseURL is the public Open Brewery DB API.
const DefaultBaseURL = "https://api.openbrewerydb.org/v1"

// Client is the brewery API client.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	baseURL    *url.URL
	config     Config
	cache      *cache.Manager
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without the /breweries suffix.
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// Timeout bounds each request.
	Timeout time.Duration

	// Pacing. RequestsPerSecond <= 0 disables it.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         "brewery-pipeline/1.0",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             1,
	}
}

// New creates a new brewery API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "brewery-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: ratelimit.New(cfg.RequestsPerSecond, cfg.Burst, logger),
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}, nil
}

// FetchPage returns one page of breweries. An empty slice means the
// listing is exhausted.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) ([]record.Raw, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var recs []record.Raw
	err := c.get(ctx, endpointList, "/breweries", q, func(body io.Reader) error {
		var err error
		recs, err = record.DecodeArray(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return recs, nil
}

// GetBrewery returns one brewery by id. A missing brewery yields an error
// matching ErrNotFound. With a cache set, fresh entries are served without
// a request and stale ones are revalidated.
func (c *Client) GetBrewery(ctx context.Context, id string) (record.Raw, error) {
	if id == "" {
		return record.Raw{}, fmt.Errorf("brewery id is required")
	}
	path := "/breweries/" + url.PathEscape(id)

	var (
		rec record.Raw
		err error
	)
	if c.cache == nil {
		err = c.get(ctx, endpointGet, path, nil, func(body io.Reader) error {
			return json.NewDecoder(body).Decode(&rec)
		})
	} else {
		rec, err = c.getCached(ctx, path)
	}
	if err != nil {
		return record.Raw{}, fmt.Errorf("brewery %s: %w", id, err)
	}
	return rec, nil
}

func (c *Client) getCached(ctx context.Context, path string) (record.Raw, error) {
	var rec record.Raw
	key := cache.Key{Endpoint: path}

	entry, err := c.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
	case err != nil:
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed, fetching")
		entry = nil
	case !entry.IsExpired():
		return rec, json.Unmarshal(entry.Data, &rec)
	}

	resp, err := c.do(ctx, endpointGet, path, nil, entry)
	if err != nil {
		return rec, err
	}
	defer resp.Body.Close()

	now := time.Now()
	if resp.StatusCode == http.StatusNotModified {
		if err := c.cache.Revalidated(ctx, key, entry, resp.Header, now); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache refresh failed")
		}
		return rec, json.Unmarshal(entry.Data, &rec)
	}

	var body []byte
	err = c.decode(endpointGet, resp, func(r io.Reader) error {
		var err error
		if body, err = io.ReadAll(r); err != nil {
			return err
		}
		return json.NewDecoder(bytes.NewReader(body)).Decode(&rec)
	})
	if err != nil {
		return rec, err
	}

	if err := c.cache.Set(ctx, key, cache.NewEntry(body, resp.Header, now)); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
	}
	return rec, nil
}

// get performs one paced GET and hands a 2xx body to decode.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, decode func(io.Reader) error) error {
	resp, err := c.do(ctx, endpoint, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decode(endpoint, resp, decode)
}

// do performs one paced GET. It returns the response for a 2xx status, or
// for 304 Not Modified when a revalidatable entry was sent, and a classified
// APIError otherwise.
func (c *Client) do(ctx context.Context, endpoint, path string, query url.Values, entry *cache.Entry) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	cache.AddConditionalHeaders(req, entry)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", u.String()).
		Bool("conditional", entry.Revalidatable()).
		Msg("Executing brewery API request")

	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && entry.Revalidatable() {
		return resp, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errClass := classifyStatus(resp.StatusCode)
		apiErrorsTotal.WithLabelValues(string(errClass)).Inc()

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Brewery API request error")

		msg := resp.Status
		if s := strings.TrimSpace(string(snippet)); s != "" {
			msg += ": " + s
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    msg,
		}
	}
	return resp, nil
}

// decode hands a 2xx body to fn and classifies a failure as a decode error.
func (c *Client) decode(endpoint string, resp *http.Response, fn func(io.Reader) error) error {
	if err := fn(resp.Body); err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Undecodable response body")
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode response",
			Err:        err,
		}
	}
	return nil
}

// SetCache enables the lookup cache for GetBrewery.
func (c *Client) SetCache(m *cache.Manager) {
	c.cache = m
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
