// Package openalex provides a citation count provider backed by the
// OpenAlex works API.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/paperguessr/paper-guess-service/internal/citations"
	"github.com/paperguessr/paper-guess-service/internal/domain"
	"github.com/paperguessr/paper-guess-service/internal/httpclient"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex's polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// sourceName is the human-readable name for this provider.
	sourceName = "openalex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Email is the contact email for the polite pool. Providing an
	// email grants access to higher rate limits.
	Email string

	// Timeout is the request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to
	// DefaultRateLimit.
	RateLimit float64

	// Enabled indicates whether this provider participates in lookups.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Client resolves citation counts from OpenAlex.
type Client struct {
	config     Config
	httpClient *httpclient.Client
}

// Ensure Client implements the Provider interface.
var _ citations.Provider = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := "paper-guess-service/1.0"
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	return &Client{
		config: cfg,
		httpClient: httpclient.New(httpclient.Config{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: int(cfg.RateLimit),
			UserAgent: userAgent,
			Retry: httpclient.RetryPolicy{
				MaxAttempts:        2,
				BaseDelay:          time.Second,
				NonRetryableStatus: []int{http.StatusNotFound},
			},
		}),
	}
}

// work is the subset of an OpenAlex work we care about.
type work struct {
	CitedByCount int `json:"cited_by_count"`
}

// searchResponse is the subset of an OpenAlex list response we care about.
type searchResponse struct {
	Results []work `json:"results"`
}

// Count resolves the citation count, preferring a direct DOI fetch and
// falling back to a title search.
func (c *Client) Count(ctx context.Context, doi, title string) (int, error) {
	if doi != "" {
		count, err := c.countByDOI(ctx, doi)
		if err == nil {
			return count, nil
		}
		// A DOI miss is not fatal; the title search may still hit.
	}
	if title == "" {
		return 0, fmt.Errorf("openalex: no identifier to look up")
	}
	return c.countByTitle(ctx, title)
}

// countByDOI fetches a single work by DOI.
func (c *Client) countByDOI(ctx context.Context, doi string) (int, error) {
	endpoint := fmt.Sprintf("%s/works/doi:%s", c.config.BaseURL, url.PathEscape(doi))
	endpoint = c.withMailto(endpoint)

	var w work
	if err := c.getJSON(ctx, endpoint, &w); err != nil {
		return 0, err
	}
	return w.CitedByCount, nil
}

// countByTitle searches works by title and takes the top hit.
func (c *Client) countByTitle(ctx context.Context, title string) (int, error) {
	query := url.Values{}
	query.Set("filter", "title.search:"+title)
	query.Set("per_page", "1")
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}
	endpoint := c.config.BaseURL + "/works?" + query.Encode()

	var resp searchResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return 0, err
	}
	if len(resp.Results) == 0 {
		return 0, nil
	}
	return resp.Results[0].CitedByCount, nil
}

// withMailto appends the polite-pool mailto parameter when configured.
func (c *Client) withMailto(endpoint string) string {
	if c.config.Email == "" {
		return endpoint
	}
	return endpoint + "?mailto=" + url.QueryEscape(c.config.Email)
}

// getJSON executes a GET request and decodes the JSON response into v.
func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &domain.ExternalAPIError{
			Source:     "OpenAlex",
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	// Limit the body to 10MB to prevent resource exhaustion.
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this provider is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}
