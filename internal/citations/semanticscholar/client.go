// Package semanticscholar provides a citation count provider backed by
// the Semantic Scholar Graph API.
package semanticscholar

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
	// DefaultBaseURL is the default base URL for the Semantic Scholar
	// Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated
	// requests. With an API key this can be raised.
	DefaultRateLimit = 1.0

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 20 * time.Second

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// sourceName is the human-readable name for this provider.
	sourceName = "semantic_scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API. Defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	APIKey string

	// Timeout is the HTTP request timeout. Defaults to DefaultTimeout.
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

// Client resolves citation counts from Semantic Scholar.
type Client struct {
	config     Config
	httpClient *httpclient.Client
}

// Ensure Client implements the Provider interface.
var _ citations.Provider = (*Client)(nil)

// New creates a new Semantic Scholar client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		config: cfg,
		httpClient: httpclient.New(httpclient.Config{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    burst,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
			Retry: httpclient.RetryPolicy{
				MaxAttempts:        2,
				BaseDelay:          time.Second,
				NonRetryableStatus: []int{http.StatusNotFound},
			},
		}),
	}
}

// paper is the subset of a Semantic Scholar paper we care about.
type paper struct {
	CitationCount int `json:"citationCount"`
}

// searchResponse is the subset of a paper search response we care about.
type searchResponse struct {
	Data []paper `json:"data"`
}

// Count resolves the citation count, preferring a direct DOI fetch and
// falling back to a title search.
func (c *Client) Count(ctx context.Context, doi, title string) (int, error) {
	if doi != "" {
		count, err := c.countByDOI(ctx, doi)
		if err == nil {
			return count, nil
		}
	}
	if title == "" {
		return 0, fmt.Errorf("semanticscholar: no identifier to look up")
	}
	return c.countByTitle(ctx, title)
}

// countByDOI fetches a single paper by DOI.
func (c *Client) countByDOI(ctx context.Context, doi string) (int, error) {
	endpoint := fmt.Sprintf("%s/paper/DOI:%s?fields=citationCount", c.config.BaseURL, url.PathEscape(doi))

	var p paper
	if err := c.getJSON(ctx, endpoint, &p); err != nil {
		return 0, err
	}
	return p.CitationCount, nil
}

// countByTitle searches papers by title and takes the top hit.
func (c *Client) countByTitle(ctx context.Context, title string) (int, error) {
	query := url.Values{}
	query.Set("query", title)
	query.Set("limit", "1")
	query.Set("fields", "citationCount")
	endpoint := c.config.BaseURL + "/paper/search?" + query.Encode()

	var resp searchResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return 0, err
	}
	if len(resp.Data) == 0 {
		return 0, nil
	}
	return resp.Data[0].CitationCount, nil
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
			Source:     "Semantic Scholar",
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
