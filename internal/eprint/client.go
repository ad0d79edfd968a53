// Package eprint provides a client for the ePrint archive: PDF retrieval
// and title/DOI scraping from paper landing pages.
package eprint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/paperguessr/paper-guess-service/internal/domain"
	"github.com/paperguessr/paper-guess-service/internal/httpclient"
)

const (
	// DefaultBaseURL is the default archive base URL.
	DefaultBaseURL = "https://eprint.iacr.org"

	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 8 * time.Second

	// DefaultMaxPDFSize is the default maximum accepted PDF size.
	DefaultMaxPDFSize = 50 * 1024 * 1024

	// titleClass is the CSS class of the landing page's title heading.
	titleClass = "mb-3"

	// doiPrefix is the URL prefix of DOI links on landing pages.
	doiPrefix = "https://doi.org/"
)

// Config holds configuration for the archive client.
type Config struct {
	// BaseURL is the archive base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout is the per-request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the attempt budget for transient PDF fetch failures.
	// Defaults to 3.
	MaxRetries int

	// RetryDelay is the base delay between retries. Defaults to 300ms.
	RetryDelay time.Duration

	// MaxPDFSize is the maximum accepted PDF size in bytes.
	// Defaults to DefaultMaxPDFSize.
	MaxPDFSize int64

	// RateLimit is the maximum requests per second. Defaults to 5.
	RateLimit float64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 300 * time.Millisecond
	}
	if c.MaxPDFSize == 0 {
		c.MaxPDFSize = DefaultMaxPDFSize
	}
	if c.RateLimit == 0 {
		c.RateLimit = 5
	}
}

// Client fetches paper PDFs and landing-page metadata from the archive.
// It is safe for concurrent use.
type Client struct {
	config     Config
	pdfClient  *httpclient.Client
	pageClient *httpclient.Client
}

// New creates a new archive client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	// A 404 from the archive is authoritative: the sequence number does
	// not exist, so retrying is pointless.
	pdfClient := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: int(cfg.RateLimit) + 1,
		Retry: httpclient.RetryPolicy{
			MaxAttempts:        cfg.MaxRetries,
			BaseDelay:          cfg.RetryDelay,
			NonRetryableStatus: []int{http.StatusNotFound},
		},
	})

	// Metadata scraping gets a shorter budget; a missing title is not
	// worth the archive's bandwidth.
	pageClient := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: int(cfg.RateLimit) + 1,
		Retry: httpclient.RetryPolicy{
			MaxAttempts:        2,
			BaseDelay:          cfg.RetryDelay,
			NonRetryableStatus: []int{http.StatusNotFound},
		},
	})

	return &Client{
		config:     cfg,
		pdfClient:  pdfClient,
		pageClient: pageClient,
	}
}

// pdfURL returns the PDF URL for a paper key.
func (c *Client) pdfURL(key domain.PaperKey) string {
	return fmt.Sprintf("%s/%d/%04d.pdf", c.config.BaseURL, key.Year, key.Sequence)
}

// pageURL returns the landing page URL for a paper key.
func (c *Client) pageURL(key domain.PaperKey) string {
	return fmt.Sprintf("%s/%d/%04d", c.config.BaseURL, key.Year, key.Sequence)
}

// FetchPDF downloads the paper's PDF. It returns domain.ErrNotFound for
// an authoritative 404 and domain.ErrRenderFailed for transient failures
// that survived the retry budget.
func (c *Client) FetchPDF(ctx context.Context, key domain.PaperKey) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pdfURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	resp, err := c.pdfClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRenderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: paper %s", domain.ErrNotFound, key)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrRenderFailed, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return nil, fmt.Errorf("%w: Content-Type is %q", domain.ErrRenderFailed, contentType)
	}

	// Read one extra byte past the cap to detect oversized files.
	content, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxPDFSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrRenderFailed, err)
	}
	if int64(len(content)) > c.config.MaxPDFSize {
		return nil, fmt.Errorf("%w: PDF exceeds %d bytes", domain.ErrRenderFailed, c.config.MaxPDFSize)
	}

	return content, nil
}

// FetchTitleAndDOI scrapes the paper's title and optional DOI from its
// landing page. It returns domain.ErrNoTitle when the page has no title
// heading and domain.ErrNotFound for an authoritative 404.
func (c *Client) FetchTitleAndDOI(ctx context.Context, key domain.PaperKey) (title, doi string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(key), nil)
	if err != nil {
		return "", "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.pageClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", domain.ErrNoTitle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", fmt.Errorf("%w: paper %s", domain.ErrNotFound, key)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: HTTP %d", domain.ErrNoTitle, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", "", fmt.Errorf("%w: parse landing page: %w", domain.ErrNoTitle, err)
	}

	title, doi = scrapePage(doc)
	if title == "" {
		return "", "", fmt.Errorf("%w: paper %s", domain.ErrNoTitle, key)
	}
	return title, doi, nil
}

// scrapePage walks the parsed landing page and extracts the title
// heading text and the first DOI link.
func scrapePage(doc *html.Node) (title, doi string) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h3":
				if title == "" && hasClass(n, titleClass) {
					title = strings.TrimSpace(nodeText(n))
				}
			case "a":
				if doi == "" {
					if href := attr(n, "href"); strings.HasPrefix(href, doiPrefix) {
						doi = strings.TrimPrefix(href, doiPrefix)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, doi
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// hasClass reports whether the node carries the CSS class.
func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// nodeText concatenates all text content under the node.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
