// Package wordpress implements the WordPressClient port against the
// WordPress REST API (wp-json/wp/v2).
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WordPressClient = (*Client)(nil)

// RequestTimeout bounds a single WordPress REST call.
const RequestTimeout = 15 * time.Second

const apiPath = "/wp-json/wp/v2"

// maxBodyBytes caps how much of a WordPress response is buffered.
const maxBodyBytes = 10 << 20

// StatusError is a WordPress response with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("wordpress %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("wordpress %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client reads posts, products, and site information from a WordPress site.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the site at siteURL. Responses are kept in
// an in-memory cache and revalidated with ETag / Last-Modified.
func NewClient(siteURL string) *Client {
	return NewClientWithHTTPClient(&http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   RequestTimeout,
	}, siteURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
func NewClientWithHTTPClient(httpClient *http.Client, siteURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(siteURL, "/") + apiPath,
		httpClient: httpClient,
	}
}

// Posts returns the site's posts as returned by WordPress.
func (c *Client) Posts(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/posts")
}

// Products returns the site's products as returned by WordPress.
func (c *Client) Products(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/products")
}

// SiteInfo returns the wp/v2 namespace index, which describes the site.
func (c *Client) SiteInfo(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "")
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        url,
			Body:       truncate(strings.TrimSpace(string(body)), 200),
		}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%s returned invalid JSON", url)
	}

	return json.RawMessage(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
