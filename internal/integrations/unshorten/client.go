// Package unshorten resolves shortened article URLs by following their HTTP
// redirect chain and reporting the final location.
package unshorten

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Client follows redirects with a bounded HTTP client.
type Client struct {
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client with a 10s default timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{httpClient: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve issues a GET and returns the URL the final response was served
// from. Shortener hosts redirect to the canonical article URL; the body is
// discarded.
func (c *Client) Resolve(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("unshorten: url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("unshorten: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("unshorten: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 400 {
		return "", fmt.Errorf("unshorten: unexpected status %d from %s", res.StatusCode, rawURL)
	}
	if res.Request == nil || res.Request.URL == nil {
		return "", errors.New("unshorten: response carries no final url")
	}
	return res.Request.URL.String(), nil
}
