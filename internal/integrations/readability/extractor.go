// Package readability downloads a rendered article page and extracts its
// title and plain text.
package readability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"article-valet/internal/domain"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Extractor downloads and parses article pages with a bounded HTTP client.
type Extractor struct {
	httpClient *http.Client
}

type Option func(*Extractor)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(e *Extractor) {
		e.httpClient = httpClient
	}
}

// NewExtractor creates an Extractor with a 30s default timeout.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract downloads the page and returns its title and text. An empty title
// or body is a failure, not a degenerate success: a page with nothing to
// read cannot be narrated or delivered.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (domain.ArticleContent, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return domain.ArticleContent{}, errors.New("readability: url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return domain.ArticleContent{}, fmt.Errorf("readability: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := e.httpClient.Do(req)
	if err != nil {
		return domain.ArticleContent{}, fmt.Errorf("readability: download %s: %w", pageURL, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return domain.ArticleContent{}, fmt.Errorf("readability: unexpected status %d from %s", res.StatusCode, pageURL)
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return domain.ArticleContent{}, fmt.Errorf("readability: parse url: %w", err)
	}
	article, err := readability.FromReader(io.LimitReader(res.Body, 4<<20), parsedURL)
	if err != nil {
		return domain.ArticleContent{}, fmt.Errorf("readability: parse %s: %w", pageURL, err)
	}

	title := strings.TrimSpace(article.Title)
	text := strings.TrimSpace(article.TextContent)
	if title == "" || text == "" {
		return domain.ArticleContent{}, fmt.Errorf("readability: no parsable article body at %s", pageURL)
	}
	return domain.ArticleContent{Title: title, Text: text}, nil
}
