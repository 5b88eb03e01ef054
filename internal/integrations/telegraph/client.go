// Package telegraph publishes articles as Telegraph instant-view pages.
//
// A publish call downloads the (possibly mirror-rewritten) source page,
// reduces it to readable paragraphs, and creates a fresh Telegraph page via
// the createPage API. Pages are never cached or reused: source articles may
// change between submissions, so every call forces a new render.
package telegraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"

	"article-valet/internal/domain"
	"article-valet/internal/normalize"
)

const (
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Telegraph rejects content over 64 KB; stay under it with room for
	// the JSON node framing.
	maxContentBytes = 60 * 1024
	maxTitleLen     = 256
)

// node is the Telegraph DOM node shape accepted by createPage. Only "p"
// nodes with text children are emitted.
type node struct {
	Tag      string   `json:"tag"`
	Children []string `json:"children"`
}

// createPageResponse is the minimal response shape of the createPage endpoint.
type createPageResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Result struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	} `json:"result"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("telegraph: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client publishes pages through the Telegraph API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given paramstore.Getter for access
// token retrieval. The token is fetched from SSM on the first Publish and
// reused for the lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("telegraph: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("telegraph: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     "https://api.telegra.ph",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenOnce.Do(func() {
		c.token, c.tokenErr = c.getter.GetParameter(ctx, c.paramPrefix+"/telegraph-token")
	})
	return c.token, c.tokenErr
}

// Publish renders the article behind fetchURL as a fresh Telegraph page.
// originalURL is the URL the user actually submitted, before any bypass
// rewrite; the returned Domain is its registrable domain and is what audio
// attribution later uses.
func (c *Client) Publish(ctx context.Context, originalURL, fetchURL string) (domain.RenderedPage, error) {
	reg, err := normalize.RegistrableDomain(originalURL)
	if err != nil {
		return domain.RenderedPage{}, fmt.Errorf("telegraph: %w", err)
	}

	token, err := c.resolveToken(ctx)
	if err != nil {
		return domain.RenderedPage{}, err
	}

	title, nodes, err := c.renderSource(ctx, fetchURL)
	if err != nil {
		return domain.RenderedPage{}, err
	}

	pageURL, err := c.createPage(ctx, token, title, nodes)
	if err != nil {
		return domain.RenderedPage{}, err
	}
	return domain.RenderedPage{Domain: reg, RenderedURL: pageURL}, nil
}

// renderSource downloads the source page and reduces it to a title plus
// paragraph nodes.
func (c *Client) renderSource(ctx context.Context, fetchURL string) (string, []node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("telegraph: create source request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("telegraph: fetch source: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: fetchURL, Body: string(buf)}
	}

	parsedURL, err := url.Parse(fetchURL)
	if err != nil {
		return "", nil, fmt.Errorf("telegraph: parse fetch url: %w", err)
	}
	article, err := readability.FromReader(io.LimitReader(res.Body, 4<<20), parsedURL)
	if err != nil {
		return "", nil, fmt.Errorf("telegraph: parse source page: %w", err)
	}

	title := strings.TrimSpace(article.Title)
	nodes := paragraphNodes(article.TextContent)
	if title == "" || len(nodes) == 0 {
		return "", nil, errors.New("telegraph: source page has no parsable article body")
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	return title, nodes, nil
}

func (c *Client) createPage(ctx context.Context, token, title string, nodes []node) (string, error) {
	content, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("telegraph: marshal content: %w", err)
	}

	form := url.Values{}
	form.Set("access_token", token)
	form.Set("title", title)
	form.Set("content", string(content))
	form.Set("return_content", "false")

	endpoint := strings.TrimRight(c.baseURL, "/") + "/createPage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("telegraph: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("telegraph: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("telegraph: read response body: %w", err)
	}
	var payload createPageResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("telegraph: decode response: %w", err)
	}
	if !payload.OK {
		return "", fmt.Errorf("telegraph: createPage rejected: %s", payload.Error)
	}
	if payload.Result.URL != "" {
		return payload.Result.URL, nil
	}
	if payload.Result.Path == "" {
		return "", errors.New("telegraph: createPage returned no page url")
	}
	return "https://telegra.ph/" + payload.Result.Path, nil
}

// paragraphNodes splits extracted text into Telegraph paragraph nodes,
// truncating once the content budget is spent.
func paragraphNodes(text string) []node {
	var nodes []node
	budget := maxContentBytes
	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > budget {
			if budget > 0 {
				nodes = append(nodes, node{Tag: "p", Children: []string{para[:budget]}})
			}
			break
		}
		budget -= len(para)
		nodes = append(nodes, node{Tag: "p", Children: []string{para}})
	}
	return nodes
}
