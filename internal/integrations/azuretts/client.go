// Package azuretts renders article text to an MP3 file through the Azure
// Cognitive Services text-to-speech REST endpoint.
package azuretts

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"article-valet/internal/domain"
)

const (
	outputFormat = "audio-16khz-32kbitrate-mono-mp3"
	defaultVoice = "en-GB-SoniaNeural"

	// The REST endpoint caps synthesis at 10 minutes of audio per request,
	// so long articles are synthesized in sentence-aligned chunks and the
	// CBR MP3 frames are appended to one file.
	maxChunkChars = 4000
)

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
	return fmt.Sprintf("azuretts: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client synthesizes speech through the regional TTS endpoint.
type Client struct {
	endpoint    string
	voice       string
	outputDir   string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	keyOnce sync.Once
	key     string
	keyErr  error
}

type Option func(*Client)

// WithEndpoint overrides the regional endpoint, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSpace(endpoint)
	}
}

func WithVoice(voice string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(voice); v != "" {
			c.voice = v
		}
	}
}

// WithOutputDir sets where artifact files are written (default os.TempDir()).
func WithOutputDir(dir string) Option {
	return func(c *Client) {
		if d := strings.TrimSpace(dir); d != "" {
			c.outputDir = d
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the given Azure region. The subscription key
// is fetched from SSM on the first Synthesize and reused for the lifetime of
// the process.
func NewClient(ps Getter, paramPrefix, region string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("azuretts: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("azuretts: parameter prefix must not be empty")
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return nil, errors.New("azuretts: region must not be empty")
	}
	c := &Client{
		endpoint:    fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		voice:       defaultVoice,
		outputDir:   os.TempDir(),
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.key, c.keyErr = c.getter.GetParameter(ctx, c.paramPrefix+"/speech-key")
	})
	return c.key, c.keyErr
}

// Synthesize renders text to a new MP3 file and returns the artifact. The
// caller owns the file and must remove it when the turn ends, whether or not
// delivery succeeds.
func (c *Client) Synthesize(ctx context.Context, text, title string) (domain.AudioArtifact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.AudioArtifact{}, errors.New("azuretts: text is empty")
	}

	key, err := c.resolveKey(ctx)
	if err != nil {
		return domain.AudioArtifact{}, err
	}

	path := filepath.Join(c.outputDir, uuid.NewString()+".mp3")
	out, err := os.Create(path)
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("azuretts: create artifact file: %w", err)
	}

	for _, chunk := range splitChunks(text, maxChunkChars) {
		if err := c.synthesizeChunk(ctx, key, chunk, out); err != nil {
			_ = out.Close()
			_ = os.Remove(path)
			return domain.AudioArtifact{}, err
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return domain.AudioArtifact{}, fmt.Errorf("azuretts: close artifact file: %w", err)
	}
	return domain.AudioArtifact{FilePath: path, Title: title}, nil
}

func (c *Client) synthesizeChunk(ctx context.Context, key, chunk string, out io.Writer) error {
	body, err := c.ssml(chunk)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("azuretts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	req.Header.Set("Ocp-Apim-Subscription-Key", key)
	req.Header.Set("User-Agent", "article-valet")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("azuretts: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: c.endpoint, Body: string(buf)}
	}
	if _, err := io.Copy(out, res.Body); err != nil {
		return fmt.Errorf("azuretts: read audio stream: %w", err)
	}
	return nil
}

func (c *Client) ssml(text string) (string, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", fmt.Errorf("azuretts: escape text: %w", err)
	}
	return fmt.Sprintf(
		"<speak version='1.0' xml:lang='en-GB'><voice name='%s'>%s</voice></speak>",
		c.voice, escaped.String(),
	), nil
}

// splitChunks breaks text into chunks of at most max characters, preferring
// sentence boundaries so chunk seams fall between spoken sentences.
func splitChunks(text string, max int) []string {
	var chunks []string
	for len(text) > max {
		cut := max
		if idx := strings.LastIndexAny(text[:max], ".!?\n"); idx > max/2 {
			cut = idx + 1
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
