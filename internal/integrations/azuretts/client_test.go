package azuretts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	key   string
	err   error
	calls int32
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.key, f.err
}

type capturedRequest struct {
	body        string
	contentType string
	format      string
	key         string
}

func newTestServer(t *testing.T, status int, audio string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var requests []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		requests = append(requests, capturedRequest{
			body:        string(body),
			contentType: r.Header.Get("Content-Type"),
			format:      r.Header.Get("X-Microsoft-OutputFormat"),
			key:         r.Header.Get("Ocp-Apim-Subscription-Key"),
		})
		w.WriteHeader(status)
		io.WriteString(w, audio)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestClient(t *testing.T, getter Getter, endpoint string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithEndpoint(endpoint), WithOutputDir(t.TempDir())}, opts...)
	c, err := NewClient(getter, "/prefix", "uksouth", opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/prefix", "uksouth")
	require.Error(t, err)

	_, err = NewClient(&fakeGetter{}, "", "uksouth")
	require.Error(t, err)

	_, err = NewClient(&fakeGetter{}, "/prefix", "  ")
	require.Error(t, err)
}

func TestSynthesize_WritesArtifactFile(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK, "MP3DATA")
	getter := &fakeGetter{key: "speech-key"}
	c := newTestClient(t, getter, srv.URL)

	artifact, err := c.Synthesize(context.Background(), "Hello there, reader.", "Hello")
	require.NoError(t, err)
	require.Equal(t, "Hello", artifact.Title)
	require.Equal(t, ".mp3", filepath.Ext(artifact.FilePath))

	data, err := os.ReadFile(artifact.FilePath)
	require.NoError(t, err)
	require.Equal(t, "MP3DATA", string(data))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	require.Equal(t, "application/ssml+xml", req.contentType)
	require.Equal(t, outputFormat, req.format)
	require.Equal(t, "speech-key", req.key)
	require.Contains(t, req.body, "<voice name='en-GB-SoniaNeural'>")
	require.Contains(t, req.body, "Hello there, reader.")
}

func TestSynthesize_EscapesMarkupInText(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK, "A")
	c := newTestClient(t, &fakeGetter{key: "k"}, srv.URL)

	_, err := c.Synthesize(context.Background(), "tags like <b> & friends", "T")
	require.NoError(t, err)
	require.Contains(t, (*requests)[0].body, "&lt;b&gt; &amp; friends")
}

func TestSynthesize_ChunksLongText(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK, "X")
	c := newTestClient(t, &fakeGetter{key: "k"}, srv.URL)

	// Well over one chunk, with sentence boundaries to split on.
	sentence := strings.Repeat("w", 200) + ". "
	long := strings.Repeat(sentence, 50)

	artifact, err := c.Synthesize(context.Background(), long, "Long")
	require.NoError(t, err)
	require.Greater(t, len(*requests), 1)

	// One response per chunk, appended in order.
	data, err := os.ReadFile(artifact.FilePath)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("X", len(*requests)), string(data))
}

func TestSynthesize_KeyResolvedOnce(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, "X")
	getter := &fakeGetter{key: "k"}
	c := newTestClient(t, getter, srv.URL)

	_, err := c.Synthesize(context.Background(), "one", "T")
	require.NoError(t, err)
	_, err = c.Synthesize(context.Background(), "two", "T")
	require.NoError(t, err)
	require.Equal(t, int32(1), getter.calls)
}

func TestSynthesize_EmptyText(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK, "X")
	c := newTestClient(t, &fakeGetter{key: "k"}, srv.URL)

	_, err := c.Synthesize(context.Background(), "   ", "T")
	require.Error(t, err)
	require.Empty(t, *requests)
}

func TestSynthesize_UpstreamErrorLeavesNoFile(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusTooManyRequests, "throttled")
	dir := t.TempDir()
	c, err := NewClient(&fakeGetter{key: "k"}, "/prefix", "uksouth",
		WithEndpoint(srv.URL), WithOutputDir(dir))
	require.NoError(t, err)

	_, err = c.Synthesize(context.Background(), "some text", "T")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)

	// The partial artifact must not be left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSplitChunks(t *testing.T) {
	require.Nil(t, splitChunks("", 10))
	require.Equal(t, []string{"short"}, splitChunks("short", 10))

	chunks := splitChunks("First sentence. Second one here.", 20)
	require.Equal(t, []string{"First sentence.", "Second one here."}, chunks)

	// No boundary in range: hard cut at max.
	chunks = splitChunks(strings.Repeat("a", 25), 10)
	require.Equal(t, []string{
		strings.Repeat("a", 10),
		strings.Repeat("a", 10),
		strings.Repeat("a", 5),
	}, chunks)
}
