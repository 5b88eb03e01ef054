package readability

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Why Gardens Matter</title></head>
<body>
<article>
<h1>Why Gardens Matter</h1>
<p>Urban gardens do more than decorate a neighbourhood. They lower ambient
temperature, absorb stormwater that would otherwise overwhelm drains, and give
pollinators a corridor through otherwise hostile terrain.</p>
<p>Community plots also change how people relate to the food they eat. A
tomato that took four months of attention tastes different from one that
arrived on a truck, and the difference is not only in the fruit.</p>
<p>City planners are starting to treat green space as infrastructure rather
than amenity, budgeting for it the way they budget for roads and pipes.</p>
</article>
</body>
</html>`

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract_HappyPath(t *testing.T) {
	srv := newServer(t, http.StatusOK, articleHTML)
	e := NewExtractor()

	content, err := e.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "Why Gardens Matter", content.Title)
	require.Contains(t, content.Text, "pollinators")
	require.Contains(t, content.Text, "infrastructure")
}

func TestExtract_EmptyURL(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract(context.Background(), "  ")
	require.Error(t, err)
}

func TestExtract_UpstreamError(t *testing.T) {
	srv := newServer(t, http.StatusForbidden, "blocked")
	e := NewExtractor()

	_, err := e.Extract(context.Background(), srv.URL)
	require.Error(t, err)
	require.ErrorContains(t, err, "unexpected status 403")
}

func TestExtract_PageWithNoArticle(t *testing.T) {
	srv := newServer(t, http.StatusOK, "<html><head></head><body></body></html>")
	e := NewExtractor()

	_, err := e.Extract(context.Background(), srv.URL)
	require.Error(t, err)
	require.ErrorContains(t, err, "no parsable article body")
}
