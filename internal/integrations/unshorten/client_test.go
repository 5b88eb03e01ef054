package unshorten

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve_FollowsRedirectChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hop", http.StatusFound)
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/article?id=42", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "the article")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient()
	final, err := c.Resolve(context.Background(), srv.URL+"/short")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/article?id=42", final)
}

func TestResolve_NoRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "plain page")
	}))
	t.Cleanup(srv.Close)

	c := NewClient()
	final, err := c.Resolve(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/page", final)
}

func TestResolve_EmptyURL(t *testing.T) {
	c := NewClient()
	_, err := c.Resolve(context.Background(), "")
	require.Error(t, err)
}

func TestResolve_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	c := NewClient()
	_, err := c.Resolve(context.Background(), srv.URL+"/dead")
	require.Error(t, err)
	require.ErrorContains(t, err, "unexpected status 410")
}
