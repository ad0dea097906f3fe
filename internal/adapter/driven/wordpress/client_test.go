package wordpress_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/wpdispatch/internal/adapter/driven/wordpress"
)

func TestClient_Endpoints(t *testing.T) {
	tests := []struct {
		name string
		path string
		call func(*wordpress.Client) ([]byte, error)
	}{
		{"posts", "/wp-json/wp/v2/posts", func(c *wordpress.Client) ([]byte, error) { return c.Posts(context.Background()) }},
		{"products", "/wp-json/wp/v2/products", func(c *wordpress.Client) ([]byte, error) { return c.Products(context.Background()) }},
		{"site info", "/wp-json/wp/v2", func(c *wordpress.Client) ([]byte, error) { return c.SiteInfo(context.Background()) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`[{"id":1}]`))
			}))
			defer srv.Close()

			body, err := tc.call(wordpress.NewClient(srv.URL + "/"))

			require.NoError(t, err)
			assert.Equal(t, tc.path, gotPath)
			assert.JSONEq(t, `[{"id":1}]`, string(body))
		})
	}
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"rest_no_route"}`))
	}))
	defer srv.Close()

	_, err := wordpress.NewClient(srv.URL).Products(context.Background())

	require.Error(t, err)
	var statusErr *wordpress.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "rest_no_route")
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := wordpress.NewClient(srv.URL).Posts(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestClient_RevalidatesWithETag(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Shop"}`))
	}))
	defer srv.Close()

	client := wordpress.NewClient(srv.URL)

	first, err := client.SiteInfo(context.Background())
	require.NoError(t, err)
	second, err := client.SiteInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), notModified.Load())
	assert.JSONEq(t, string(first), string(second))
}
