package robots

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowedRespectsDisallow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChecker("test-agent", nil)

	allowed, err := c.IsAllowed(srv.URL + "/public")
	require.NoError(t, err)
	assert.True(t, allowed, "expected /public to be allowed")

	disallowed, err := c.IsAllowed(srv.URL + "/private/page")
	require.NoError(t, err)
	assert.False(t, disallowed, "expected /private/page to be disallowed")
}

func TestIsAllowedPermissiveOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewChecker("test-agent", nil)
	allowed, err := c.IsAllowed(srv.URL + "/anything")
	require.NoError(t, err)
	assert.True(t, allowed, "expected permissive allow when robots.txt is unavailable")
}

func TestIsAllowedCachesPerHost(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits++
			w.Write([]byte("User-agent: *\nDisallow: /no\n"))
		}
	}))
	defer srv.Close()

	c := NewChecker("test-agent", nil)
	c.IsAllowed(srv.URL + "/a")
	c.IsAllowed(srv.URL + "/b")

	assert.Equal(t, 1, hits, "expected robots.txt fetched once")
	assert.Equal(t, 1, c.CacheSize())
}

func TestIsAllowedInvalidURL(t *testing.T) {
	c := NewChecker("test-agent", nil)
	_, err := c.IsAllowed("not a url")
	assert.Error(t, err)
}
