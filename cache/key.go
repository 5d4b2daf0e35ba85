package cache

import (
	"net/http"
	"net/url"
)

// Key returns the cache key for a request method and URL.
// Responses are keyed by method plus the normalized request URI:
// the fragment is dropped and the query string is kept, so a navigation
// fallback lookup for the exact same request always hits the same key.
func Key(method string, u *url.URL) string {
	uri := u.EscapedPath()
	if uri == "" {
		uri = "/"
	}
	if u.RawQuery != "" {
		uri = uri + "?" + u.RawQuery
	}
	return method + ":" + uri
}

// RequestKey returns the cache key for an incoming request.
func RequestKey(r *http.Request) string {
	return Key(r.Method, r.URL)
}

// PathKey returns the cache key for a GET of the given path.
// It is used for precache population and the navigation fallback document.
func PathKey(path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return http.MethodGet + ":" + path
	}
	return Key(http.MethodGet, u)
}
