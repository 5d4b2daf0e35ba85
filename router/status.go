package router

import "net/http"

// Cache-Status values in RFC 9211 syntax, for observability of which
// strategy produced a response.
const (
	hit       = "hit"
	fwdMiss   = "fwd=miss"
	fwdBypass = "fwd=bypass"
	// fallback marks a cached response served in place of a different,
	// uncached navigation target.
	fallback = "hit; detail=fallback"
)

func setCacheStatus(h http.Header, status string) {
	h.Set("Cache-Status", "rooster-agent; "+status)
}
