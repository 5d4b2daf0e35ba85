package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rooster-app/rooster-agent/cache"
)

// syncWaiter runs registered work immediately, so tests observe cache
// writes as soon as Route returns.
type syncWaiter struct{}

func (syncWaiter) WaitUntil(_ string, fn func(context.Context) error) {
	fn(context.Background())
}

type testOrigin struct {
	server   *httptest.Server
	url      *url.URL
	requests []string
}

func newTestOrigin(t *testing.T, handler http.HandlerFunc) *testOrigin {
	t.Helper()
	o := &testOrigin{}
	o.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.requests = append(o.requests, r.URL.RequestURI())
		handler(w, r)
	}))
	t.Cleanup(o.server.Close)
	u, err := url.Parse(o.server.URL)
	require.NoError(t, err)
	o.url = u
	return o
}

func newTestRouter(origin *testOrigin, provider cache.Provider) *Router {
	logger := zerolog.Nop()
	return New(Config{
		Cache:      provider,
		Generation: "v1",
		OriginURL:  origin.url,
		Logger:     &logger,
	})
}

func navRequest(path string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("Sec-Fetch-Mode", "navigate")
	return r
}

func TestClassify(t *testing.T) {
	rt := newTestRouter(newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {}), cache.NewMemCache(16))

	tests := []struct {
		name     string
		request  *http.Request
		expected Class
	}{
		{"api path", httptest.NewRequest(http.MethodGet, "/api/shifts", nil), ClassPassThrough},
		{"api path wins over navigation", navRequest("/api/shifts"), ClassPassThrough},
		{"fetch-mode navigation", navRequest("/assignments"), ClassNavigation},
		{"accept-header navigation", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/assignments", nil)
			r.Header.Set("Accept", "text/html,application/xhtml+xml")
			return r
		}(), ClassNavigation},
		{"navigation wins over extension", navRequest("/download/report.png"), ClassNavigation},
		{"script", httptest.NewRequest(http.MethodGet, "/main.dart.js", nil), ClassStaticAsset},
		{"wasm", httptest.NewRequest(http.MethodGet, "/canvaskit/canvaskit.wasm", nil), ClassStaticAsset},
		{"font", httptest.NewRequest(http.MethodGet, "/fonts/Roboto.woff2", nil), ClassStaticAsset},
		{"icon", httptest.NewRequest(http.MethodGet, "/icons/Icon-192.png", nil), ClassStaticAsset},
		{"no extension no headers", httptest.NewRequest(http.MethodGet, "/ping", nil), ClassUnknown},
		{"cors fetch of asset path", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/report", nil)
			r.Header.Set("Sec-Fetch-Mode", "cors")
			return r
		}(), ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rt.Classify(tt.request))
		})
	}
}

func TestPassThroughNeverTouchesCache(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"shifts":[]}`))
	})
	provider := cache.NewMemCache(16)
	rt := newTestRouter(origin, provider)

	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, httptest.NewRequest(http.MethodGet, "/api/shifts", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"shifts":[]}`, w.Body.String())
	assert.Equal(t, "rooster-agent; fwd=bypass", w.Header().Get("Cache-Status"))

	_, ok, err := provider.Get("v1", "GET:/api/shifts")
	require.NoError(t, err)
	assert.False(t, ok, "API responses must never be cached")
}

func TestPassThroughOffline(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {})
	origin.server.Close()
	rt := newTestRouter(origin, cache.NewMemCache(16))

	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, httptest.NewRequest(http.MethodGet, "/api/shifts", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestNavigationNetworkFirst(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>live</html>"))
	})
	provider := cache.NewMemCache(16)
	rt := newTestRouter(origin, provider)

	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, navRequest("/assignments"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>live</html>", w.Body.String())
	assert.Equal(t, "rooster-agent; fwd=miss", w.Header().Get("Cache-Status"))

	// the live response was stored for offline use
	b, ok, err := provider.Get("v1", "GET:/assignments")
	require.NoError(t, err)
	require.True(t, ok)
	res, err := cache.DecodeResponse(b)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "<html>live</html>", string(body))
}

func TestNavigationFallsBackToCachedCopy(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>live</html>"))
	})
	provider := cache.NewMemCache(16)
	rt := newTestRouter(origin, provider)

	// warm the cache, then go offline
	rt.Route(syncWaiter{}, httptest.NewRecorder(), navRequest("/assignments"))
	origin.server.Close()

	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, navRequest("/assignments"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>live</html>", w.Body.String())
	assert.Equal(t, "rooster-agent; hit", w.Header().Get("Cache-Status"))
}

func TestNavigationFallsBackToRootDocument(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>shell</html>"))
	})
	provider := cache.NewMemCache(16)
	rt := newTestRouter(origin, provider)

	rt.Route(syncWaiter{}, httptest.NewRecorder(), navRequest("/index.html"))
	origin.server.Close()

	// a page never visited while online falls back to the shell
	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, navRequest("/assignments/42"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>shell</html>", w.Body.String())
	assert.Equal(t, "rooster-agent; hit; detail=fallback", w.Header().Get("Cache-Status"))
}

func TestNavigationOfflineNothingCached(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {})
	origin.server.Close()
	rt := newTestRouter(origin, cache.NewMemCache(16))

	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, navRequest("/assignments"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStaticAssetCacheFirst(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset bytes"))
	})
	provider := cache.NewMemCache(16)
	rt := newTestRouter(origin, provider)

	first := httptest.NewRecorder()
	rt.Route(syncWaiter{}, first, httptest.NewRequest(http.MethodGet, "/main.dart.js", nil))
	assert.Equal(t, "rooster-agent; fwd=miss", first.Header().Get("Cache-Status"))
	require.Len(t, origin.requests, 1)

	// a second request is served from the cache without touching the network
	second := httptest.NewRecorder()
	rt.Route(syncWaiter{}, second, httptest.NewRequest(http.MethodGet, "/main.dart.js", nil))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "asset bytes", second.Body.String())
	assert.Equal(t, "rooster-agent; hit", second.Header().Get("Cache-Status"))
	assert.Len(t, origin.requests, 1)
}

func TestStaticAssetFailureNotCached(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	provider := cache.NewMemCache(16)
	rt := newTestRouter(origin, provider)

	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, httptest.NewRequest(http.MethodGet, "/gone.css", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, ok, err := provider.Get("v1", "GET:/gone.css")
	require.NoError(t, err)
	assert.False(t, ok, "unsuccessful responses must not be cached")
}

func TestStaticAssetOfflineMiss(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {})
	origin.server.Close()
	rt := newTestRouter(origin, cache.NewMemCache(16))

	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, httptest.NewRequest(http.MethodGet, "/main.dart.js", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCorruptedCacheEntryPurged(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh"))
	})
	provider := cache.NewMemCache(16)
	require.NoError(t, provider.Put("v1", "GET:/app.js", []byte("not a response")))
	rt := newTestRouter(origin, provider)

	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, httptest.NewRequest(http.MethodGet, "/app.js", nil))

	// the corrupted entry is treated as a miss and replaced
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh", w.Body.String())

	b, ok, err := provider.Get("v1", "GET:/app.js")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = cache.DecodeResponse(b)
	assert.NoError(t, err)
}

func TestRedirectsAreRelayedNotFollowed(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		w.Write([]byte("destination"))
	})
	rt := newTestRouter(origin, cache.NewMemCache(16))

	w := httptest.NewRecorder()
	rt.Route(syncWaiter{}, w, httptest.NewRequest(http.MethodGet, "/old", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/new", w.Header().Get("Location"))
	assert.Len(t, origin.requests, 1)
}

func TestFetchForwardsHeadersAndQuery(t *testing.T) {
	var gotAccept, gotURI string
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotURI = r.URL.RequestURI()
	})
	rt := newTestRouter(origin, cache.NewMemCache(16))

	r := httptest.NewRequest(http.MethodGet, "/search?q=night+shift", nil)
	r.Header.Set("Accept", "application/json")
	rt.Route(syncWaiter{}, httptest.NewRecorder(), r)

	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "/search?q=night+shift", gotURI)
}

func TestPostBodyForwarded(t *testing.T) {
	var gotBody string
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	})
	rt := newTestRouter(origin, cache.NewMemCache(16))

	r := httptest.NewRequest(http.MethodPost, "/api/shifts", strings.NewReader(`{"shift":1}`))
	rt.Route(syncWaiter{}, httptest.NewRecorder(), r)

	assert.Equal(t, `{"shift":1}`, gotBody)
}
