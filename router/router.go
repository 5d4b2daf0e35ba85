// Package router intercepts outgoing application requests and applies a
// caching strategy per resource class.
package router

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rooster-app/rooster-agent/cache"
)

// Class is the resource classification of an intercepted request.
type Class string

const (
	// ClassPassThrough requests live under the API namespace: they go
	// straight to the network and are never cached, so API responses
	// cannot be served stale.
	ClassPassThrough Class = "pass-through"
	// ClassNavigation requests are full-document navigations, served
	// network-first so the shell stays reachable offline.
	ClassNavigation Class = "navigation"
	// ClassStaticAsset requests match the static-asset extension set,
	// served cache-first since assets are immutable per build.
	ClassStaticAsset Class = "static-asset"
	// ClassUnknown requests are forwarded without cache involvement.
	ClassUnknown Class = "unclassified"
)

// Static assets: scripts, compiled binary modules, stylesheets, fonts and
// images produced by the application build.
var staticAssetRe = regexp.MustCompile(`\.(js|wasm|css|woff2?|ttf|eot|png|jpe?g|gif|ico|svg|webp)$`)

// Waiter registers background work that must finish before the enclosing
// platform event is released.
type Waiter interface {
	WaitUntil(task string, fn func(context.Context) error)
}

// Config configures a request router.
type Config struct {
	// Storage for cached responses.
	Cache cache.Provider
	// Name of the current cache generation's store.
	Generation string
	// URL of the origin server.
	OriginURL *url.URL
	// Path prefix of the API namespace, never intercepted.
	APIPrefix string
	// Path of the document served as the final offline fallback for
	// navigations.
	RootDocument string
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Router decides, for every outgoing request, whether to intervene with a
// caching strategy or let the request pass through unmodified.
type Router struct {
	cache        cache.Provider
	generation   string
	origin       *url.URL
	apiPrefix    string
	rootDocument string
	client       *http.Client
	log          zerolog.Logger
}

func New(config Config) *Router {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = log.Logger
	} else {
		logger = *config.Logger
	}
	if config.APIPrefix == "" {
		config.APIPrefix = "/api/"
	}
	if config.RootDocument == "" {
		config.RootDocument = "/index.html"
	}
	rt := &Router{
		cache:        config.Cache,
		generation:   config.Generation,
		origin:       config.OriginURL,
		apiPrefix:    config.APIPrefix,
		rootDocument: config.RootDocument,
		log:          logger.With().Str("component", "router").Logger(),
	}
	// origin requests must not follow redirects: the redirect response
	// itself is what gets relayed (and possibly cached)
	rt.client = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return rt
}

// Classify determines the caching strategy for a request. Classification
// order matters: the API namespace always wins, navigations beat the
// extension match.
func (rt *Router) Classify(r *http.Request) Class {
	if strings.HasPrefix(r.URL.Path, rt.apiPrefix) {
		return ClassPassThrough
	}
	if isNavigation(r) {
		return ClassNavigation
	}
	if staticAssetRe.MatchString(r.URL.Path) {
		return ClassStaticAsset
	}
	return ClassUnknown
}

// isNavigation reports whether the request represents a full-document
// navigation. Browsers flag this in Sec-Fetch-Mode; when the header is
// absent, a GET that accepts HTML is treated the same.
func isNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}

// Route serves one intercepted request. Cache writes are registered on evt
// so the enclosing event can join them after the response is sent: writes
// never delay the response, but the event is not released until they
// settle.
func (rt *Router) Route(evt Waiter, w http.ResponseWriter, r *http.Request) {
	class := rt.Classify(r)
	logger := rt.log.With().Str("class", string(class)).Str("url", r.URL.RequestURI()).Logger()

	switch class {
	case ClassNavigation:
		rt.serveNavigation(evt, w, r, logger)
	case ClassStaticAsset:
		rt.serveStaticAsset(evt, w, r, logger)
	default:
		// pass-through and unclassified requests skip the cache entirely
		rt.proxy(w, r, logger)
	}
}

// serveNavigation is the network-first strategy. A live response is
// relayed and stored unconditionally; on network failure the exact request
// is looked up in the cache, then the root document, in that order.
func (rt *Router) serveNavigation(evt Waiter, w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	key := cache.RequestKey(r)
	res, err := rt.fetch(r)
	if err == nil {
		rt.storeAsync(evt, key, res, logger)
		setCacheStatus(w.Header(), fwdMiss)
		rt.send(w, res, logger)
		return
	}

	logger.Warn().Err(err).Msg("network fetch failed, falling back to cache")
	if rt.sendCached(w, key, hit, logger) {
		return
	}
	if rt.sendCached(w, cache.PathKey(rt.rootDocument), fallback, logger) {
		return
	}
	http.Error(w, "offline and not cached", http.StatusBadGateway)
}

// serveStaticAsset is the cache-first strategy. A cached copy is returned
// without touching the network; otherwise the asset is fetched and, only
// if the response is successful, stored for next time.
func (rt *Router) serveStaticAsset(evt Waiter, w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	key := cache.RequestKey(r)
	if rt.sendCached(w, key, hit, logger) {
		return
	}
	res, err := rt.fetch(r)
	if err != nil {
		logger.Warn().Err(err).Msg("could not fetch asset")
		http.Error(w, "could not reach origin", http.StatusBadGateway)
		return
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		rt.storeAsync(evt, key, res, logger)
	}
	setCacheStatus(w.Header(), fwdMiss)
	rt.send(w, res, logger)
}

// proxy pipes the request to the origin and relays the response untouched.
func (rt *Router) proxy(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	res, err := rt.fetch(r)
	if err != nil {
		logger.Warn().Err(err).Msg("could not reach origin")
		http.Error(w, "could not reach origin", http.StatusBadGateway)
		return
	}
	setCacheStatus(w.Header(), fwdBypass)
	rt.send(w, res, logger)
}

// storeAsync registers a best-effort cache write on the enclosing event.
// The response is encoded (and its body restored) before the response is
// sent, so the write cannot race the client copy of the body.
func (rt *Router) storeAsync(evt Waiter, key string, res *http.Response, logger zerolog.Logger) {
	b, err := cache.EncodeResponse(res)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("could not encode response for caching")
		return
	}
	evt.WaitUntil("cache-write", func(ctx context.Context) error {
		if err := rt.cache.Put(rt.generation, key, b); err != nil {
			return err
		}
		logger.Debug().Str("key", key).Msg("cache write")
		return nil
	})
}

// sendCached serves the stored response for key, if one exists. A stored
// entry that can no longer be decoded is purged and treated as a miss.
func (rt *Router) sendCached(w http.ResponseWriter, key string, status string, logger zerolog.Logger) bool {
	b, ok, err := rt.cache.Get(rt.generation, key)
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("could not read from cache")
		return false
	}
	if !ok {
		return false
	}
	res, err := cache.DecodeResponse(b)
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("corrupted cache entry, purging")
		rt.cache.Purge(rt.generation, key)
		return false
	}
	logger.Debug().Str("key", key).Msg("cache hit")
	setCacheStatus(w.Header(), status)
	rt.send(w, res, logger)
	return true
}

// fetch requests the resource specified in the incoming request from the
// origin.
func (rt *Router) fetch(r *http.Request) (*http.Response, error) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, rt.origin.String()+r.URL.RequestURI(), r.Body)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, r.Header)
	req.Host = rt.origin.Host
	return rt.client.Do(req)
}

// send relays a response to the client.
func (rt *Router) send(w http.ResponseWriter, res *http.Response, logger zerolog.Logger) {
	defer res.Body.Close()
	copyHeader(w.Header(), res.Header)
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		logger.Error().Err(err).Msg("could not write response body to client")
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
