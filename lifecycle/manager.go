// Package lifecycle owns cache generation versioning. It runs once per
// install/activate cycle and guarantees that after activation at most one
// generation's store exists.
package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rooster-app/rooster-agent/cache"
)

// Claimer takes control of all open application windows.
type Claimer interface {
	Claim()
}

// Manager runs the install/activate cycle for the current cache generation.
type Manager struct {
	provider   cache.Provider
	generation string
	origin     *url.URL
	precache   []string
	windows    Claimer
	client     *http.Client
	log        zerolog.Logger

	mu        sync.Mutex
	activated bool
}

func NewManager(provider cache.Provider, generation string, origin *url.URL, precache []string, windows Claimer, logger zerolog.Logger) *Manager {
	return &Manager{
		provider:   provider,
		generation: generation,
		origin:     origin,
		precache:   precache,
		windows:    windows,
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        logger.With().Str("component", "lifecycle").Str("generation", generation).Logger(),
	}
}

// Install opens the current generation's store and populates it with the
// precache manifest. Precaching is best-effort: a failed fetch is logged
// and skipped, never blocking activation, since the missing asset will be
// fetched live on first real access. Install fails only if the store
// itself cannot be opened.
func (m *Manager) Install(ctx context.Context) error {
	m.log.Info().Msg("installing")
	if err := m.provider.Open(m.generation); err != nil {
		return fmt.Errorf("opening cache store %q: %w", m.generation, err)
	}
	for _, path := range m.precache {
		m.precacheOne(ctx, path)
	}
	return nil
}

func (m *Manager) precacheOne(ctx context.Context, path string) {
	target := m.origin.String() + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		m.log.Warn().Err(err).Str("path", path).Msg("could not build precache request")
		return
	}
	res, err := m.client.Do(req)
	if err != nil {
		m.log.Warn().Err(err).Str("path", path).Msg("precache fetch failed")
		return
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		m.log.Warn().Int("status", res.StatusCode).Str("path", path).Msg("precache fetch unsuccessful")
		return
	}
	b, err := cache.EncodeResponse(res)
	if err != nil {
		m.log.Warn().Err(err).Str("path", path).Msg("could not encode precache response")
		return
	}
	if err := m.provider.Put(m.generation, cache.PathKey(path), b); err != nil {
		m.log.Warn().Err(err).Str("path", path).Msg("could not store precache response")
		return
	}
	m.log.Debug().Str("path", path).Msg("precached")
}

// Activate deletes every cache store whose name differs from the current
// generation and claims all open application windows, so the new version
// takes control without waiting for a reload. Activating again with no new
// install deletes nothing further.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info().Msg("activating")
	stores, err := m.provider.Stores()
	if err != nil {
		return fmt.Errorf("listing cache stores: %w", err)
	}
	for _, store := range stores {
		if store == m.generation {
			continue
		}
		if err := m.provider.Delete(store); err != nil {
			m.log.Error().Err(err).Str("store", store).Msg("could not delete stale cache store")
			continue
		}
		m.log.Info().Str("store", store).Msg("deleted stale cache store")
	}
	m.windows.Claim()
	m.activated = true
	return nil
}

// SkipWaiting applies a pending installation immediately instead of
// waiting for all application windows to close. It is a no-op when the
// current generation is already active.
func (m *Manager) SkipWaiting(ctx context.Context) error {
	m.mu.Lock()
	pending := !m.activated
	m.mu.Unlock()

	if !pending {
		m.log.Debug().Msg("skip waiting requested but no installation pending")
		return nil
	}
	m.log.Info().Msg("skipping waiting period")
	return m.Activate(ctx)
}
