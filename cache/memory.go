package cache

import (
	"sync"

	"github.com/maypok86/otter/v2"
)

// MemCache is an in-memory Provider. Each store is backed by its own
// bounded otter cache, so deleting a generation drops all of its entries
// at once. Intended for development and tests; cached responses do not
// survive an agent restart.
type MemCache struct {
	mu          sync.RWMutex
	stores      map[string]*otter.Cache[string, []byte]
	maxPerStore int
}

// NewMemCache returns an empty in-memory provider. Each store holds at
// most maxPerStore entries, evicted by the backing cache when full.
func NewMemCache(maxPerStore int) *MemCache {
	if maxPerStore <= 0 {
		maxPerStore = 4096
	}
	return &MemCache{
		stores:      make(map[string]*otter.Cache[string, []byte]),
		maxPerStore: maxPerStore,
	}
}

func (m *MemCache) Open(store string) error {
	m.getStore(store, true)
	return nil
}

func (m *MemCache) Stores() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	return names, nil
}

func (m *MemCache) Delete(store string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, store)
	return nil
}

func (m *MemCache) Get(store, key string) ([]byte, bool, error) {
	c := m.getStore(store, false)
	if c == nil {
		return nil, false, nil
	}
	entry, ok := c.GetEntry(key)
	if !ok {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (m *MemCache) Put(store, key string, bytes []byte) error {
	m.getStore(store, true).Set(key, bytes)
	return nil
}

func (m *MemCache) Purge(store, key string) error {
	if c := m.getStore(store, false); c != nil {
		c.Invalidate(key)
	}
	return nil
}

func (m *MemCache) getStore(store string, create bool) *otter.Cache[string, []byte] {
	m.mu.RLock()
	c, ok := m.stores[store]
	m.mu.RUnlock()
	if ok || !create {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.stores[store]; ok {
		return c
	}
	c = otter.Must(&otter.Options[string, []byte]{
		MaximumSize: m.maxPerStore,
	})
	m.stores[store] = c
	return c
}
