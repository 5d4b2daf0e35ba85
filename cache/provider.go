// Package cache stores serialized HTTP responses in named generation stores.
//
// A store holds the responses belonging to one cache generation. Exactly one
// generation is current at any time; the lifecycle manager deletes every other
// store on activation.
package cache

// Provider is an interface for a generation-store cache backend.
// It stores and retrieves []byte values, which represent HTTP responses.
//
// Implementations must be thread-safe. Concurrent writes to the same
// (store, key) pair are last-write-wins: entries are idempotent, since
// refetching the same URL yields equivalent bytes.
type Provider interface {
	// Open creates the named store if it does not already exist.
	Open(store string) error
	// Stores returns the names of all existing stores.
	Stores() ([]string, error)
	// Delete removes the named store together with all of its entries.
	// Deleting a store that does not exist is not an error.
	Delete(store string) error
	// Get returns the cached response bytes for the given key, if present.
	// The boolean indicates whether the entry was found.
	Get(store, key string) ([]byte, bool, error)
	// Put stores the given response bytes under the given key,
	// replacing any previous entry. The store is created if needed.
	Put(store, key string, bytes []byte) error
	// Purge removes a single entry from the named store.
	Purge(store, key string) error
}
