// Package storage provides the namespaced persisted key/value primitive that
// the cache, vector index, and recommendation engine are built on.
package storage

import (
	"context"
	"errors"
)

// ErrStorageFull is returned by Set when the backend is out of capacity,
// either because the configured byte quota is exhausted or because the
// underlying store reported a full disk. Backends translate their own error
// shapes into this sentinel so callers never match on message strings.
var ErrStorageFull = errors.New("storage full")

// Storage is a flat async-safe key/value store. Keys are namespaced by
// convention with a "<component>:" prefix.
type Storage interface {
	// Get returns the stored value. The bool reports whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value, replacing any previous one. Returns ErrStorageFull
	// (possibly wrapped) when out of capacity.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes a key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys lists all keys with the given prefix. An empty prefix lists
	// everything.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// SizeBytes reports the approximate on-disk size of the stored data.
	SizeBytes(ctx context.Context) (int64, error)

	// Close releases the backend.
	Close() error
}
