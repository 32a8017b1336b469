// Package cache defines the compute response cache interface and its
// in-memory and badger-backed implementations.
package cache

import (
	"context"
	"time"
)

// Entry is one cached compute response: the replayable body plus the
// response headers captured when it was stored.
type Entry struct {
	Header   map[string]string `json:"header"`
	Body     []byte            `json:"body"`
	StoredAt time.Time         `json:"stored_at"`
}

// Store provides TTL-bounded access to cached compute responses keyed by
// canonical request digests.
type Store interface {
	// Get returns the entry stored under key. The boolean reports whether
	// a live entry was found; expired entries count as absent.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Put stores an entry under key, replacing any previous one.
	// The entry expires after the store's TTL.
	Put(ctx context.Context, key string, entry Entry) error

	// Len returns the number of live entries.
	Len(ctx context.Context) int

	// Close releases background resources.
	Close() error
}
