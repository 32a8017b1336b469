// Package cache defines the compute response cache interface and its
// in-memory and badger-backed implementations.
package cache

import (
	"time"

	"github.com/emberline/flue/pkg/logger"
)

// settings is shared by both store implementations; each constructor reads
// the fields it cares about.
type settings struct {
	ttl             time.Duration
	janitorInterval time.Duration
	now             func() time.Time
	path            string
	inMemory        bool
	syncWrites      bool
	gcInterval      time.Duration
	gcDiscardRatio  float64
	log             logger.Logger
}

func defaultSettings() settings {
	return settings{
		ttl:             time.Minute,
		janitorInterval: 15 * time.Second,
		now:             time.Now,
		syncWrites:      false,
		gcInterval:      5 * time.Minute,
		gcDiscardRatio:  0.5,
	}
}

// Option applies a configuration option to a store.
type Option func(*settings)

// WithTTL sets how long entries stay live after Put.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithJanitorInterval sets how often the memory store sweeps expired entries.
func WithJanitorInterval(interval time.Duration) Option {
	return func(s *settings) {
		if interval > 0 {
			s.janitorInterval = interval
		}
	}
}

// WithClock substitutes the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPath sets the directory for badger database files.
func WithPath(path string) Option {
	return func(s *settings) {
		if path != "" {
			s.path = path
		}
	}
}

// WithInMemory keeps the badger store off disk entirely.
func WithInMemory(inMemory bool) Option {
	return func(s *settings) {
		s.inMemory = inMemory
	}
}

// WithSyncWrites enables synchronous badger writes for durability.
func WithSyncWrites(sync bool) Option {
	return func(s *settings) {
		s.syncWrites = sync
	}
}

// WithGCInterval sets how often the badger value log is garbage collected.
// Zero disables collection.
func WithGCInterval(interval time.Duration) Option {
	return func(s *settings) {
		if interval >= 0 {
			s.gcInterval = interval
		}
	}
}

// WithLogger routes store and badger-internal logging through the given
// logger instead of discarding it.
func WithLogger(log logger.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}
