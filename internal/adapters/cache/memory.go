package cache

import (
	"context"
	"sync"
	"time"

	"github.com/emberline/flue/pkg/metrics"
)

// memoryEntry pairs a stored entry with its expiry deadline.
type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded map with a background janitor that sweeps
// expired entries. Reads never block on the janitor; expiry is also checked
// on the read path so a stale entry is never served between sweeps.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	ttl             time.Duration
	janitorInterval time.Duration
	now             func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs a memory store with configuration options.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &MemoryStore{
		entries:         make(map[string]memoryEntry),
		ttl:             cfg.ttl,
		janitorInterval: cfg.janitorInterval,
		now:             cfg.now,
		stopChan:        make(chan struct{}),
	}
	s.startJanitor(ctx)

	return s
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheGetLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.entries[key]
	if !ok || !s.now().Before(stored.expiresAt) {
		// Expired entries are left for the janitor; they just stop
		// being served.
		return Entry{}, false, nil
	}
	return stored.entry, true, nil
}

// Put implements Store.Put.
func (s *MemoryStore) Put(ctx context.Context, key string, entry Entry) error {
	start := time.Now()
	defer func() {
		metrics.RecordCachePutLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	s.entries[key] = memoryEntry{entry: entry, expiresAt: s.now().Add(s.ttl)}
	size := len(s.entries)
	s.mu.Unlock()

	metrics.UpdateCacheEntries(size)
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	live := 0
	for _, stored := range s.entries {
		if now.Before(stored.expiresAt) {
			live++
		}
	}
	return live
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// startJanitor starts a background goroutine that sweeps expired entries at
// the configured interval.
func (s *MemoryStore) startJanitor(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.janitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// sweep deletes expired entries and refreshes the size gauge.
func (s *MemoryStore) sweep() {
	s.mu.Lock()
	now := s.now()
	for key, stored := range s.entries {
		if !now.Before(stored.expiresAt) {
			delete(s.entries, key)
		}
	}
	size := len(s.entries)
	s.mu.Unlock()

	metrics.UpdateCacheEntries(size)
}
