package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/emberline/flue/pkg/logger"
	"github.com/emberline/flue/pkg/metrics"
)

// BadgerStore persists entries in a badger database and leans on badger's
// native per-entry TTL for expiry, so cached responses survive restarts
// without outliving their deadline.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration

	gcDiscardRatio float64
	log            logger.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// badgerLogger adapts the process logger to badger's Logger interface.
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Info(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

// NewBadgerStore opens a badger-backed store with configuration options.
// Persistent stores need WithPath; WithInMemory(true) keeps everything in
// RAM, which is what the tests use.
func NewBadgerStore(ctx context.Context, opts ...Option) (*BadgerStore, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.inMemory && cfg.path == "" {
		return nil, fmt.Errorf("%w: path is required for a persistent store", ErrOpenStore)
	}

	var badgerOpts badger.Options
	if cfg.inMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.path, 0o750); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpenStore, err)
		}
		badgerOpts = badger.DefaultOptions(cfg.path)
	}
	badgerOpts = badgerOpts.WithSyncWrites(cfg.syncWrites).WithNumVersionsToKeep(1)
	if cfg.log != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{log: cfg.log})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenStore, err)
	}

	s := &BadgerStore{
		db:             db,
		ttl:            cfg.ttl,
		gcDiscardRatio: cfg.gcDiscardRatio,
		log:            cfg.log,
		stopChan:       make(chan struct{}),
	}
	if cfg.gcInterval > 0 && !cfg.inMemory {
		s.startGC(ctx, cfg.gcInterval)
	}

	return s, nil
}

// Get implements Store.Get. Badger drops expired items from reads on its
// own, so an expired key surfaces as ErrKeyNotFound.
func (s *BadgerStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheGetLatency(float64(time.Since(start).Milliseconds()))
	}()

	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return Entry{}, false, nil
	case err != nil:
		metrics.RecordErrorByComponent("cache", "read_failed")
		return Entry{}, false, fmt.Errorf("%w: %w", ErrReadEntry, err)
	}
	return entry, true, nil
}

// Put implements Store.Put.
func (s *BadgerStore) Put(ctx context.Context, key string, entry Entry) error {
	start := time.Now()
	defer func() {
		metrics.RecordCachePutLatency(float64(time.Since(start).Milliseconds()))
	}()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteEntry, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(s.ttl))
	})
	if err != nil {
		metrics.RecordErrorByComponent("cache", "write_failed")
		return fmt.Errorf("%w: %w", ErrWriteEntry, err)
	}
	return nil
}

// Len returns the number of live entries by walking the key space. Expired
// keys are skipped by the iterator.
func (s *BadgerStore) Len(ctx context.Context) int {
	count := 0
	_ = s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false

		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count
}

// Close stops the GC goroutine and closes the database.
func (s *BadgerStore) Close() error {
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return s.db.Close()
}

// startGC starts a background goroutine that reclaims value log space at the
// given interval.
func (s *BadgerStore) startGC(ctx context.Context, interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.runGC(ctx)
			}
		}
	}()
}

// runGC triggers one value log GC cycle and refreshes the size gauge.
// badger.ErrNoRewrite just means there was nothing worth collecting.
func (s *BadgerStore) runGC(ctx context.Context) {
	if err := s.db.RunValueLogGC(s.gcDiscardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		if s.log != nil {
			s.log.Warn(ctx, "badger value log GC failed", logger.Error(err))
		}
	}
	metrics.UpdateCacheEntries(s.Len(ctx))
}
