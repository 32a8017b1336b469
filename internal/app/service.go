// Package service provides the core cache-aside service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/emberline/flue/internal/adapters/cache"
	"github.com/emberline/flue/internal/adapters/gateway"
	"github.com/emberline/flue/internal/config"
	"github.com/emberline/flue/internal/domain/canonical"
	"github.com/emberline/flue/internal/domain/catalog"
	"github.com/emberline/flue/internal/domain/engine"
	"github.com/emberline/flue/internal/domain/model"
	"github.com/emberline/flue/internal/domain/types"
	"github.com/emberline/flue/pkg/logger"
	"github.com/emberline/flue/pkg/metrics"
)

// Service implements the API dependencies for the compute cache system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   cache.Store
	gateway *gateway.Client
	engine  *engine.Engine

	// Configuration
	engineMode      string
	backendURL      string
	versionOverride string
	backendLabel    string
	cacheBackend    string
	cachePath       string
	cacheTTL        time.Duration
	coalesceEnabled bool

	// lastVersion is the most recently observed dataset version; a stale
	// read only costs an extra cache miss.
	lastVersion versionCell

	// flight shares one in-flight computation among identical concurrent
	// misses when coalescing is enabled.
	flight singleflight.Group

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBackendURL sets the upstream backend base URL. Empty leaves the
// gateway unconfigured, which fails proxy-mode computes and all exports.
func WithBackendURL(url string) Option {
	return func(s *Service) {
		s.backendURL = url
	}
}

// WithEngineMode selects proxy or local computation.
func WithEngineMode(mode string) Option {
	return func(s *Service) {
		if mode != "" {
			s.engineMode = mode
		}
	}
}

// WithDatasetVersion pins the dataset version used for cache keys.
func WithDatasetVersion(version string) Option {
	return func(s *Service) {
		s.versionOverride = version
	}
}

// WithBackendLabel tags locally computed dataset identifiers.
func WithBackendLabel(label string) Option {
	return func(s *Service) {
		if label != "" {
			s.backendLabel = label
		}
	}
}

// WithCacheBackend selects the memory or badger store.
func WithCacheBackend(backend string) Option {
	return func(s *Service) {
		if backend != "" {
			s.cacheBackend = backend
		}
	}
}

// WithCachePath sets the badger directory.
func WithCachePath(path string) Option {
	return func(s *Service) {
		s.cachePath = path
	}
}

// WithCacheTTL bounds the lifetime of cached responses.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithCoalescing shares one computation among identical concurrent misses.
func WithCoalescing(enabled bool) Option {
	return func(s *Service) {
		s.coalesceEnabled = enabled
	}
}

// WithStore substitutes the cache store; tests use it to inject a
// pre-populated or failing store.
func WithStore(store cache.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		engineMode:      config.ModeProxy,
		backendLabel:    "local",
		cacheBackend:    config.CacheMemory,
		cacheTTL:        time.Minute,
		coalesceEnabled: true,
		stopCh:          make(chan struct{}),
		logger:          nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting compute cache service...")

	s.engine = engine.New(catalog.Builtin(), engine.WithBackendLabel(s.backendLabel))

	if s.store == nil {
		switch s.cacheBackend {
		case config.CacheBadger:
			store, err := cache.NewBadgerStore(ctx,
				cache.WithTTL(s.cacheTTL),
				cache.WithPath(s.cachePath),
				cache.WithInMemory(s.cachePath == ""),
				cache.WithLogger(s.logger.Named("badger")),
			)
			if err != nil {
				return err
			}
			s.store = store
			s.logger.Info(ctx, "using badger store", logger.String("path", s.cachePath))
		default:
			s.store = cache.NewMemoryStore(ctx, cache.WithTTL(s.cacheTTL))
			s.logger.Info(ctx, "using memory store")
		}
	}

	if s.backendURL != "" {
		s.gateway = gateway.New(s.backendURL)
	}

	s.started = true
	s.logger.Info(ctx, "compute cache service started",
		logger.String("engineMode", s.engineMode),
		logger.String("cacheBackend", s.cacheBackend),
		logger.Duration("cacheTTL", s.cacheTTL),
		logger.Bool("coalescing", s.coalesceEnabled),
		logger.Bool("backendConfigured", s.gateway != nil),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping compute cache service...")

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "cache store close failed", logger.Error(err))
		}
	}

	// Signal background loops to stop
	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "compute cache service stopped")
}

// Compute runs the cache-aside protocol: derive the key, serve a live cache
// entry when one exists, otherwise compute or proxy, then store the fresh
// response before returning it.
func (s *Service) Compute(ctx context.Context, req model.ComputeRequest) (types.Outcome, error) {
	start := time.Now()
	defer func() {
		metrics.RecordComputeLatency(float64(time.Since(start).Milliseconds()))
	}()

	version := s.resolveVersion()
	key, err := canonical.Key(req.ProfileID, req.Overrides, version)
	if err != nil {
		// Validated requests always canonicalize; this is a defect.
		return types.Outcome{}, err
	}

	if entry, ok := s.lookup(ctx, key); ok {
		metrics.RecordCacheHit()
		s.logger.Debug(ctx, "cache hit",
			logger.String("key", key),
			logger.String("datasetVersion", version),
		)
		return types.Outcome{
			Body:           entry.Body,
			Header:         entry.Header,
			CacheHit:       true,
			DatasetVersion: version,
			Key:            key,
		}, nil
	}
	metrics.RecordCacheMiss()

	// A caller disconnect must not abandon the computation; the result is
	// still cached for the next caller.
	ctx = context.WithoutCancel(ctx)

	if !s.coalesceEnabled {
		return s.computeMiss(ctx, req, version, key)
	}

	outcome, err, shared := s.flight.Do(key, func() (interface{}, error) {
		return s.computeMiss(ctx, req, version, key)
	})
	if shared {
		metrics.RecordCoalescedRequest()
	}
	if err != nil {
		return types.Outcome{}, err
	}
	return outcome.(types.Outcome), nil
}

// Export forwards the request to the backend unconditionally; export
// responses vary by Accept header and are never cached.
func (s *Service) Export(ctx context.Context, req model.ComputeRequest, format gateway.Format, callerAccept string) (types.ExportReply, error) {
	gw := s.currentGateway()
	if gw == nil {
		metrics.RecordErrorByComponent("app", "backend_unconfigured")
		return types.ExportReply{}, ErrBackendUnconfigured
	}
	metrics.RecordExportRequest(format.String())
	return gw.Export(ctx, req, format, callerAccept)
}

// DatasetVersion reports the version the next compute request would key on.
func (s *Service) DatasetVersion() string {
	return s.resolveVersion()
}

// CacheTTL reports the configured entry lifetime.
func (s *Service) CacheTTL() time.Duration {
	return s.cacheTTL
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"engine_mode":   s.engineMode,
		"cache_backend": s.cacheBackend,
		"coalescing":    s.coalesceEnabled,
	}

	if s.started {
		entries := s.store.Len(ctx)
		stats["cache_entries"] = entries
		stats["cache_ttl_seconds"] = int(s.cacheTTL / time.Second)
		stats["dataset_version"] = s.resolveVersion()
		stats["backend_configured"] = s.gateway != nil

		// Update metrics
		metrics.UpdateCacheEntries(entries)
	}

	return stats
}

// computeMiss produces a fresh response for key, publishes the observed
// dataset version, and stores the response best-effort.
func (s *Service) computeMiss(ctx context.Context, req model.ComputeRequest, version, key string) (types.Outcome, error) {
	var (
		body            []byte
		observedVersion = version
	)

	switch s.engineMode {
	case config.ModeLocal:
		result, err := s.engine.Compute(req, version)
		if err != nil {
			return types.Outcome{}, err
		}
		body, err = json.Marshal(result)
		if err != nil {
			return types.Outcome{}, err
		}
	default:
		gw := s.currentGateway()
		if gw == nil {
			metrics.RecordErrorByComponent("app", "backend_unconfigured")
			return types.Outcome{}, ErrBackendUnconfigured
		}
		reply, err := gw.Compute(ctx, req)
		if err != nil {
			return types.Outcome{}, err
		}
		body = reply.Body
		if reply.DatasetVersion != "" {
			observedVersion = reply.DatasetVersion
		}
	}

	// Trust the freshest successful response about what is current.
	s.lastVersion.Store(observedVersion)
	if observedVersion != version {
		metrics.RecordDatasetVersionChange()
		s.logger.Info(ctx, "dataset version changed",
			logger.String("from", version),
			logger.String("to", observedVersion),
		)
		if rekeyed, err := canonical.Key(req.ProfileID, req.Overrides, observedVersion); err == nil {
			key = rekeyed
		}
	}

	header := map[string]string{"Content-Type": "application/json"}
	entry := cache.Entry{Header: header, Body: body, StoredAt: time.Now().UTC()}
	if err := s.store.Put(ctx, key, entry); err != nil {
		// The store is an optimization, never a correctness dependency.
		metrics.RecordCacheStoreError()
		s.logger.Warn(ctx, "cache put failed",
			logger.Error(err),
			logger.String("key", key),
		)
	}

	metrics.RecordComputeServed()
	return types.Outcome{
		Body:           body,
		Header:         header,
		CacheHit:       false,
		DatasetVersion: observedVersion,
		Key:            key,
	}, nil
}

// lookup downgrades any store error to a miss.
func (s *Service) lookup(ctx context.Context, key string) (cache.Entry, bool) {
	entry, found, err := s.store.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheStoreError()
		s.logger.Warn(ctx, "cache get failed, treating as miss",
			logger.Error(err),
			logger.String("key", key),
		)
		return cache.Entry{}, false
	}
	return entry, found
}

// resolveVersion picks the dataset version for the next key: the configured
// override, else the last observed version, else the builtin catalog version.
func (s *Service) resolveVersion() string {
	if s.versionOverride != "" {
		return s.versionOverride
	}
	if v := s.lastVersion.Load(); v != "" {
		return v
	}
	return catalog.Version
}

func (s *Service) currentGateway() *gateway.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gateway
}
