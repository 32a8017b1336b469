// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"time"
)

// Engine modes.
const (
	ModeProxy = "proxy"
	ModeLocal = "local"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheBadger = "badger"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8089".
	Addr string `koanf:"addr"`

	// BackendURL points at the upstream compute backend. Empty means
	// unconfigured; proxy-mode computes and all exports then fail with 500.
	BackendURL string `koanf:"backend_url"`

	// DatasetVersion pins the dataset version used for cache keys. Empty
	// defers to the last version observed on backend responses, then to the
	// built-in catalog version.
	DatasetVersion string `koanf:"dataset_version"`

	// EngineMode selects proxy (defer to the backend) or local (in-process).
	EngineMode string `koanf:"engine_mode"`

	// BackendLabel tags locally computed results in dataset identifiers.
	BackendLabel string `koanf:"backend_label"`

	// CacheBackend selects memory or badger.
	CacheBackend string `koanf:"cache_backend"`

	// CachePath is the badger directory. Empty selects an in-memory badger.
	CachePath string `koanf:"cache_path"`

	// CacheTTLSeconds bounds the lifetime of cached compute responses.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// CoalesceRequests shares one computation among identical concurrent misses.
	CoalesceRequests bool `koanf:"coalesce_requests"`

	// MaxBodyBytes caps the accepted request body size.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":8089",
		BackendURL:       "",
		DatasetVersion:   "",
		EngineMode:       ModeProxy,
		BackendLabel:     "local",
		CacheBackend:     CacheMemory,
		CachePath:        "",
		CacheTTLSeconds:  60,
		CoalesceRequests: true,
		MaxBodyBytes:     1 << 20,
	}
}

// CacheTTL returns the configured cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
