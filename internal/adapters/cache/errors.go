package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrOpenStore  = errors.New("open cache store")
	ErrReadEntry  = errors.New("read cache entry")
	ErrWriteEntry = errors.New("write cache entry")
)
