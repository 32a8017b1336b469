package canonical

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrCanonicalize = errors.New("canonicalize failed")
)
