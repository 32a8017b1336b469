package service

import "errors"

// ErrBackendUnconfigured reports that proxying was required but no backend
// base URL is configured. Operator misconfiguration, not a client error.
var ErrBackendUnconfigured = errors.New("compute backend unconfigured")
