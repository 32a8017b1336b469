package gateway

import (
	"errors"
	"fmt"
)

// Sentinel kinds for gateway errors.
var (
	ErrEncodeRequest       = errors.New("encode upstream request")
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
)

// UpstreamError carries a non-2xx upstream compute response so the edge can
// relay status and body verbatim instead of wrapping them.
type UpstreamError struct {
	Status      int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}
