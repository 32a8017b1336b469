// Package types contains common types used across the application
package types

// Outcome is a compute response as served to the edge, together with its
// cache disposition.
type Outcome struct {
	Body           []byte            // serialized compute result
	Header         map[string]string // response headers to relay
	CacheHit       bool              // whether Body was served from cache
	DatasetVersion string            // dataset version the body was computed under
	Key            string            // content-addressed cache key, lowercase hex
}

// ExportReply is an upstream export response relayed verbatim, whatever the
// upstream status was.
type ExportReply struct {
	Status      int
	ContentType string
	Body        []byte
}
