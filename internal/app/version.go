package service

import "sync/atomic"

// versionCell is a lock-free last-writer-wins holder for the most recently
// observed dataset version. Concurrent writers may race; the freshest
// successful response wins and a stale read only causes an extra cache miss.
type versionCell struct {
	v atomic.Pointer[string]
}

// Store publishes a new observed version. Blank versions are ignored so a
// backend that reports nothing cannot erase a known version.
func (c *versionCell) Store(version string) {
	if version == "" {
		return
	}
	c.v.Store(&version)
}

// Load returns the last stored version, or "" when none was observed yet.
func (c *versionCell) Load() string {
	if p := c.v.Load(); p != nil {
		return *p
	}
	return ""
}
