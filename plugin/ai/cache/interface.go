// Package cache provides small in-process caches for backend lookups.
package cache

import "time"

// Cache is a keyed cache with per-entry expiry.
type Cache[V any] interface {
	// Get returns the value and whether it exists and is unexpired.
	Get(key string) (V, bool)

	// Set stores a value. A non-positive ttl uses the cache default.
	Set(key string, value V, ttl time.Duration)

	// Invalidate removes entries matching pattern.
	// A trailing * matches by prefix (session_123_*).
	Invalidate(pattern string) int
}
