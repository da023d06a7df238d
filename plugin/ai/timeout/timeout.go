// Package timeout defines centralized timeout constants for backend operations.
package timeout

import "time"

// Backend operation timeout constants.
const (
	// Backend is the default timeout for one backend request.
	Backend = 30 * time.Second

	// Probe is the timeout for the link status probe. It is short so a slow
	// backend does not hold the first page render.
	Probe = 10 * time.Second

	// Mount bounds the concurrent history load and status probe on first visit.
	Mount = 15 * time.Second

	// MaxBodySnippet is the maximum number of bytes of an error body kept in errors and logs.
	MaxBodySnippet = 200
)
