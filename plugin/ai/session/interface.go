// Package session owns the per-browser application state.
package session

import (
	"time"

	"github.com/hrygo/elva/plugin/ai/cache"
	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/router"
)

// IdleSweeper drops sessions that have been idle for longer than a cutoff.
// Consumers: SessionCleanupJob.
type IdleSweeper interface {
	// SweepIdle removes every session last seen before now-idleTTL.
	// Returns the number of removed sessions.
	SweepIdle(idleTTL time.Duration) int
}

// Deps are the shared services every session state is built from.
type Deps struct {
	Gateway     gateway.Service
	UserID      string
	LinkService string
	Automations *router.AutomationClassifier
	Keywords    *router.KeywordMatcher
	// Profiles is shared across sessions. Optional.
	Profiles cache.Cache[*gateway.Profile]
}
