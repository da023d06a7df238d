package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultIdleTTL is how long an untouched session is kept.
	DefaultIdleTTL = 24 * time.Hour
	// DefaultCleanupInterval is the default interval between cleanup runs.
	DefaultCleanupInterval = 10 * time.Minute
)

// CleanupConfig holds configuration for the cleanup job.
type CleanupConfig struct {
	IdleTTL         time.Duration // Idle time before a session is dropped (default: 24h)
	CleanupInterval time.Duration // Interval between cleanup runs (default: 10m)
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		IdleTTL:         DefaultIdleTTL,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// SessionCleanupJob periodically drops idle sessions.
type SessionCleanupJob struct {
	sweeper IdleSweeper
	config  CleanupConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewSessionCleanupJob creates a new cleanup job.
func NewSessionCleanupJob(sweeper IdleSweeper, config CleanupConfig) *SessionCleanupJob {
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultIdleTTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	return &SessionCleanupJob{
		sweeper: sweeper,
		config:  config,
	}
}

// Start begins the periodic cleanup in a goroutine. It is a no-op when
// already running.
func (j *SessionCleanupJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}
	j.running = true
	j.stopChan = make(chan struct{})

	go j.run(ctx, j.stopChan)

	slog.Info("session cleanup job started",
		"idle_ttl", j.config.IdleTTL,
		"interval", j.config.CleanupInterval)
}

// Stop stops the cleanup job.
func (j *SessionCleanupJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	close(j.stopChan)
	j.running = false

	slog.Info("session cleanup job stopped")
}

// RunOnce executes a single cleanup run immediately.
func (j *SessionCleanupJob) RunOnce() int {
	return j.sweeper.SweepIdle(j.config.IdleTTL)
}

func (j *SessionCleanupJob) run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(j.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if removed := j.RunOnce(); removed > 0 {
				slog.Info("session cleanup completed", "removed", removed)
			}
		}
	}
}

// IsRunning returns whether the cleanup job is currently running.
func (j *SessionCleanupJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}
