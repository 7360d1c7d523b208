package core

// scheduler.go runs background maintenance for the session store.
//
// Sessions hold whole source tables in memory, so idle ones are dropped on a
// fixed interval. The sweeper is long-running and stops with its context.

import (
	"context"
	"log/slog"
	"time"
)

// SweepConfig holds configuration for the session sweeper.
type SweepConfig struct {
	IdleTTL       time.Duration // Sessions unused this long are removed (default: 1h)
	CheckInterval time.Duration // How often to sweep (default: 5m)
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.IdleTTL <= 0 {
		c.IdleTTL = time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Minute
	}
	return c
}

// StartSessionSweeper periodically removes idle sessions.
// It blocks until ctx is cancelled; run it in its own goroutine.
func (s *Service) StartSessionSweeper(ctx context.Context, cfg SweepConfig) {
	cfg = cfg.withDefaults()
	slog.Info("session sweeper started",
		"idle_ttl", cfg.IdleTTL,
		"interval", cfg.CheckInterval,
	)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case now := <-ticker.C:
			s.runSweep(now, cfg)
		}
	}
}

func (s *Service) runSweep(now time.Time, cfg SweepConfig) {
	start := time.Now()
	removed := s.SweepIdle(now.Add(-cfg.IdleTTL))
	if removed > 0 {
		slog.Info("idle sessions removed",
			"removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	slog.Debug("session sweep found nothing to remove")
}
