package session

import (
	"context"
	"log/slog"
	"time"
)

const housekeepingInterval = 5 * time.Minute

// Purger deletes journal rows older than a retention window.
type Purger interface {
	PurgeDispatches(ctx context.Context, olderThan time.Duration) (int64, error)
}

// HousekeepingConfig tunes StartHousekeeping.
type HousekeepingConfig struct {
	Interval  time.Duration
	IdleTTL   time.Duration
	Retention time.Duration
	// OnEvict is called for each evicted identity key.
	OnEvict func(key string)
}

// StartHousekeeping runs a background goroutine that periodically evicts
// idle sessions and purges old journal rows. purger may be nil.
func StartHousekeeping(ctx context.Context, store *Store, purger Purger, cfg HousekeepingConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = housekeepingInterval
	}
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Housekeeping worker started",
			"interval", cfg.Interval,
			"idle_ttl", cfg.IdleTTL,
			"retention", cfg.Retention)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, store, purger, cfg)
			case <-ctx.Done():
				slog.Info("Housekeeping worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, store *Store, purger Purger, cfg HousekeepingConfig) {
	if evicted := store.EvictIdle(cfg.IdleTTL); len(evicted) > 0 {
		for _, key := range evicted {
			if cfg.OnEvict != nil {
				cfg.OnEvict(key)
			}
		}
		slog.Info("Housekeeping evicted idle sessions", "count", len(evicted))
	}

	if purger == nil || cfg.Retention <= 0 {
		return
	}
	deleted, err := purger.PurgeDispatches(ctx, cfg.Retention)
	if err != nil {
		slog.Error("Housekeeping failed to purge dispatch journal", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Housekeeping purged dispatch journal", "count", deleted)
	}
}
