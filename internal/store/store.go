// Package store persists the local journal of remote sync attempts.
package store

import (
	"context"
	"time"

	"github.com/autopodbor/intake-bot/internal/domain"
)

// Journal records and queries sheet sync dispatches.
type Journal interface {
	// RecordDispatch appends one delivery attempt.
	RecordDispatch(ctx context.Context, rec domain.DispatchRecord) error

	// ListDispatches returns the most recent attempts for an identity key,
	// newest first.
	ListDispatches(ctx context.Context, identityKey string, limit int) ([]domain.DispatchRecord, error)

	// DispatchStats aggregates all attempts by status.
	DispatchStats(ctx context.Context) (domain.DispatchStats, error)

	// PurgeDispatches deletes attempts older than the given age.
	PurgeDispatches(ctx context.Context, olderThan time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
