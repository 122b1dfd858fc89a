package domain

import "time"

// DispatchStatus is the outcome of one remote sync attempt.
type DispatchStatus string

const (
	DispatchDelivered DispatchStatus = "delivered"
	DispatchFailed    DispatchStatus = "failed"
	DispatchDropped   DispatchStatus = "dropped"
)

// DispatchRecord is a journal entry for a sync attempt.
type DispatchRecord struct {
	ID          string
	IdentityKey string
	Phone       string
	PayloadJSON string
	Status      DispatchStatus
	HTTPStatus  int
	Error       string
	Duration    time.Duration
	CreatedAt   time.Time
}

// DispatchStats aggregates journal entries by status.
type DispatchStats struct {
	Total     int
	Delivered int
	Failed    int
	Dropped   int
	LastAt    *time.Time
}
