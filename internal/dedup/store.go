// Package dedup guards the write path against redelivered events.
package dedup

import (
	"context"
	"time"
)

// DefaultTTL is how long a processed event id is remembered.
const DefaultTTL = 7 * 24 * time.Hour

// Entry marks one event id as processed until ExpiresAt.
type Entry struct {
	EventID       string
	SourceService string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Store persists processed event ids. Implementations must be safe for
// concurrent use and make DeleteExpired idempotent.
//
//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks
type Store interface {
	// Exists reports whether eventID has an entry that has not expired at now.
	Exists(ctx context.Context, eventID string, now time.Time) (bool, error)
	// Insert records e, replacing any previous entry for the same id.
	Insert(ctx context.Context, e Entry) error
	// DeleteExpired removes entries with ExpiresAt before now and returns how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
