package audit

import (
	"context"
	"time"
)

// Storage persists audit events. Implementations must be safe for
// concurrent use, must not retain the events slice passed to Store, and
// return Query results newest first.
type Storage interface {
	Store(ctx context.Context, events ...Event) error
	Query(ctx context.Context, c Criteria) ([]Event, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Counter is implemented by storages that count without loading rows.
type Counter interface {
	Count(ctx context.Context, c Criteria) (int64, error)
}
