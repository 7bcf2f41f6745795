package ratelimit

import (
	"context"
	"time"
)

// Limit is one sliding window. A non-positive Max counts without limiting.
type Limit struct {
	Window time.Duration
	Max    int
}

// HitResult reports the state of every requested window before the hit.
type HitResult struct {
	Counts []int64
	// Oldest holds the earliest timestamp inside each window, zero when
	// the window is empty.
	Oldest []time.Time
	// Recorded is true when every window was below its limit and the hit
	// was stored.
	Recorded bool
}

// Store keeps timestamp series per key. Implementations must make Hit
// atomic per key.
type Store interface {
	// Hit counts timestamps in each window ending at now and records now
	// when all counts are below their limits. Entries older than the
	// largest window are discarded.
	Hit(ctx context.Context, key string, now time.Time, limits []Limit) (HitResult, error)

	// Count returns the number of timestamps inside window ending at now.
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)

	// SetBlock marks key as blocked until the given time.
	SetBlock(ctx context.Context, key string, until time.Time) error

	// BlockedUntil returns the block end, zero when key is not blocked at now.
	BlockedUntil(ctx context.Context, key string, now time.Time) (time.Time, error)

	// Reset removes all state of key.
	Reset(ctx context.Context, key string) error
}

func maxWindow(limits []Limit) time.Duration {
	var w time.Duration
	for _, l := range limits {
		w = max(w, l.Window)
	}
	return w
}
