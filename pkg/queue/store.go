package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// Store is the durable tier. Implementations must be safe for concurrent
// use and must return copies, never shared pointers.
type Store interface {
	// Save inserts or replaces an item.
	Save(ctx context.Context, item *notify.QueuedNotification) error

	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*notify.QueuedNotification, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// ClaimDue atomically moves up to limit pending, unexpired items with
	// NextRetryAt at or before now to processing and returns them ordered
	// by priority (highest first) then creation time.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*notify.QueuedNotification, error)

	// ClaimUser atomically moves up to limit pending items of one user to
	// processing and returns them in creation order. Items still waiting for
	// their scheduled first attempt are skipped.
	ClaimUser(ctx context.Context, userID int64, now time.Time, limit int) ([]*notify.QueuedNotification, error)

	// CancelPending deletes a pending item and returns it. It returns
	// ErrNotFound for unknown ids and ErrNotCancellable for items in
	// processing.
	CancelPending(ctx context.Context, id uuid.UUID) (*notify.QueuedNotification, error)

	// ListByUser returns non-terminal items of a user in creation order.
	ListByUser(ctx context.Context, userID int64, limit int) ([]*notify.QueuedNotification, error)

	CountByUser(ctx context.Context, userID int64) (int, error)

	// DeleteExpired removes items whose ExpiresAt is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// DeleteOlderThan removes items created before the cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	Ping(ctx context.Context) error
}

// Sender delivers a message through the real-time providers and returns
// the name of the provider that succeeded.
type Sender interface {
	Send(ctx context.Context, msg notify.Message, preferred string) (string, error)
}

// QueuedCounter receives the number of queued items per user.
// presence.Tracker satisfies it.
type QueuedCounter interface {
	SetQueued(ctx context.Context, userID int64, count int) error
}

// Outcome describes the result of one processing step of an item.
type Outcome struct {
	// Item is a snapshot taken after the state change.
	Item     *notify.QueuedNotification
	Provider string
	Err      error
	Latency  time.Duration
}

// Hook observes outcomes. Hooks run synchronously on the processing
// goroutine and must not block.
type Hook func(ctx context.Context, o Outcome)
