package queue

import "errors"

var (
	// ErrStoreNil is returned when a nil store is provided.
	ErrStoreNil = errors.New("queue: store cannot be nil")

	// ErrSenderNil is returned when a nil sender is provided.
	ErrSenderNil = errors.New("queue: sender cannot be nil")

	// ErrInvalidItem is returned when enqueuing a malformed notification.
	ErrInvalidItem = errors.New("queue: invalid notification")

	// ErrExpired is returned when enqueuing an item past its expiry.
	ErrExpired = errors.New("queue: notification already expired")

	// ErrNotFound is returned for unknown notification ids.
	ErrNotFound = errors.New("queue: notification not found")

	// ErrNotCancellable is returned when cancelling an item that is being
	// attempted or already terminal.
	ErrNotCancellable = errors.New("queue: notification cannot be cancelled")

	// ErrStoreUnavailable wraps durable store failures.
	ErrStoreUnavailable = errors.New("queue: durable store unavailable")

	// ErrAlreadyRunning is returned by Start on a running queue.
	ErrAlreadyRunning = errors.New("queue: already running")
)

// ErrSenderPanic marks an attempt whose sender panicked.
var ErrSenderPanic = errors.New("queue: sender panicked")
