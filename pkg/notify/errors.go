package notify

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest marks a request that fails shape validation.
	ErrInvalidRequest = errors.New("invalid notification request")

	// ErrUserNotFound is returned by user directories for unknown ids.
	ErrUserNotFound = errors.New("user not found")

	// ErrPreferenceDisabled marks a request suppressed by user preferences.
	ErrPreferenceDisabled = errors.New("notification disabled by user preferences")

	// ErrRateLimited marks a request rejected by the rate limiter.
	ErrRateLimited = errors.New("notification rate limit exceeded")

	// ErrUnsafeContent marks a request rejected by content filtering.
	ErrUnsafeContent = errors.New("notification content rejected")

	// ErrNotDelivered is returned when every channel failed and the request
	// could not be queued.
	ErrNotDelivered = errors.New("notification could not be delivered")

	// ErrEmailUnavailable is returned by the no-op email dispatcher.
	ErrEmailUnavailable = errors.New("email dispatch is not configured")
)

// RateLimitError carries the retry hint of a rate limit rejection.
type RateLimitError struct {
	Window     string
	RetryAfter time.Duration
	Blocked    bool
}

func (e *RateLimitError) Error() string {
	if e.Blocked {
		return fmt.Sprintf("%s: user blocked, retry after %s", ErrRateLimited, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s window, retry after %s", ErrRateLimited, e.Window, e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) succeed.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
