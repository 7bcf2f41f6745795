// Package notify defines the data model shared by every component of the
// notification delivery core: requests coming from event producers, the
// durable retry unit kept by the queue, the provider-facing message and the
// contracts of the external collaborators (preferences, user directory,
// connectivity oracle, email dispatch).
//
// The package has no behavior beyond validation and small helpers so that
// provider, queue, enhancement and orchestrator packages can depend on it
// without depending on each other.
//
// # Priorities and expiry
//
// Every queued notification has an expiry horizon. When a request does not
// specify one, the default is derived from its priority:
//
//   - PriorityCritical: 7 days
//   - PriorityHigh: 3 days
//   - PriorityNormal: 1 day
//   - PriorityLow: 6 hours
//
// # Errors
//
// Validation failures wrap ErrInvalidRequest, policy rejections wrap
// ErrPreferenceDisabled, ErrRateLimited or ErrUnsafeContent. Use errors.Is to
// branch on them:
//
//	ok, err := orchestrator.Send(ctx, req)
//	if errors.Is(err, notify.ErrRateLimited) {
//	    var rl *notify.RateLimitError
//	    if errors.As(err, &rl) {
//	        retryIn := rl.RetryAfter
//	    }
//	}
package notify
