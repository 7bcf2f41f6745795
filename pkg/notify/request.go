package notify

import (
	"fmt"
	"strings"
	"time"
)

// Request is a single "tell this user" intent produced by an upstream event
// handler. It is transient and never persisted as is.
type Request struct {
	UserID   int64          `json:"user_id"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	Priority Priority       `json:"priority"`

	// ScheduledFor delays the first delivery attempt.
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	// ExpiresIn overrides the priority based expiry horizon when positive.
	ExpiresIn time.Duration `json:"expires_in,omitempty"`

	RequireConfirmation bool `json:"require_confirmation,omitempty"`
	// SkipPersist suppresses the in-app record, used when the recipient is
	// already looking at the related context.
	SkipPersist bool `json:"skip_persist,omitempty"`

	// PreferredProvider is tried first when it is healthy.
	PreferredProvider string `json:"preferred_provider,omitempty"`
	// ActionURL is forwarded to the email fallback.
	ActionURL string `json:"action_url,omitempty"`
}

// Validate checks the request shape. It does not consult the user directory.
func (r Request) Validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("%w: title or body is required", ErrInvalidRequest)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %d", ErrInvalidRequest, int(r.Priority))
	}
	return nil
}

// Expiry returns the horizon after which the notification is discarded.
func (r Request) Expiry() time.Duration {
	if r.ExpiresIn > 0 {
		return r.ExpiresIn
	}
	return r.Priority.DefaultExpiry()
}

// IsScheduled reports whether the first attempt must wait until ScheduledFor.
func (r Request) IsScheduled(now time.Time) bool {
	return r.ScheduledFor != nil && r.ScheduledFor.After(now)
}

// ForUser returns a copy of the request addressed to another user.
// The data map is shared; callers must not mutate it concurrently.
func (r Request) ForUser(userID int64) Request {
	r.UserID = userID
	return r
}
