package presence

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidUserID is returned for non-positive user ids.
var ErrInvalidUserID = errors.New("presence: invalid user id")

// Status is the connectivity state of a single user.
type Status struct {
	UserID      int64     `json:"user_id"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"last_seen,omitzero"`
	Channel     string    `json:"channel,omitempty"`
	QueuedCount int       `json:"queued_count"`
}

// Tracker records connectivity changes and answers status queries.
type Tracker interface {
	IsOnline(ctx context.Context, userID int64) bool
	SetOnline(ctx context.Context, userID int64, channel string) error
	SetOffline(ctx context.Context, userID int64) error
	SetQueued(ctx context.Context, userID int64, count int) error
	Status(ctx context.Context, userID int64) (Status, error)
	// Touch keeps a connected user online. It does not revive a user whose
	// online state already lapsed.
	Touch(ctx context.Context, userID int64) error
}
