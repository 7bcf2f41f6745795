package inbox

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRecordNotFound = errors.New("inbox record not found")
	ErrInvalidRecord  = errors.New("invalid inbox record")
)

// Storage persists inbox records.
type Storage interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, userID int64, id string) (*Record, error)
	// List returns records newest first.
	List(ctx context.Context, userID int64, opts ListOptions) ([]Record, error)
	// ListUndelivered returns undelivered records oldest first.
	ListUndelivered(ctx context.Context, userID int64, limit int) ([]Record, error)
	// ListStranded returns undelivered, undispatched records of any user
	// created at or before before, oldest first.
	ListStranded(ctx context.Context, before time.Time, limit int) ([]Record, error)
	// MarkDelivered also marks the record dispatched.
	MarkDelivered(ctx context.Context, userID int64, id, via string, at time.Time) error
	MarkDispatched(ctx context.Context, userID int64, id string) error
	MarkRead(ctx context.Context, userID int64, ids ...string) error
	CountUnread(ctx context.Context, userID int64) (int, error)
	Ping(ctx context.Context) error
}

// ListOptions filters and paginates List.
type ListOptions struct {
	Limit      int
	Offset     int
	OnlyUnread bool
	Types      []string
	Since      *time.Time
}
