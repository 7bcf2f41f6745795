package notify

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queued notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// QueuedNotification is the durable unit of retry state.
// Once Status is terminal the value is never mutated again.
type QueuedNotification struct {
	ID          uuid.UUID      `json:"id"`
	UserID      int64          `json:"user_id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	Priority    Priority       `json:"priority"`
	NextRetryAt *time.Time     `json:"next_retry_at,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	Status      Status         `json:"status"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`

	// RecordID links the item to its in-app record, empty when persistence
	// was suppressed.
	RecordID string `json:"record_id,omitempty"`
}

// NewQueuedNotification creates a pending item for a request.
func NewQueuedNotification(req Request, recordID string, now time.Time) *QueuedNotification {
	expires := now.Add(req.Expiry())
	q := &QueuedNotification{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Type:        req.Type,
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		CreatedAt:   now,
		Priority:    req.Priority,
		Status:      StatusPending,
		ExpiresAt:   &expires,
		RecordID:    recordID,
	}
	if req.IsScheduled(now) {
		at := *req.ScheduledFor
		q.NextRetryAt = &at
	}
	return q
}

// IsExpired reports whether the item is past its expiry horizon at now.
func (q *QueuedNotification) IsExpired(now time.Time) bool {
	return q.ExpiresAt != nil && !now.Before(*q.ExpiresAt)
}

// IsScheduled reports whether the item has never been attempted and waits
// for a future start time.
func (q *QueuedNotification) IsScheduled(now time.Time) bool {
	return q.Attempts == 0 && q.NextRetryAt != nil && q.NextRetryAt.After(now)
}

// IsDue reports whether the item should be attempted at now.
func (q *QueuedNotification) IsDue(now time.Time) bool {
	if q.Status != StatusPending {
		return false
	}
	return q.NextRetryAt == nil || !q.NextRetryAt.After(now)
}

// Message converts the item to the provider-facing payload.
func (q *QueuedNotification) Message() Message {
	id := q.RecordID
	if id == "" {
		id = q.ID.String()
	}
	return Message{
		ID:        id,
		UserID:    q.UserID,
		Type:      q.Type,
		Title:     q.Title,
		Body:      q.Body,
		Data:      q.Data,
		Priority:  q.Priority,
		CreatedAt: q.CreatedAt,
	}
}

// Clone returns a copy that does not share pointer fields with q.
func (q *QueuedNotification) Clone() *QueuedNotification {
	c := *q
	if q.NextRetryAt != nil {
		t := *q.NextRetryAt
		c.NextRetryAt = &t
	}
	if q.ExpiresAt != nil {
		t := *q.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
