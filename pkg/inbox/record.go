package inbox

import (
	"time"

	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// Record is one persisted in-app notification.
type Record struct {
	ID           string          `json:"id"`
	UserID       int64           `json:"user_id"`
	Type         string          `json:"type"`
	Title        string          `json:"title"`
	Body         string          `json:"body"`
	Data         map[string]any  `json:"data,omitempty"`
	Priority     notify.Priority `json:"priority"`
	Delivered    bool            `json:"delivered"`
	DeliveredVia string          `json:"delivered_via,omitempty"`
	DeliveredAt  *time.Time      `json:"delivered_at,omitempty"`
	Read         bool            `json:"read"`
	ReadAt       *time.Time      `json:"read_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	// Dispatched is set once a delivery attempt finished or the record was
	// handed to the queue. Undispatched records older than a grace period
	// were stranded by a crash.
	Dispatched bool `json:"dispatched"`
}

// NewRecord builds an undelivered record for a request.
func NewRecord(id string, req notify.Request, now time.Time) Record {
	return Record{
		ID:        id,
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		Priority:  req.Priority,
		CreatedAt: now,
	}
}

// Request rebuilds a send request from the record, used by replay.
func (r Record) Request() notify.Request {
	return notify.Request{
		UserID:   r.UserID,
		Type:     r.Type,
		Title:    r.Title,
		Body:     r.Body,
		Data:     r.Data,
		Priority: r.Priority,
	}
}

// Message converts the record to the provider payload.
func (r Record) Message() notify.Message {
	return notify.NewMessage(r.ID, r.Request(), r.CreatedAt)
}
