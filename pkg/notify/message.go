package notify

import "time"

// Message is the provider-facing payload of one delivery attempt.
type Message struct {
	ID        string         `json:"id"`
	UserID    int64          `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	// RecipientIDs overrides ID per user on multicast, so each recipient
	// sees the id of their own inbox record.
	RecipientIDs map[int64]string `json:"-"`
}

// For returns the copy of a multicast message addressed to one user.
func (m Message) For(userID int64) Message {
	single := m
	single.UserID = userID
	if id, ok := m.RecipientIDs[userID]; ok && id != "" {
		single.ID = id
	}
	single.RecipientIDs = nil
	return single
}

// NewMessage builds the provider payload for a request.
func NewMessage(id string, req Request, createdAt time.Time) Message {
	return Message{
		ID:        id,
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		Priority:  req.Priority,
		CreatedAt: createdAt,
	}
}
