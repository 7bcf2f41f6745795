package metrics

import "time"

// Outcome is the terminal result of one delivery step.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeDelivered Outcome = "delivered"
	OutcomeQueued    Outcome = "queued"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeExpired   Outcome = "expired"
)

// Successful reports whether the outcome counts towards the success rate.
func (o Outcome) Successful() bool {
	return o == OutcomeSent || o == OutcomeDelivered
}

// Event is one attempted delivery.
type Event struct {
	At             time.Time     `json:"at"`
	UserID         int64         `json:"user_id"`
	NotificationID string        `json:"notification_id,omitempty"`
	Type           string        `json:"type"`
	Provider       string        `json:"provider,omitempty"`
	Outcome        Outcome       `json:"outcome"`
	Latency        time.Duration `json:"latency"`
	Error          string        `json:"error,omitempty"`
}
