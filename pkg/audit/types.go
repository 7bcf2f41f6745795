package audit

import (
	"fmt"
	"strings"
	"time"
)

// Severity ranks how urgent an audit event is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity resolves a severity name. Unknown names map to SeverityLow.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(s) {
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityLow
	}
}

// EventType names the kind of security event.
type EventType string

const (
	EventBlockedAttempt     EventType = "blocked_attempt"
	EventRateLimitViolation EventType = "rate_limit_violation"
	EventUserBlocked        EventType = "user_blocked"
	EventUserUnblocked      EventType = "user_unblocked"
	EventUnsafeContent      EventType = "unsafe_content"
	EventInvalidRequest     EventType = "invalid_request"
)

// Event is one audit log entry. Entries are never updated once stored.
type Event struct {
	ID        string         `json:"id"`
	UserID    int64          `json:"user_id"`
	Type      EventType      `json:"type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate checks the fields every backend relies on.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if e.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidEvent)
	}
	if e.Severity < SeverityLow || e.Severity > SeverityCritical {
		return fmt.Errorf("%w: unknown severity %d", ErrInvalidEvent, int(e.Severity))
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidEvent)
	}
	return nil
}

// Criteria selects events for Query. Zero fields do not filter.
type Criteria struct {
	UserID      int64
	Types       []EventType
	MinSeverity Severity
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// Matches reports whether e satisfies every non-zero field of c except the
// pagination ones.
func (c Criteria) Matches(e Event) bool {
	if c.UserID != 0 && e.UserID != c.UserID {
		return false
	}
	if e.Severity < c.MinSeverity {
		return false
	}
	if !c.From.IsZero() && e.CreatedAt.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && !e.CreatedAt.Before(c.To) {
		return false
	}
	if len(c.Types) == 0 {
		return true
	}
	for _, t := range c.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}
