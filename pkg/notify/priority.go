package notify

import (
	"fmt"
	"time"
)

// Priority is the urgency of a notification.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Default expiry horizons per priority.
const (
	ExpiryCritical = 7 * 24 * time.Hour
	ExpiryHigh     = 3 * 24 * time.Hour
	ExpiryNormal   = 24 * time.Hour
	ExpiryLow      = 6 * time.Hour
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is one of the declared priorities.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// DefaultExpiry returns the expiry horizon applied when a request carries none.
func (p Priority) DefaultExpiry() time.Duration {
	switch p {
	case PriorityCritical:
		return ExpiryCritical
	case PriorityHigh:
		return ExpiryHigh
	case PriorityLow:
		return ExpiryLow
	default:
		return ExpiryNormal
	}
}

// ParsePriority converts a priority name back to its value.
// Unknown names resolve to PriorityNormal.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityNormal
	}
}
