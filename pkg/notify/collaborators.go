package notify

import "context"

// DeliveryMethod is the user's stored preference for how a type is delivered.
type DeliveryMethod string

const (
	DeliveryAuto          DeliveryMethod = "auto"
	DeliveryRealtimeFirst DeliveryMethod = "realtime_first"
	DeliveryEmailOnly     DeliveryMethod = "email_only"
)

// Preferences answers per user/type policy questions.
type Preferences interface {
	ShouldSend(ctx context.Context, userID int64, notifType string) (bool, error)
	ShouldSendEmail(ctx context.Context, userID int64, notifType string) (bool, error)
	PreferredDeliveryMethod(ctx context.Context, userID int64, notifType string) (DeliveryMethod, error)
}

// User is the subset of a user record the delivery core needs.
type User struct {
	ID       int64
	Email    string
	Username string
}

// UserDirectory looks users up by id. It returns ErrUserNotFound for
// unknown ids.
type UserDirectory interface {
	GetUser(ctx context.Context, userID int64) (*User, error)
}

// Connectivity reports whether a user currently has a live connection.
type Connectivity interface {
	IsOnline(ctx context.Context, userID int64) bool
}

// Email is one outbound fallback email.
type Email struct {
	To        string
	Username  string
	Subject   string
	Body      string
	Type      string
	ActionURL string
}

// EmailDispatcher sends fallback emails.
type EmailDispatcher interface {
	SendEmail(ctx context.Context, msg Email) error
}
