package orchestrator

import "errors"

var (
	ErrUsersRequired        = errors.New("orchestrator: user directory is required")
	ErrPreferencesRequired  = errors.New("orchestrator: preferences are required")
	ErrConnectivityRequired = errors.New("orchestrator: connectivity oracle is required")
	ErrInboxRequired        = errors.New("orchestrator: inbox storage is required")

	ErrUserLookup    = errors.New("orchestrator: user lookup failed")
	ErrPersistFailed = errors.New("orchestrator: failed to persist notification")
	ErrQueueFailed   = errors.New("orchestrator: failed to queue notification")
	ErrNoRecipients  = errors.New("orchestrator: no recipients")
)
