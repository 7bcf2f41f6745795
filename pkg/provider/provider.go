package provider

import (
	"context"
	"errors"

	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/retry"
)

// Provider is one real-time delivery transport.
// Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	// Priority orders providers; lower values are tried first.
	Priority() int
	IsEnabled() bool
	// IsAvailable is the liveness probe.
	IsAvailable(ctx context.Context) bool
	Send(ctx context.Context, msg notify.Message) error
}

// BatchSender is implemented by providers with native multicast.
type BatchSender interface {
	SendBatch(ctx context.Context, userIDs []int64, msg notify.Message) (BatchResult, error)
}

// BatchResult splits multicast recipients by outcome.
type BatchResult struct {
	Delivered []int64
	Failed    map[int64]error
}

// MulticastResult is the outcome of Manager.SendMulticast.
type MulticastResult struct {
	// Provider is the batch provider used, empty for a pure fan-out.
	Provider  string
	Delivered []int64
	Failed    map[int64]error
}

// recipientFault reports whether err is about the recipient, not the transport.
func recipientFault(err error) bool {
	if errors.Is(err, ErrRecipientUnreachable) {
		return true
	}
	switch retry.Classify(err) {
	case retry.KindInvalidToken, retry.KindPermissionDenied, retry.KindInvalidPayload, retry.KindClientError:
		return true
	default:
		return false
	}
}
