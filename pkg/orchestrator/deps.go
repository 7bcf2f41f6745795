package orchestrator

import (
	"context"

	"github.com/dmitrymomot/notifycore/pkg/inbox"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/provider"
	"github.com/dmitrymomot/notifycore/pkg/queue"
)

// Dependencies are the collaborators the orchestrator cannot run without.
type Dependencies struct {
	Users        notify.UserDirectory
	Preferences  notify.Preferences
	Connectivity notify.Connectivity
	Inbox        inbox.Storage
}

func (d Dependencies) validate() error {
	switch {
	case d.Users == nil:
		return ErrUsersRequired
	case d.Preferences == nil:
		return ErrPreferencesRequired
	case d.Connectivity == nil:
		return ErrConnectivityRequired
	case d.Inbox == nil:
		return ErrInboxRequired
	}
	return nil
}

// Delivery is the real-time side, implemented by *provider.Manager.
type Delivery interface {
	Send(ctx context.Context, msg notify.Message, preferred string) (string, error)
	SendMulticast(ctx context.Context, userIDs []int64, msg notify.Message) (provider.MulticastResult, error)
	HealthReport() []provider.Health
	Healthy() bool
	Refresh(ctx context.Context) []provider.Health
}

// Queue is the retry side, implemented by *queue.Queue.
type Queue interface {
	Enqueue(ctx context.Context, item *notify.QueuedNotification) error
	Pending(ctx context.Context, userID int64) ([]*notify.QueuedNotification, error)
	Recent(userID int64, n int) []*notify.QueuedNotification
	DrainUser(ctx context.Context, userID int64) (int, error)
	ProcessPending(ctx context.Context) (int, error)
	Stats() queue.Stats
	Ping(ctx context.Context) error
}

type noDelivery struct{}

func (noDelivery) Send(context.Context, notify.Message, string) (string, error) {
	return "", provider.ErrNoProviderAvailable
}

func (noDelivery) SendMulticast(_ context.Context, userIDs []int64, _ notify.Message) (provider.MulticastResult, error) {
	res := provider.MulticastResult{Failed: make(map[int64]error, len(userIDs))}
	for _, id := range userIDs {
		res.Failed[id] = provider.ErrNoProviderAvailable
	}
	return res, provider.ErrNoProviderAvailable
}

func (noDelivery) HealthReport() []provider.Health { return nil }
func (noDelivery) Healthy() bool { return true }
func (noDelivery) Refresh(context.Context) []provider.Health { return nil }

type noQueue struct{}

func (noQueue) Enqueue(context.Context, *notify.QueuedNotification) error { return ErrQueueFailed }
func (noQueue) Pending(context.Context, int64) ([]*notify.QueuedNotification, error) {
	return nil, nil
}
func (noQueue) Recent(int64, int) []*notify.QueuedNotification { return nil }
func (noQueue) DrainUser(context.Context, int64) (int, error) { return 0, nil }
func (noQueue) ProcessPending(context.Context) (int, error) { return 0, nil }
func (noQueue) Stats() queue.Stats { return queue.Stats{} }
func (noQueue) Ping(context.Context) error { return nil }

type noEmail struct{}

func (noEmail) SendEmail(context.Context, notify.Email) error { return notify.ErrEmailUnavailable }

// pinger is implemented by collaborators that can report reachability.
type pinger interface {
	Ping(ctx context.Context) error
}
