package provider

import (
	"context"
	"sync"

	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/retry"
)

// Hub delivers to in-process subscribers keyed by user. Slow subscribers
// lose messages instead of blocking the sender. Safe for concurrent use.
type Hub struct {
	name       string
	priority   int
	bufferSize int

	mu     sync.RWMutex
	subs   map[int64]map[*Subscription]struct{}
	closed bool
	wg     sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption func(*Hub)

func WithHubName(name string) HubOption {
	return func(h *Hub) {
		if name != "" {
			h.name = name
		}
	}
}

func WithHubPriority(p int) HubOption {
	return func(h *Hub) { h.priority = p }
}

// WithBufferSize sets the per-subscriber channel capacity (minimum 1).
func WithBufferSize(n int) HubOption {
	return func(h *Hub) { h.bufferSize = max(n, 1) }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		name:       "socket",
		priority:   30,
		bufferSize: 64,
		subs:       make(map[int64]map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is one live connection of a user.
type Subscription struct {
	userID int64
	ch     chan notify.Message
	done   chan struct{}
	hub    *Hub
	once   sync.Once
}

func (s *Subscription) end() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}

// Messages returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) Messages() <-chan notify.Message { return s.ch }

// UserID returns the subscribed user.
func (s *Subscription) UserID() int64 { return s.userID }

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Subscribe registers a connection for userID. It ends automatically when ctx
// is cancelled.
func (h *Hub) Subscribe(ctx context.Context, userID int64) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscription{
		userID: userID,
		ch:     make(chan notify.Message, h.bufferSize),
		done:   make(chan struct{}),
		hub:    h,
	}
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}

	if ctx.Done() != nil {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}

	return sub, nil
}

func (h *Hub) Name() string    { return h.name }
func (h *Hub) Priority() int   { return h.priority }
func (h *Hub) IsEnabled() bool { return true }

func (h *Hub) IsAvailable(context.Context) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.closed
}

// IsOnline reports whether the user has at least one subscription.
func (h *Hub) IsOnline(_ context.Context, userID int64) bool {
	return h.Connections(userID) > 0
}

// Connections returns the user's subscription count.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Send pushes msg to every subscription of msg.UserID.
func (h *Hub) Send(_ context.Context, msg notify.Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sendLocked(msg.UserID, msg)
}

// SendBatch pushes msg to each user's subscriptions.
func (h *Hub) SendBatch(_ context.Context, userIDs []int64, msg notify.Message) (BatchResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return BatchResult{}, retry.Wrap(retry.KindServiceUnavailable, ErrHubClosed)
	}

	res := BatchResult{Failed: make(map[int64]error)}
	for _, id := range userIDs {
		if err := h.sendLocked(id, msg.For(id)); err != nil {
			res.Failed[id] = err
			continue
		}
		res.Delivered = append(res.Delivered, id)
	}
	return res, nil
}

// Close ends every subscription and rejects further use.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for userID, set := range h.subs {
		for sub := range set {
			sub.end()
		}
		delete(h.subs, userID)
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

func (h *Hub) sendLocked(userID int64, msg notify.Message) error {
	if h.closed {
		return retry.Wrap(retry.KindServiceUnavailable, ErrHubClosed)
	}

	set := h.subs[userID]
	if len(set) == 0 {
		return retry.Wrap(retry.KindNetworkUnavailable, ErrRecipientUnreachable)
	}

	delivered := 0
	for sub := range set {
		select {
		case sub.ch <- msg:
			delivered++
		default:
		}
	}
	if delivered == 0 {
		return retry.Wrap(retry.KindServiceUnavailable, ErrSubscriberBacklog)
	}
	return nil
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}
	sub.end()
}
