package queue

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/presence"
)

// Queue retries undelivered notifications. Safe for concurrent use.
type Queue struct {
	store   Store
	sender  Sender
	tracker presence.Tracker
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	hooks   []Hook

	mu       sync.Mutex
	hot      map[uuid.UUID]*notify.QueuedNotification
	inflight map[uuid.UUID]*notify.QueuedNotification
	history  *history

	drains singleflight.Group

	// stopMu orders busy.Add against Stop's busy.Wait.
	stopMu   sync.Mutex
	stopping atomic.Bool
	busy     sync.WaitGroup

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// claimed is an item taken out of a tier for processing.
type claimed struct {
	item   *notify.QueuedNotification
	stored bool
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Hot      int                   `json:"hot"`
	InFlight int                   `json:"in_flight"`
	Recent   map[notify.Status]int `json:"recent"`
}

// New creates a queue backed by store that delivers through sender.
func New(store Store, sender Sender, opts ...Option) (*Queue, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if sender == nil {
		return nil, ErrSenderNil
	}

	q := &Queue{
		store:    store,
		sender:   sender,
		tracker:  presence.NewMemoryTracker(),
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		now:      time.Now,
		hot:      make(map[uuid.UUID]*notify.QueuedNotification),
		inflight: make(map[uuid.UUID]*notify.QueuedNotification),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.history = newHistory(q.cfg.History)

	return q, nil
}

// Tracker returns the connectivity tracker the queue consults.
func (q *Queue) Tracker() presence.Tracker { return q.tracker }

// Enqueue accepts an item for asynchronous delivery. Missing MaxAttempts,
// CreatedAt and ExpiresAt are filled from the configuration and priority.
func (q *Queue) Enqueue(ctx context.Context, item *notify.QueuedNotification) error {
	if item == nil || item.ID == uuid.Nil || item.UserID <= 0 || item.Type == "" {
		return ErrInvalidItem
	}

	now := q.now()
	item = item.Clone()
	item.Status = notify.StatusPending
	if item.MaxAttempts <= 0 {
		item.MaxAttempts = q.cfg.MaxAttempts
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.ExpiresAt == nil {
		exp := item.CreatedAt.Add(item.Priority.DefaultExpiry())
		item.ExpiresAt = &exp
	}
	if item.IsExpired(now) {
		return ErrExpired
	}

	if !q.keepHot(item, now) {
		if err := q.store.Save(ctx, item); err != nil {
			return errors.Join(ErrStoreUnavailable, err)
		}
	}

	q.logger.LogAttrs(ctx, slog.LevelDebug, "notification queued",
		logger.Component("queue"),
		logger.NotificationID(item.ID),
		logger.UserID(item.UserID),
		logger.NotificationType(item.Type),
	)
	q.syncQueued(ctx, item.UserID)

	return nil
}

// Pending returns the user's non-terminal items in creation order.
func (q *Queue) Pending(ctx context.Context, userID int64) ([]*notify.QueuedNotification, error) {
	q.mu.Lock()
	seen := make(map[uuid.UUID]struct{})
	var out []*notify.QueuedNotification
	for _, tier := range []map[uuid.UUID]*notify.QueuedNotification{q.hot, q.inflight} {
		for id, item := range tier {
			if item.UserID == userID {
				seen[id] = struct{}{}
				out = append(out, item.Clone())
			}
		}
	}
	q.mu.Unlock()

	stored, err := q.store.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	for _, item := range stored {
		if _, ok := seen[item.ID]; !ok {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, byCreation)

	return out, nil
}

// Lookup returns the current state of an item, including recently
// finished ones.
func (q *Queue) Lookup(ctx context.Context, id uuid.UUID) (*notify.QueuedNotification, error) {
	q.mu.Lock()
	if item, ok := q.inflight[id]; ok {
		q.mu.Unlock()
		return item.Clone(), nil
	}
	if item, ok := q.hot[id]; ok {
		q.mu.Unlock()
		return item.Clone(), nil
	}
	if item, ok := q.history.get(id); ok {
		q.mu.Unlock()
		return item.Clone(), nil
	}
	q.mu.Unlock()

	item, err := q.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return item, nil
}

// Recent returns up to n recently finished items, newest first. A
// non-positive userID returns items of all users.
func (q *Queue) Recent(userID int64, n int) []*notify.QueuedNotification {
	q.mu.Lock()
	defer q.mu.Unlock()
	if userID <= 0 {
		return q.history.recent(n, nil)
	}
	return q.history.recent(n, func(item *notify.QueuedNotification) bool {
		return item.UserID == userID
	})
}

// Cancel removes a pending item. Items already being attempted return
// ErrNotCancellable and may still be delivered.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	if item, ok := q.hot[id]; ok {
		delete(q.hot, id)
		q.mu.Unlock()
		q.finish(ctx, claimed{item: item}, notify.StatusCancelled, "", nil, 0)
		return nil
	}
	_, running := q.inflight[id]
	_, finished := q.history.get(id)
	q.mu.Unlock()
	if running || finished {
		return ErrNotCancellable
	}

	item, err := q.store.CancelPending(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotCancellable) {
			return err
		}
		return errors.Join(ErrStoreUnavailable, err)
	}
	// Already deleted by CancelPending.
	q.finish(ctx, claimed{item: item}, notify.StatusCancelled, "", nil, 0)

	return nil
}

// MarkUserOnline records the connection and drains the user's queue when
// they were offline before. It returns the number of delivered items.
func (q *Queue) MarkUserOnline(ctx context.Context, userID int64, channel string) (int, error) {
	wasOnline := q.tracker.IsOnline(ctx, userID)
	if err := q.tracker.SetOnline(ctx, userID, channel); err != nil {
		return 0, err
	}
	if wasOnline {
		return 0, nil
	}
	return q.DrainUser(ctx, userID)
}

// Touch keeps a connected user online. A user whose online state lapsed
// while still connected is marked online again and drained, so items that
// were deferred in the meantime go out. It returns the number of delivered
// items.
func (q *Queue) Touch(ctx context.Context, userID int64, channel string) (int, error) {
	if !q.tracker.IsOnline(ctx, userID) {
		return q.MarkUserOnline(ctx, userID, channel)
	}
	return 0, q.tracker.Touch(ctx, userID)
}

// MarkUserOffline records a disconnect.
func (q *Queue) MarkUserOffline(ctx context.Context, userID int64) error {
	return q.tracker.SetOffline(ctx, userID)
}

// Cleanup expires in-memory items past their horizon or older than maxAge
// and prunes the same from the durable store. A non-positive maxAge only
// removes expired items.
func (q *Queue) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	now := q.now()
	cutoff := now.Add(-maxAge)

	q.mu.Lock()
	var removed []*notify.QueuedNotification
	for id, item := range q.hot {
		if item.IsExpired(now) || (maxAge > 0 && item.CreatedAt.Before(cutoff)) {
			delete(q.hot, id)
			removed = append(removed, item)
		}
	}
	q.mu.Unlock()

	for _, item := range removed {
		q.finish(ctx, claimed{item: item}, notify.StatusExpired, "", nil, 0)
	}

	total := len(removed)
	n, err := q.store.DeleteExpired(ctx, now)
	total += n
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if maxAge > 0 {
		n, err = q.store.DeleteOlderThan(ctx, cutoff)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	if total > 0 {
		q.logger.LogAttrs(ctx, slog.LevelInfo, "queue cleanup",
			logger.Component("queue"),
			logger.Count(total),
		)
	}
	if len(errs) > 0 {
		return total, errors.Join(append([]error{ErrStoreUnavailable}, errs...)...)
	}

	return total, nil
}

// Flush moves every in-memory item to the durable store. Items that cannot
// be written stay in memory.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	items := make([]*notify.QueuedNotification, 0, len(q.hot))
	for _, item := range q.hot {
		items = append(items, item)
	}
	q.mu.Unlock()

	var errs []error
	for _, item := range items {
		if err := q.store.Save(ctx, item); err != nil {
			errs = append(errs, err)
			continue
		}
		q.mu.Lock()
		delete(q.hot, item.ID)
		q.mu.Unlock()
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrStoreUnavailable}, errs...)...)
	}
	if len(items) > 0 {
		q.logger.LogAttrs(ctx, slog.LevelInfo, "queue flushed to durable store",
			logger.Component("queue"),
			logger.Count(len(items)),
		)
	}

	return nil
}

// Stats returns tier sizes and counts of recently finished items.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Hot:      len(q.hot),
		InFlight: len(q.inflight),
		Recent:   q.history.countByStatus(),
	}
}

// Ping checks the durable store.
func (q *Queue) Ping(ctx context.Context) error {
	if err := q.store.Ping(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// keepHot stores item in memory when it is due within the hot horizon and
// there is room. It reports whether the item was kept.
func (q *Queue) keepHot(item *notify.QueuedNotification, now time.Time) bool {
	if q.stopping.Load() || q.cfg.HotCapacity < 0 {
		return false
	}
	if item.NextRetryAt != nil && item.NextRetryAt.After(now.Add(q.cfg.HotHorizon)) {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.hot) >= q.cfg.HotCapacity {
		return false
	}
	q.hot[item.ID] = item
	return true
}

// claimHot moves matching in-memory items to the in-flight set.
func (q *Queue) claimHot(limit int, keep func(*notify.QueuedNotification) bool, order func(a, b *notify.QueuedNotification) int) []claimed {
	q.mu.Lock()
	defer q.mu.Unlock()

	var picked []*notify.QueuedNotification
	for _, item := range q.hot {
		if keep(item) {
			picked = append(picked, item)
		}
	}
	slices.SortFunc(picked, order)
	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}

	out := make([]claimed, len(picked))
	for i, item := range picked {
		delete(q.hot, item.ID)
		item.Status = notify.StatusProcessing
		q.inflight[item.ID] = item.Clone()
		out[i] = claimed{item: item}
	}
	return out
}

// track registers items claimed from the store as in flight.
func (q *Queue) track(items []*notify.QueuedNotification) []claimed {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]claimed, len(items))
	for i, item := range items {
		q.inflight[item.ID] = item.Clone()
		out[i] = claimed{item: item, stored: true}
	}
	return out
}

// syncQueued publishes the user's queued count to the tracker.
func (q *Queue) syncQueued(ctx context.Context, userID int64) {
	q.mu.Lock()
	n := 0
	for _, item := range q.hot {
		if item.UserID == userID {
			n++
		}
	}
	q.mu.Unlock()

	stored, err := q.store.CountByUser(ctx, userID)
	if err == nil {
		n += stored
	}
	if err := q.tracker.SetQueued(ctx, userID, n); err != nil {
		q.logger.LogAttrs(ctx, slog.LevelDebug, "failed to publish queued count",
			logger.Component("queue"),
			logger.UserID(userID),
			logger.Error(err),
		)
	}
}

func (q *Queue) emit(ctx context.Context, o Outcome) {
	for _, h := range q.hooks {
		h(ctx, o)
	}
}
