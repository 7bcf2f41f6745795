package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/retry"
)

// ProcessPending attempts one bounded batch of due items across all users
// and returns how many were delivered. Offline users are deferred without
// consuming an attempt.
func (q *Queue) ProcessPending(ctx context.Context) (int, error) {
	if !q.enter() {
		return 0, nil
	}
	defer q.busy.Done()

	now := q.now()
	batch := q.claimHot(q.cfg.BatchSize, func(item *notify.QueuedNotification) bool {
		return item.IsDue(now)
	}, byPriority)

	var storeErr error
	if rest := q.cfg.BatchSize - len(batch); rest > 0 {
		items, err := q.store.ClaimDue(ctx, now, rest)
		if err != nil {
			storeErr = errors.Join(ErrStoreUnavailable, err)
			q.logger.LogAttrs(ctx, slog.LevelError, "failed to claim due notifications",
				logger.Component("queue"),
				logger.Error(err),
			)
		} else {
			batch = append(batch, q.track(items)...)
		}
	}
	slices.SortFunc(batch, func(a, b claimed) int { return byPriority(a.item, b.item) })

	var delivered atomic.Int64
	var g errgroup.Group
	g.SetLimit(q.cfg.MaxConcurrent)
	for _, c := range batch {
		g.Go(func() error {
			if q.process(ctx, c, true) {
				delivered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(delivered.Load()), storeErr
}

// DrainUser attempts every pending item of one user in creation order,
// regardless of its retry time. Items waiting for a scheduled first attempt
// are left alone. Concurrent calls for the same user share one pass.
func (q *Queue) DrainUser(ctx context.Context, userID int64) (int, error) {
	v, err, _ := q.drains.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		return q.drainUser(ctx, userID)
	})
	n, _ := v.(int)
	return n, err
}

func (q *Queue) drainUser(ctx context.Context, userID int64) (int, error) {
	if !q.enter() {
		return 0, nil
	}
	defer q.busy.Done()

	now := q.now()
	batch := q.claimHot(0, func(item *notify.QueuedNotification) bool {
		return item.UserID == userID && item.Status == notify.StatusPending && !item.IsScheduled(now)
	}, byCreation)

	items, err := q.store.ClaimUser(ctx, userID, now, 0)
	if err != nil {
		err = errors.Join(ErrStoreUnavailable, err)
	} else {
		batch = append(batch, q.track(items)...)
	}
	slices.SortFunc(batch, func(a, b claimed) int { return byCreation(a.item, b.item) })

	delivered := 0
	for _, c := range batch {
		if q.process(ctx, c, false) {
			delivered++
		}
	}

	if len(batch) > 0 {
		q.logger.LogAttrs(ctx, slog.LevelInfo, "user queue drained",
			logger.Component("queue"),
			logger.UserID(userID),
			logger.Count(delivered),
			slog.Int("attempted", len(batch)),
		)
	}

	return delivered, err
}

// process runs one attempt for a claimed item and reports delivery.
func (q *Queue) process(ctx context.Context, c claimed, checkOnline bool) bool {
	item := c.item
	now := q.now()

	if item.IsExpired(now) {
		q.finish(ctx, c, notify.StatusExpired, "", nil, 0)
		return false
	}

	if checkOnline && !q.tracker.IsOnline(ctx, item.UserID) {
		next := now.Add(q.cfg.OfflineRecheck)
		item.NextRetryAt = &next
		q.requeue(ctx, c, now)
		return false
	}

	item.Attempts++
	actx, cancel := context.WithTimeout(ctx, q.cfg.AttemptTimeout)
	start := time.Now()
	name, err := q.send(actx, item)
	latency := time.Since(start)
	cancel()

	if err == nil {
		q.finish(ctx, c, notify.StatusDelivered, name, nil, latency)
		return true
	}

	item.LastError = err.Error()
	kind := retry.Classify(err)
	delay, ok := retry.Next(kind, item.Attempts, item.MaxAttempts)
	if !ok {
		item.NextRetryAt = nil
		q.finish(ctx, c, notify.StatusFailed, "", err, latency)
		return false
	}

	next := now.Add(delay)
	if item.ExpiresAt != nil && !next.Before(*item.ExpiresAt) {
		item.NextRetryAt = nil
		q.finish(ctx, c, notify.StatusExpired, "", err, latency)
		return false
	}
	item.NextRetryAt = &next

	q.logger.LogAttrs(ctx, slog.LevelWarn, "delivery attempt failed, rescheduled",
		logger.Component("queue"),
		logger.NotificationID(item.ID),
		logger.UserID(item.UserID),
		logger.Attempt(item.Attempts),
		logger.Kind(kind),
		logger.Duration(delay),
		logger.Error(err),
	)
	q.requeue(ctx, c, now)
	q.emit(ctx, Outcome{Item: item.Clone(), Err: err, Latency: latency})

	return false
}

// send calls the sender, converting a panic into an error.
func (q *Queue) send(ctx context.Context, item *notify.QueuedNotification) (name string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSenderPanic, r)
			q.logger.LogAttrs(ctx, slog.LevelError, "sender panicked",
				logger.Component("queue"),
				logger.NotificationID(item.ID),
				slog.Any("panic", r),
			)
		}
	}()
	return q.sender.Send(ctx, item.Message(), "")
}

// requeue returns a processed but undelivered item to a tier.
func (q *Queue) requeue(ctx context.Context, c claimed, now time.Time) {
	item := c.item
	item.Status = notify.StatusPending
	q.release(item.ID)

	if q.keepHot(item, now) {
		if c.stored {
			if err := q.store.Delete(ctx, item.ID); err != nil {
				q.logger.LogAttrs(ctx, slog.LevelWarn, "failed to drop promoted item from durable store",
					logger.Component("queue"),
					logger.NotificationID(item.ID),
					logger.Error(err),
				)
			}
		}
		return
	}

	if err := q.store.Save(ctx, item); err != nil {
		// Never lose an item: hold it in memory past capacity.
		q.mu.Lock()
		q.hot[item.ID] = item
		q.mu.Unlock()
		q.logger.LogAttrs(ctx, slog.LevelError, "failed to persist queued notification",
			logger.Component("queue"),
			logger.NotificationID(item.ID),
			logger.Error(err),
		)
	}
}

// finish moves an item to a terminal status and removes it from all tiers.
func (q *Queue) finish(ctx context.Context, c claimed, status notify.Status, providerName string, cause error, latency time.Duration) {
	item := c.item
	item.Status = status

	if c.stored {
		if err := q.store.Delete(ctx, item.ID); err != nil {
			q.logger.LogAttrs(ctx, slog.LevelError, "failed to delete finished item",
				logger.Component("queue"),
				logger.NotificationID(item.ID),
				logger.Error(err),
			)
		}
	}

	snapshot := item.Clone()
	q.mu.Lock()
	delete(q.inflight, item.ID)
	q.history.add(snapshot)
	q.mu.Unlock()

	level := slog.LevelInfo
	if status == notify.StatusFailed {
		level = slog.LevelWarn
	}
	q.logger.LogAttrs(ctx, level, "queued notification "+string(status),
		logger.Component("queue"),
		logger.NotificationID(item.ID),
		logger.UserID(item.UserID),
		logger.Attempt(item.Attempts),
		logger.Provider(providerName),
		logger.Error(cause),
	)

	q.emit(ctx, Outcome{Item: snapshot.Clone(), Provider: providerName, Err: cause, Latency: latency})
	q.syncQueued(ctx, item.UserID)
}

func (q *Queue) release(id uuid.UUID) {
	q.mu.Lock()
	delete(q.inflight, id)
	q.mu.Unlock()
}

// enter registers a unit of work unless the queue is stopping.
func (q *Queue) enter() bool {
	q.stopMu.Lock()
	defer q.stopMu.Unlock()
	if q.stopping.Load() {
		return false
	}
	q.busy.Add(1)
	return true
}
