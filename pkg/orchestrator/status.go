package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/inbox"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/metrics"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/presence"
)

// DeliveryStatus is the per-user view returned by GetDeliveryStatus.
type DeliveryStatus struct {
	UserID   int64                        `json:"user_id"`
	Online   bool                         `json:"online"`
	Presence *presence.Status             `json:"presence,omitempty"`
	Events   []metrics.Event              `json:"events"`
	Pending  []*notify.QueuedNotification `json:"pending"`
	Finished []*notify.QueuedNotification `json:"finished"`
	Unread   int                          `json:"unread"`
}

// ReplayResult counts what ReplayMissed did.
type ReplayResult struct {
	// Drained is the number of queued items delivered by the drain pass.
	Drained int `json:"drained"`
	// Replayed is the number of undelivered inbox records resent.
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}

// Total is the number of notifications delivered by the replay.
func (r ReplayResult) Total() int { return r.Drained + r.Replayed }

type presenceReporter interface {
	Status(ctx context.Context, userID int64) (presence.Status, error)
}

// GetDeliveryStatus combines connectivity, the last count delivery events,
// the pending and recently finished queue items, and the unread count.
func (o *Orchestrator) GetDeliveryStatus(ctx context.Context, userID int64, count int) (DeliveryStatus, error) {
	if userID <= 0 {
		return DeliveryStatus{}, notify.ErrInvalidRequest
	}

	st := DeliveryStatus{
		UserID:   userID,
		Online:   o.deps.Connectivity.IsOnline(ctx, userID),
		Events:   o.metrics.ForUser(userID, count),
		Finished: o.queue.Recent(userID, count),
	}
	if pr, ok := o.deps.Connectivity.(presenceReporter); ok {
		if ps, err := pr.Status(ctx, userID); err == nil {
			st.Presence = &ps
		}
	}

	var errs []error
	pending, err := o.queue.Pending(ctx, userID)
	if err != nil {
		errs = append(errs, err)
	}
	st.Pending = pending

	unread, err := o.deps.Inbox.CountUnread(ctx, userID)
	if err != nil {
		errs = append(errs, err)
	}
	st.Unread = unread

	return st, errors.Join(errs...)
}

// GetHistory returns the user's latest count inbox records, newest first.
func (o *Orchestrator) GetHistory(ctx context.Context, userID int64, count int) ([]inbox.Record, error) {
	if userID <= 0 {
		return nil, notify.ErrInvalidRequest
	}
	return o.deps.Inbox.List(ctx, userID, inbox.ListOptions{Limit: count})
}

// GetUndelivered returns records never delivered on any channel, oldest
// first, capped at the replay limit.
func (o *Orchestrator) GetUndelivered(ctx context.Context, userID int64) ([]inbox.Record, error) {
	if userID <= 0 {
		return nil, notify.ErrInvalidRequest
	}
	return o.deps.Inbox.ListUndelivered(ctx, userID, o.cfg.ReplayLimit)
}

// ReplayMissed drains the user's queue and then resends undelivered inbox
// records that have no pending queue item. Records still linked to a
// pending item are left to the queue so nothing is attempted twice.
// Offline users are skipped.
func (o *Orchestrator) ReplayMissed(ctx context.Context, userID int64) (ReplayResult, error) {
	var res ReplayResult
	if userID <= 0 {
		return res, notify.ErrInvalidRequest
	}

	if !o.deps.Connectivity.IsOnline(ctx, userID) {
		return res, nil
	}

	drained, err := o.queue.DrainUser(ctx, userID)
	res.Drained = drained
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "queue drain during replay failed",
			logger.Component("orchestrator"),
			logger.UserID(userID),
			logger.Error(err),
		)
	}

	records, err := o.deps.Inbox.ListUndelivered(ctx, userID, o.cfg.ReplayLimit)
	if err != nil {
		return res, err
	}
	if len(records) == 0 {
		return res, nil
	}

	queued := map[string]bool{}
	pending, err := o.queue.Pending(ctx, userID)
	if err != nil {
		return res, err
	}
	for _, item := range pending {
		if item.RecordID != "" {
			queued[item.RecordID] = true
		}
	}

	for _, rec := range records {
		if queued[rec.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if o.sendRealtime(ctx, rec.Request(), rec.Message()) {
			res.Replayed++
		} else {
			res.Failed++
		}
	}

	o.logger.LogAttrs(ctx, slog.LevelInfo, "missed notifications replayed",
		logger.Component("orchestrator"),
		logger.UserID(userID),
		slog.Int("drained", res.Drained),
		slog.Int("replayed", res.Replayed),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// Uptime is the time since New.
func (o *Orchestrator) Uptime() time.Duration { return o.now().Sub(o.started) }
