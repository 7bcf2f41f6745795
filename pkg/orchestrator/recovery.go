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
	"github.com/dmitrymomot/notifycore/pkg/queue"
)

// RecoveryResult counts what one sweep did with stranded records.
type RecoveryResult struct {
	// Queued records were handed to the queue.
	Queued int `json:"queued"`
	// Linked records already had a pending queue item.
	Linked int `json:"linked"`
	// Expired records were past their priority horizon and dropped.
	Expired int `json:"expired"`
}

// Total is the number of records the sweep resolved.
func (r RecoveryResult) Total() int { return r.Queued + r.Linked + r.Expired }

// RecoverStranded finds inbox records that were persisted but never
// dispatched, which happens when the process stops between writing the
// record and attempting delivery, and hands them to the queue. Records
// younger than the grace period are left alone since a Send may still be
// working on them. Records that could not be queued stay stranded and are
// retried by the next sweep.
func (o *Orchestrator) RecoverStranded(ctx context.Context) (RecoveryResult, error) {
	var res RecoveryResult

	records, err := o.deps.Inbox.ListStranded(ctx, o.now().Add(-o.cfg.RecoveryGrace), o.cfg.RecoveryBatch)
	if err != nil {
		return res, err
	}

	pending := map[int64]map[string]bool{}
	var errs []error
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		linked, ok := pending[rec.UserID]
		if !ok {
			items, err := o.queue.Pending(ctx, rec.UserID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			linked = make(map[string]bool, len(items))
			for _, item := range items {
				if item.RecordID != "" {
					linked[item.RecordID] = true
				}
			}
			pending[rec.UserID] = linked
		}
		if linked[rec.ID] {
			o.markDispatched(ctx, &rec)
			res.Linked++
			continue
		}

		msg := rec.Message()
		item := notify.NewQueuedNotification(rec.Request(), rec.ID, rec.CreatedAt)
		switch err := o.queue.Enqueue(ctx, item); {
		case errors.Is(err, queue.ErrExpired):
			o.markDispatched(ctx, &rec)
			o.record(msg, "", metrics.OutcomeExpired, 0, err)
			res.Expired++
		case err != nil:
			o.logger.LogAttrs(ctx, slog.LevelError, "failed to queue stranded notification",
				logger.Component("orchestrator"),
				logger.NotificationID(rec.ID),
				logger.UserID(rec.UserID),
				logger.Error(err),
			)
			errs = append(errs, err)
		default:
			o.markDispatched(ctx, &rec)
			o.record(msg, "", metrics.OutcomeQueued, 0, nil)
			res.Queued++
		}
	}

	if res.Total() > 0 {
		o.logger.LogAttrs(ctx, slog.LevelInfo, "stranded notifications recovered",
			logger.Component("orchestrator"),
			slog.Int("queued", res.Queued),
			slog.Int("linked", res.Linked),
			slog.Int("expired", res.Expired),
		)
	}
	return res, errors.Join(errs...)
}

// Run sweeps for stranded records on every recovery interval and returns a
// function suitable for errgroup. The first sweep runs immediately so a
// restart picks up what the previous process left behind.
func (o *Orchestrator) Run(ctx context.Context) func() error {
	return func() error {
		ticker := time.NewTicker(o.cfg.RecoveryInterval)
		defer ticker.Stop()

		for {
			if _, err := o.RecoverStranded(ctx); err != nil && ctx.Err() == nil {
				o.logger.LogAttrs(ctx, slog.LevelWarn, "stranded notification sweep incomplete",
					logger.Component("orchestrator"),
					logger.Error(err),
				)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
}

func (o *Orchestrator) markDispatched(ctx context.Context, rec *inbox.Record) {
	if rec == nil {
		return
	}
	err := o.deps.Inbox.MarkDispatched(ctx, rec.UserID, rec.ID)
	if err != nil && !errors.Is(err, inbox.ErrRecordNotFound) {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "failed to mark record dispatched",
			logger.Component("orchestrator"),
			logger.NotificationID(rec.ID),
			logger.Error(err),
		)
	}
}
