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

// QueueRecorder returns a queue hook that records terminal outcomes into the
// aggregator and marks linked inbox records delivered. It is built apart
// from the Orchestrator so the queue can be created first.
func QueueRecorder(agg *metrics.Aggregator, store inbox.Storage, l *slog.Logger) queue.Hook {
	if l == nil {
		l = slog.Default()
	}
	return func(ctx context.Context, o queue.Outcome) {
		item := o.Item
		if item == nil {
			return
		}

		var outcome metrics.Outcome
		switch item.Status {
		case notify.StatusDelivered:
			outcome = metrics.OutcomeDelivered
		case notify.StatusFailed:
			outcome = metrics.OutcomeFailed
		case notify.StatusExpired:
			outcome = metrics.OutcomeExpired
		default:
			// Retries and cancellations are not terminal delivery outcomes.
			return
		}

		id := item.RecordID
		if id == "" {
			id = item.ID.String()
		}
		ev := metrics.Event{
			At:             time.Now(),
			UserID:         item.UserID,
			NotificationID: id,
			Type:           item.Type,
			Provider:       o.Provider,
			Outcome:        outcome,
			Latency:        o.Latency,
		}
		if o.Err != nil {
			ev.Error = o.Err.Error()
		}
		agg.Record(ev)

		if outcome != metrics.OutcomeDelivered || item.RecordID == "" || store == nil {
			return
		}
		err := store.MarkDelivered(ctx, item.UserID, item.RecordID, o.Provider, ev.At)
		if err != nil && !errors.Is(err, inbox.ErrRecordNotFound) {
			l.LogAttrs(ctx, slog.LevelWarn, "failed to mark queued record delivered",
				logger.Component("orchestrator"),
				logger.NotificationID(item.RecordID),
				logger.UserID(item.UserID),
				logger.Error(err),
			)
		}
	}
}
