package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifycore/pkg/inbox"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/metrics"
	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// MulticastReport splits the recipients of SendMulticast by outcome.
type MulticastReport struct {
	Delivered []int64         `json:"delivered,omitempty"`
	Emailed   []int64         `json:"emailed,omitempty"`
	Queued    []int64         `json:"queued,omitempty"`
	Rejected  map[int64]error `json:"-"`
	Failed    map[int64]error `json:"-"`
	// Provider is the batch provider used for the online recipients.
	Provider string `json:"provider,omitempty"`
}

// OK reports whether at least one recipient was reached or queued.
func (r *MulticastReport) OK() bool {
	return len(r.Delivered)+len(r.Emailed)+len(r.Queued) > 0
}

type recipient struct {
	user *notify.User
	req  notify.Request
	rec  *inbox.Record
	msg  notify.Message
}

// SendMulticast sends one notification to many users. Per recipient it
// applies the same admission checks as Send; online recipients go through a
// single provider multicast, the rest fall back to email and the queue
// individually. The returned report is never nil.
func (o *Orchestrator) SendMulticast(ctx context.Context, userIDs []int64, req notify.Request) (*MulticastReport, error) {
	report := &MulticastReport{Rejected: make(map[int64]error), Failed: make(map[int64]error)}

	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return report, ErrNoRecipients
	}
	if len(ids) > o.cfg.MaxRecipients {
		return report, fmt.Errorf("%w: %d recipients exceed the limit of %d", notify.ErrInvalidRequest, len(ids), o.cfg.MaxRecipients)
	}
	// Shape checks do not depend on the recipient.
	if err := req.ForUser(ids[0]).Validate(); err != nil {
		return report, err
	}

	content, err := o.enhancer.ScreenContent(ctx, ids[0], req.Type, req.Title, req.Body)
	if err != nil {
		o.reject(ctx, req, "unsafe content", err)
		return report, err
	}
	req.Title, req.Body = content.Title, content.Body

	now := o.now()
	groupID := uuid.NewString()
	accepted := make(map[int64]*recipient, len(ids))
	var online []int64

	for _, id := range ids {
		r := req.ForUser(id)
		user, err := o.admit(ctx, r)
		if err != nil {
			report.Rejected[id] = err
			continue
		}
		rec, err := o.persist(ctx, r, now)
		if err != nil {
			report.Failed[id] = err
			continue
		}
		msgID := uuid.NewString()
		if rec != nil {
			msgID = rec.ID
		}
		accepted[id] = &recipient{user: user, req: r, rec: rec, msg: notify.NewMessage(msgID, r, now)}

		if !r.IsScheduled(now) && o.deliveryMethod(ctx, r) != notify.DeliveryEmailOnly &&
			o.deps.Connectivity.IsOnline(ctx, id) {
			online = append(online, id)
		}
	}

	delivered := map[int64]bool{}
	if len(online) > 0 {
		group := notify.NewMessage(groupID, req, now)
		group.UserID = 0
		group.RecipientIDs = make(map[int64]string, len(online))
		for _, id := range online {
			group.RecipientIDs[id] = accepted[id].msg.ID
		}

		mctx, cancel := context.WithTimeout(ctx, o.cfg.RealtimeTimeout)
		start := time.Now()
		res, err := o.delivery.SendMulticast(mctx, online, group)
		latency := time.Since(start)
		cancel()
		if err != nil {
			o.logger.LogAttrs(ctx, slog.LevelInfo, "multicast real-time delivery incomplete",
				logger.Component("orchestrator"),
				logger.NotificationID(groupID),
				logger.Count(len(res.Delivered)),
				logger.Error(err),
			)
		}
		report.Provider = res.Provider
		for _, id := range res.Delivered {
			r := accepted[id]
			if r == nil {
				continue
			}
			delivered[id] = true
			report.Delivered = append(report.Delivered, id)
			name := res.Provider
			if name == "" {
				name = "multicast"
			}
			o.markDelivered(ctx, id, r.msg.ID, name)
			o.record(r.msg, name, metrics.OutcomeDelivered, latency, nil)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.cfg.MulticastConcurrency)
	for id, r := range accepted {
		if delivered[id] {
			continue
		}
		g.Go(func() error {
			outcome, err := o.fallback(ctx, r, now)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case metrics.OutcomeSent:
				report.Emailed = append(report.Emailed, id)
			case metrics.OutcomeQueued:
				report.Queued = append(report.Queued, id)
			default:
				report.Failed[id] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(report.Delivered)
	slices.Sort(report.Emailed)
	slices.Sort(report.Queued)

	o.logger.LogAttrs(ctx, slog.LevelInfo, "multicast finished",
		logger.Component("orchestrator"),
		logger.NotificationID(groupID),
		logger.NotificationType(req.Type),
		slog.Int("recipients", len(ids)),
		slog.Int("delivered", len(report.Delivered)),
		slog.Int("emailed", len(report.Emailed)),
		slog.Int("queued", len(report.Queued)),
		slog.Int("rejected", len(report.Rejected)),
		slog.Int("failed", len(report.Failed)),
	)

	if !report.OK() {
		return report, notify.ErrNotDelivered
	}
	return report, nil
}

// fallback runs the email and queue steps of Send for one recipient.
func (o *Orchestrator) fallback(ctx context.Context, r *recipient, now time.Time) (metrics.Outcome, error) {
	if !r.req.IsScheduled(now) {
		emailOnly := o.deliveryMethod(ctx, r.req) == notify.DeliveryEmailOnly
		if emailOnly || o.emailAllowed(ctx, r.req) {
			err := o.sendEmail(ctx, r.user, r.req, r.msg)
			if err == nil {
				return metrics.OutcomeSent, nil
			}
			if emailOnly {
				o.markDispatched(ctx, r.rec)
				o.record(r.msg, "", metrics.OutcomeFailed, 0, err)
				return metrics.OutcomeFailed, errors.Join(notify.ErrNotDelivered, err)
			}
		}
	}

	if r.rec == nil && !r.req.IsScheduled(now) {
		err := fmt.Errorf("%w: every channel failed and persistence was skipped", notify.ErrNotDelivered)
		o.record(r.msg, "", metrics.OutcomeFailed, 0, err)
		return metrics.OutcomeFailed, err
	}
	if _, err := o.enqueue(ctx, r.req, r.rec, r.msg, "multicast fallback"); err != nil {
		return metrics.OutcomeFailed, err
	}
	return metrics.OutcomeQueued, nil
}

func dedupe(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
