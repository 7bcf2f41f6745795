package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifycore/pkg/enhance"
	"github.com/dmitrymomot/notifycore/pkg/inbox"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/metrics"
	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// ProviderEmail is the provider name recorded for email deliveries.
const ProviderEmail = "email"

// Orchestrator routes notification requests across channels.
// It is safe for concurrent use.
type Orchestrator struct {
	deps     Dependencies
	delivery Delivery
	queue    Queue
	enhancer enhance.Enhancer
	email    notify.EmailDispatcher
	metrics  *metrics.Aggregator
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	started  time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConfig overrides the defaults. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg.merge(DefaultConfig())
	}
}

// WithDelivery sets the real-time delivery side, usually *provider.Manager.
func WithDelivery(d Delivery) Option {
	return func(o *Orchestrator) {
		if d != nil {
			o.delivery = d
		}
	}
}

// WithQueue sets the retry queue, usually *queue.Queue.
func WithQueue(q Queue) Option {
	return func(o *Orchestrator) {
		if q != nil {
			o.queue = q
		}
	}
}

// WithEnhancer sets the rate limit, content and audit capabilities.
func WithEnhancer(e enhance.Enhancer) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.enhancer = e
		}
	}
}

// WithEmail sets the email fallback.
func WithEmail(e notify.EmailDispatcher) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.email = e
		}
	}
}

// WithMetrics shares an aggregator with other components.
func WithMetrics(m *metrics.Aggregator) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New validates the required dependencies and applies options.
func New(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		deps:     deps,
		delivery: noDelivery{},
		queue:    noQueue{},
		enhancer: enhance.NoOp(),
		email:    noEmail{},
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewAggregator()
	}
	o.started = o.now()

	return o, nil
}

// Metrics returns the aggregator the orchestrator records into.
func (o *Orchestrator) Metrics() *metrics.Aggregator { return o.metrics }

// Send runs one request through the pipeline. The bool reports whether the
// notification was delivered or accepted for queued delivery. Validation and
// policy rejections return false with an error explaining why; they have no
// side effects beyond the audit log.
func (o *Orchestrator) Send(ctx context.Context, req notify.Request) (bool, error) {
	user, err := o.admit(ctx, req)
	if err != nil {
		return false, err
	}

	content, err := o.enhancer.ScreenContent(ctx, req.UserID, req.Type, req.Title, req.Body)
	if err != nil {
		o.reject(ctx, req, "unsafe content", err)
		return false, err
	}
	req.Title, req.Body = content.Title, content.Body

	now := o.now()
	rec, err := o.persist(ctx, req, now)
	if err != nil {
		return false, err
	}

	msgID := uuid.NewString()
	if rec != nil {
		msgID = rec.ID
	}
	msg := notify.NewMessage(msgID, req, now)

	if req.IsScheduled(now) {
		return o.enqueue(ctx, req, rec, msg, "scheduled")
	}

	method := o.deliveryMethod(ctx, req)
	if method == notify.DeliveryEmailOnly {
		if err := o.sendEmail(ctx, user, req, msg); err != nil {
			o.markDispatched(ctx, rec)
			o.record(msg, "", metrics.OutcomeFailed, 0, err)
			return false, errors.Join(notify.ErrNotDelivered, err)
		}
		return true, nil
	}

	if o.deps.Connectivity.IsOnline(ctx, req.UserID) {
		if o.sendRealtime(ctx, req, msg) {
			return true, nil
		}
	}

	if o.emailAllowed(ctx, req) {
		if err := o.sendEmail(ctx, user, req, msg); err == nil {
			return true, nil
		}
	}

	if rec == nil {
		err := fmt.Errorf("%w: every channel failed and persistence was skipped", notify.ErrNotDelivered)
		o.record(msg, "", metrics.OutcomeFailed, 0, err)
		return false, err
	}
	return o.enqueue(ctx, req, rec, msg, "undelivered")
}

// admit runs validation, preference and rate limit checks.
func (o *Orchestrator) admit(ctx context.Context, req notify.Request) (*notify.User, error) {
	if err := req.Validate(); err != nil {
		o.reject(ctx, req, "invalid request", err)
		return nil, err
	}

	user, err := o.deps.Users.GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, notify.ErrUserNotFound) {
			err = fmt.Errorf("%w: %w", notify.ErrInvalidRequest, err)
		} else {
			err = errors.Join(ErrUserLookup, err)
		}
		o.reject(ctx, req, "unknown user", err)
		return nil, err
	}

	enabled, err := o.deps.Preferences.ShouldSend(ctx, req.UserID, req.Type)
	if err != nil {
		// Preferences that cannot be read do not block delivery.
		o.logger.LogAttrs(ctx, slog.LevelError, "preference lookup failed, sending anyway",
			logger.Component("orchestrator"),
			logger.UserID(req.UserID),
			logger.NotificationType(req.Type),
			logger.Error(err),
		)
		enabled = true
	}
	if !enabled {
		o.reject(ctx, req, "disabled by preferences", notify.ErrPreferenceDisabled)
		return nil, notify.ErrPreferenceDisabled
	}

	if err := o.enhancer.CheckRateLimit(ctx, req.UserID, req.Type); err != nil {
		o.reject(ctx, req, "rate limited", err)
		return nil, err
	}

	return user, nil
}

// persist writes the in-app record unless suppressed. A failed write is an
// infrastructure error: the request is not attempted.
func (o *Orchestrator) persist(ctx context.Context, req notify.Request, now time.Time) (*inbox.Record, error) {
	if req.SkipPersist {
		return nil, nil
	}

	rec := inbox.NewRecord(uuid.NewString(), req, now)
	if err := o.deps.Inbox.Create(ctx, rec); err != nil {
		o.logger.LogAttrs(ctx, slog.LevelError, "failed to persist notification",
			logger.Component("orchestrator"),
			logger.UserID(req.UserID),
			logger.NotificationType(req.Type),
			logger.Error(err),
		)
		return nil, errors.Join(ErrPersistFailed, err)
	}
	return &rec, nil
}

func (o *Orchestrator) deliveryMethod(ctx context.Context, req notify.Request) notify.DeliveryMethod {
	method, err := o.deps.Preferences.PreferredDeliveryMethod(ctx, req.UserID, req.Type)
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "delivery method lookup failed, using auto",
			logger.Component("orchestrator"),
			logger.UserID(req.UserID),
			logger.Error(err),
		)
		return notify.DeliveryAuto
	}
	return method
}

func (o *Orchestrator) emailAllowed(ctx context.Context, req notify.Request) bool {
	ok, err := o.deps.Preferences.ShouldSendEmail(ctx, req.UserID, req.Type)
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "email preference lookup failed, skipping email",
			logger.Component("orchestrator"),
			logger.UserID(req.UserID),
			logger.Error(err),
		)
		return false
	}
	return ok
}

// sendRealtime asks the provider manager to deliver and records success.
func (o *Orchestrator) sendRealtime(ctx context.Context, req notify.Request, msg notify.Message) bool {
	rctx, cancel := context.WithTimeout(ctx, o.cfg.RealtimeTimeout)
	defer cancel()

	start := time.Now()
	name, err := o.delivery.Send(rctx, msg, req.PreferredProvider)
	latency := time.Since(start)
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelInfo, "real-time delivery failed",
			logger.Component("orchestrator"),
			logger.NotificationID(msg.ID),
			logger.UserID(req.UserID),
			logger.Error(err),
		)
		return false
	}

	o.markDelivered(ctx, req.UserID, msg.ID, name)
	o.record(msg, name, metrics.OutcomeDelivered, latency, nil)
	return true
}

func (o *Orchestrator) sendEmail(ctx context.Context, user *notify.User, req notify.Request, msg notify.Message) error {
	if user == nil || user.Email == "" {
		return fmt.Errorf("%w: user has no email address", notify.ErrEmailUnavailable)
	}

	ectx, cancel := context.WithTimeout(ctx, o.cfg.EmailTimeout)
	defer cancel()

	start := time.Now()
	err := o.email.SendEmail(ectx, notify.Email{
		To:        user.Email,
		Username:  user.Username,
		Subject:   req.Title,
		Body:      req.Body,
		Type:      req.Type,
		ActionURL: req.ActionURL,
	})
	latency := time.Since(start)
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "email fallback failed",
			logger.Component("orchestrator"),
			logger.NotificationID(msg.ID),
			logger.UserID(req.UserID),
			logger.Error(err),
		)
		return err
	}

	o.markDelivered(ctx, req.UserID, msg.ID, ProviderEmail)
	o.record(msg, ProviderEmail, metrics.OutcomeSent, latency, nil)
	return nil
}

func (o *Orchestrator) enqueue(ctx context.Context, req notify.Request, rec *inbox.Record, msg notify.Message, reason string) (bool, error) {
	recordID := ""
	if rec != nil {
		recordID = rec.ID
	}
	item := notify.NewQueuedNotification(req, recordID, o.now())

	if err := o.queue.Enqueue(ctx, item); err != nil {
		err = errors.Join(notify.ErrNotDelivered, ErrQueueFailed, err)
		o.record(msg, "", metrics.OutcomeFailed, 0, err)
		o.logger.LogAttrs(ctx, slog.LevelError, "failed to queue notification",
			logger.Component("orchestrator"),
			logger.NotificationID(msg.ID),
			logger.UserID(req.UserID),
			logger.Error(err),
		)
		return false, err
	}

	o.markDispatched(ctx, rec)
	o.record(msg, "", metrics.OutcomeQueued, 0, nil)
	o.logger.LogAttrs(ctx, slog.LevelInfo, "notification queued",
		logger.Component("orchestrator"),
		logger.NotificationID(item.ID),
		logger.UserID(req.UserID),
		logger.NotificationType(req.Type),
		slog.String("reason", reason),
	)
	return true, nil
}

func (o *Orchestrator) markDelivered(ctx context.Context, userID int64, recordID, via string) {
	err := o.deps.Inbox.MarkDelivered(ctx, userID, recordID, via, o.now())
	if err != nil && !errors.Is(err, inbox.ErrRecordNotFound) {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "failed to mark record delivered",
			logger.Component("orchestrator"),
			logger.NotificationID(recordID),
			logger.Error(err),
		)
	}
}

func (o *Orchestrator) record(msg notify.Message, providerName string, outcome metrics.Outcome, latency time.Duration, err error) {
	ev := metrics.Event{
		At:             o.now(),
		UserID:         msg.UserID,
		NotificationID: msg.ID,
		Type:           msg.Type,
		Provider:       providerName,
		Outcome:        outcome,
		Latency:        latency,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	o.metrics.Record(ev)
}

func (o *Orchestrator) reject(ctx context.Context, req notify.Request, reason string, err error) {
	level := slog.LevelInfo
	if errors.Is(err, ErrUserLookup) {
		level = slog.LevelError
	}
	o.logger.LogAttrs(ctx, level, "notification rejected",
		logger.Component("orchestrator"),
		logger.UserID(req.UserID),
		logger.NotificationType(req.Type),
		slog.String("reason", reason),
		logger.Error(err),
	)
}
