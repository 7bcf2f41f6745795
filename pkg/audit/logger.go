package audit

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifycore/pkg/logger"
)

// Logger records security events.
type Logger struct {
	storage Storage
	filter  *MetadataFilter
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger mirrors every recorded event to l.
func WithLogger(l *slog.Logger) Option {
	return func(a *Logger) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithFilter replaces the default PII filter.
func WithFilter(f *MetadataFilter) Option {
	return func(a *Logger) {
		if f != nil {
			a.filter = f
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Logger) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an audit logger on top of storage.
func New(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	a := &Logger{
		storage: storage,
		filter:  NewMetadataFilter(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record stores e after assigning an id and timestamp when missing and
// scrubbing its metadata.
func (a *Logger) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = a.now()
	}
	e.Metadata = a.filter.Filter(e.Metadata)

	if err := e.Validate(); err != nil {
		return err
	}

	a.logger.LogAttrs(ctx, level(e.Severity), "security event",
		logger.Component("audit"),
		logger.UserID(e.UserID),
		slog.String("event_type", string(e.Type)),
		slog.String("severity", e.Severity.String()),
		slog.String("message", e.Message),
	)

	if err := a.storage.Store(ctx, e); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

// BlockedAttempt records a send refused because the user is blocked.
func (a *Logger) BlockedAttempt(ctx context.Context, userID int64, notifType string, retryAfter time.Duration) error {
	return a.Record(ctx, Event{
		UserID:   userID,
		Type:     EventBlockedAttempt,
		Severity: SeverityMedium,
		Message:  "notification attempt from a blocked user",
		Metadata: map[string]any{"type": notifType, "retry_after": retryAfter.String()},
	})
}

// RateLimitViolation records a request rejected by a rate limit window.
func (a *Logger) RateLimitViolation(ctx context.Context, userID int64, window string, violations int, metadata map[string]any) error {
	md := maps.Clone(metadata)
	if md == nil {
		md = make(map[string]any, 2)
	}
	md["window"] = window
	md["violations"] = violations

	severity := SeverityLow
	if violations > 1 {
		severity = SeverityMedium
	}
	return a.Record(ctx, Event{
		UserID:   userID,
		Type:     EventRateLimitViolation,
		Severity: severity,
		Message:  "rate limit exceeded",
		Metadata: md,
	})
}

// UserBlocked records an automatic block.
func (a *Logger) UserBlocked(ctx context.Context, userID int64, duration time.Duration, violations int) error {
	return a.Record(ctx, Event{
		UserID:   userID,
		Type:     EventUserBlocked,
		Severity: SeverityHigh,
		Message:  "user blocked after repeated rate limit violations",
		Metadata: map[string]any{"duration": duration.String(), "violations": violations},
	})
}

// UnsafeContent records content rejected by the content filter. Phishing and
// malicious links are critical, everything else is high.
func (a *Logger) UnsafeContent(ctx context.Context, userID int64, categories []string, metadata map[string]any) error {
	md := maps.Clone(metadata)
	if md == nil {
		md = make(map[string]any, 1)
	}
	md["categories"] = categories

	severity := SeverityHigh
	for _, c := range categories {
		if c == "phishing" || c == "malicious_link" {
			severity = SeverityCritical
			break
		}
	}
	return a.Record(ctx, Event{
		UserID:   userID,
		Type:     EventUnsafeContent,
		Severity: severity,
		Message:  "unsafe notification content",
		Metadata: md,
	})
}

// Query returns events matching c, newest first.
func (a *Logger) Query(ctx context.Context, c Criteria) ([]Event, error) {
	return a.storage.Query(ctx, c)
}

// Count returns how many events match c, using the storage's own counter
// when it has one.
func (a *Logger) Count(ctx context.Context, c Criteria) (int64, error) {
	if counter, ok := a.storage.(Counter); ok {
		return counter.Count(ctx, c)
	}
	c.Limit, c.Offset = 0, 0
	events, err := a.storage.Query(ctx, c)
	if err != nil {
		return 0, err
	}
	return int64(len(events)), nil
}

// Cleanup deletes events older than retention.
func (a *Logger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := a.storage.DeleteBefore(ctx, a.now().Add(-retention))
	if err != nil {
		return 0, errors.Join(ErrStorageNotAvailable, err)
	}
	if n > 0 {
		a.logger.LogAttrs(ctx, slog.LevelInfo, "audit retention cleanup",
			logger.Component("audit"),
			slog.Int64("deleted", n),
		)
	}
	return n, nil
}

func level(s Severity) slog.Level {
	switch s {
	case SeverityCritical, SeverityHigh:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
