package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/audit"
	"github.com/dmitrymomot/notifycore/pkg/compress"
	"github.com/dmitrymomot/notifycore/pkg/contentfilter"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/ratelimit"
)

// Config toggles capabilities. A capability is active only when it is
// enabled here and its component was supplied.
type Config struct {
	RateLimit     bool `env:"ENHANCE_RATE_LIMIT" envDefault:"true"`
	ContentFilter bool `env:"ENHANCE_CONTENT_FILTER" envDefault:"true"`
	Audit         bool `env:"ENHANCE_AUDIT" envDefault:"true"`
	Compression   bool `env:"ENHANCE_COMPRESSION" envDefault:"true"`
}

// Service is the default Enhancer.
type Service struct {
	cfg       Config
	limiter   *ratelimit.Limiter
	filter    *contentfilter.Filter
	audit     *audit.Logger
	optimizer *compress.Optimizer
	logger    *slog.Logger

	checked       atomic.Int64
	rateLimited   atomic.Int64
	blocked       atomic.Int64
	screened      atomic.Int64
	unsafe        atomic.Int64
	auditFailures atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithContentFilter(f *contentfilter.Filter) Option {
	return func(s *Service) { s.filter = f }
}

func WithAudit(a *audit.Logger) Option {
	return func(s *Service) { s.audit = a }
}

func WithOptimizer(o *compress.Optimizer) Option {
	return func(s *Service) { s.optimizer = o }
}

// New builds a Service. Components left out keep their capability off.
func New(cfg Config, opts ...Option) *Service {
	s := &Service{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.RateLimit = s.cfg.RateLimit && s.limiter != nil
	s.cfg.ContentFilter = s.cfg.ContentFilter && s.filter != nil
	s.cfg.Audit = s.cfg.Audit && s.audit != nil
	s.cfg.Compression = s.cfg.Compression && s.optimizer != nil
	return s
}

func (s *Service) CheckRateLimit(ctx context.Context, userID int64, notifType string) error {
	if !s.cfg.RateLimit {
		return nil
	}
	s.checked.Add(1)

	d := s.limiter.Check(ctx, userID, notifType)
	if d.Allowed {
		return nil
	}

	s.rateLimited.Add(1)
	switch {
	case d.Blocked && d.Window == "":
		s.blocked.Add(1)
		s.record(ctx, func() error {
			return s.audit.BlockedAttempt(ctx, userID, notifType, d.RetryAfter)
		})
	default:
		s.record(ctx, func() error {
			return s.audit.RateLimitViolation(ctx, userID, d.Window, d.Violations, map[string]any{
				"type":        notifType,
				"retry_after": d.RetryAfter.String(),
			})
		})
		if d.Blocked {
			s.blocked.Add(1)
			s.record(ctx, func() error {
				return s.audit.UserBlocked(ctx, userID, d.RetryAfter, d.Violations)
			})
		}
	}
	return d.Err()
}

func (s *Service) ScreenContent(ctx context.Context, userID int64, notifType, title, body string) (Content, error) {
	if !s.cfg.ContentFilter {
		return Content{Title: title, Body: body, Safe: true}, nil
	}
	s.screened.Add(1)

	res := s.filter.Check(title, body)
	c := Content{Title: res.Title, Body: res.Body, Safe: res.Safe, Categories: res.Categories()}
	if res.Safe {
		return c, nil
	}

	s.unsafe.Add(1)
	s.record(ctx, func() error {
		return s.audit.UnsafeContent(ctx, userID, c.Categories, map[string]any{"type": notifType})
	})
	return c, fmt.Errorf("%w: %v", notify.ErrUnsafeContent, c.Categories)
}

func (s *Service) Optimize(msg notify.Message, channel string) (compress.Payload, error) {
	if !s.cfg.Compression {
		return plainPayload(msg)
	}
	return s.optimizer.Optimize(msg, channel)
}

func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if !s.cfg.Audit {
		return 0, nil
	}
	return s.audit.Cleanup(ctx, retention)
}

func (s *Service) Stats() Stats {
	st := Stats{
		RateLimit:     s.cfg.RateLimit,
		ContentFilter: s.cfg.ContentFilter,
		Audit:         s.cfg.Audit,
		Compression:   s.cfg.Compression,
		Checked:       s.checked.Load(),
		RateLimited:   s.rateLimited.Load(),
		Blocked:       s.blocked.Load(),
		Screened:      s.screened.Load(),
		UnsafeContent: s.unsafe.Load(),
		AuditFailures: s.auditFailures.Load(),
	}
	if s.cfg.Compression {
		ps := s.optimizer.Stats()
		st.Payloads = &ps
	}
	return st
}

// record writes an audit entry. Audit failures never change the verdict.
func (s *Service) record(ctx context.Context, fn func() error) {
	if !s.cfg.Audit {
		return
	}
	if err := fn(); err != nil {
		s.auditFailures.Add(1)
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to write audit event",
			logger.Component("enhance"),
			logger.Error(err),
		)
	}
}

func plainPayload(msg notify.Message) (compress.Payload, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return compress.Payload{}, errors.Join(compress.ErrEncode, err)
	}
	return compress.Payload{Data: raw, OriginalSize: len(raw)}, nil
}
