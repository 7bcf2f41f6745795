package provider

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifycore/pkg/circuit"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// Config holds Manager settings.
type Config struct {
	RefreshInterval     time.Duration `env:"PROVIDER_REFRESH_INTERVAL" envDefault:"30s"`
	ProbeTimeout        time.Duration `env:"PROVIDER_PROBE_TIMEOUT" envDefault:"3s"`
	BreakerThreshold    int           `env:"PROVIDER_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown     time.Duration `env:"PROVIDER_BREAKER_COOLDOWN" envDefault:"5m"`
	MulticastConcurrent int           `env:"PROVIDER_MULTICAST_CONCURRENCY" envDefault:"16"`
}

// Manager selects and tracks delivery providers. Safe for concurrent use.
type Manager struct {
	entries []*entry
	byName  map[string]*entry

	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	refreshMu   sync.Mutex
	lastRefresh time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithConfig overrides the default settings. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		if cfg.RefreshInterval > 0 {
			m.cfg.RefreshInterval = cfg.RefreshInterval
		}
		if cfg.ProbeTimeout > 0 {
			m.cfg.ProbeTimeout = cfg.ProbeTimeout
		}
		if cfg.BreakerThreshold > 0 {
			m.cfg.BreakerThreshold = cfg.BreakerThreshold
		}
		if cfg.BreakerCooldown > 0 {
			m.cfg.BreakerCooldown = cfg.BreakerCooldown
		}
		if cfg.MulticastConcurrent > 0 {
			m.cfg.MulticastConcurrent = cfg.MulticastConcurrent
		}
	}
}

// WithClock replaces time.Now for the manager and its breakers.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager registers providers ordered by priority. Providers with equal
// priority keep their argument order. Nil providers are skipped.
func NewManager(providers []Provider, opts ...Option) *Manager {
	m := &Manager{
		byName: make(map[string]*entry, len(providers)),
		cfg: Config{
			RefreshInterval:     30 * time.Second,
			ProbeTimeout:        3 * time.Second,
			BreakerThreshold:    circuit.DefaultThreshold,
			BreakerCooldown:     circuit.DefaultCooldown,
			MulticastConcurrent: 16,
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("provider_manager"))

	for _, p := range providers {
		if p == nil {
			continue
		}
		e := newEntry(p,
			circuit.WithThreshold(m.cfg.BreakerThreshold),
			circuit.WithCooldown(m.cfg.BreakerCooldown),
			circuit.WithClock(m.now),
		)
		m.entries = append(m.entries, e)
		m.byName[p.Name()] = e
	}
	slices.SortStableFunc(m.entries, func(a, b *entry) int {
		return cmp.Compare(a.provider.Priority(), b.provider.Priority())
	})

	return m
}

// Send delivers msg through the first candidate that accepts it and returns
// that provider's name.
func (m *Manager) Send(ctx context.Context, msg notify.Message, preferred string) (string, error) {
	candidates := m.candidates(ctx, preferred)
	if len(candidates) == 0 {
		return "", ErrNoProviderAvailable
	}

	errs := []error{ErrAllProvidersFailed}
	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !e.breaker.Allow() {
			continue
		}

		if err := m.attempt(ctx, e, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name(), err))
			continue
		}
		return e.name(), nil
	}

	return "", errors.Join(errs...)
}

// SendMulticast delivers one message to many users.
func (m *Manager) SendMulticast(ctx context.Context, userIDs []int64, msg notify.Message) (MulticastResult, error) {
	if len(userIDs) == 0 {
		return MulticastResult{}, ErrNoRecipients
	}

	res := MulticastResult{Failed: make(map[int64]error)}
	remaining := slices.Clone(userIDs)

	for _, e := range m.candidates(ctx, "") {
		bs, ok := e.provider.(BatchSender)
		if !ok || !e.breaker.Allow() {
			continue
		}

		start := m.now()
		batch, err := bs.SendBatch(ctx, remaining, msg)
		if err == nil && len(batch.Delivered) == 0 && len(remaining) > 0 {
			err = ErrRecipientUnreachable
		}
		e.record(err, m.now().Sub(start), m.now())
		if err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "batch send failed",
				logger.Provider(e.name()),
				logger.UserIDs(remaining),
				logger.Error(err),
			)
			continue
		}

		res.Provider = e.name()
		res.Delivered = append(res.Delivered, batch.Delivered...)
		remaining = remaining[:0]
		for id := range batch.Failed {
			remaining = append(remaining, id)
		}
		slices.Sort(remaining)
		break
	}

	if len(remaining) > 0 {
		m.fanOut(ctx, remaining, msg, &res)
	}

	if len(res.Delivered) == 0 {
		errs := []error{ErrAllProvidersFailed}
		for _, err := range res.Failed {
			errs = append(errs, err)
			break
		}
		return res, errors.Join(errs...)
	}
	return res, nil
}

func (m *Manager) fanOut(ctx context.Context, userIDs []int64, msg notify.Message, res *MulticastResult) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(m.cfg.MulticastConcurrent)

	for _, id := range userIDs {
		g.Go(func() error {
			_, err := m.Send(ctx, msg.For(id), "")

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[id] = err
				return nil
			}
			delete(res.Failed, id)
			res.Delivered = append(res.Delivered, id)
			return nil
		})
	}
	_ = g.Wait()
}

// AvailableProviders returns the names of eligible providers in send order.
func (m *Manager) AvailableProviders(ctx context.Context) []string {
	m.maybeRefresh(ctx, false)

	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if e.eligible() {
			names = append(names, e.name())
		}
	}
	return names
}

// ProviderHealth returns the status of one provider.
func (m *Manager) ProviderHealth(name string) (Health, bool) {
	e, ok := m.byName[name]
	if !ok {
		return Health{}, false
	}
	return e.health(), true
}

// HealthReport returns the status of every provider in send order.
func (m *Manager) HealthReport() []Health {
	out := make([]Health, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.health())
	}
	return out
}

// Healthy reports whether at least one provider can take traffic.
func (m *Manager) Healthy() bool {
	for _, e := range m.entries {
		if e.eligible() {
			return true
		}
	}
	return false
}

// Refresh probes every provider now, ignoring the refresh interval.
func (m *Manager) Refresh(ctx context.Context) []Health {
	m.maybeRefresh(ctx, true)
	return m.HealthReport()
}

// ResetCircuits closes every breaker. Operator action.
func (m *Manager) ResetCircuits() {
	for _, e := range m.entries {
		e.breaker.Reset()
	}
}

func (m *Manager) attempt(ctx context.Context, e *entry, msg notify.Message) error {
	start := m.now()
	err := e.provider.Send(ctx, msg)
	latency := m.now().Sub(start)
	e.record(err, latency, m.now())

	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "provider send failed",
			logger.Provider(e.name()),
			logger.UserID(msg.UserID),
			logger.NotificationID(msg.ID),
			logger.Duration(latency),
			logger.Error(err),
		)
		if e.breaker.IsOpen() {
			m.logger.LogAttrs(ctx, slog.LevelError, "provider circuit opened",
				logger.Provider(e.name()),
			)
		}
	}
	return err
}

func (m *Manager) candidates(ctx context.Context, preferred string) []*entry {
	m.maybeRefresh(ctx, false)

	out := make([]*entry, 0, len(m.entries))
	if p, ok := m.byName[preferred]; ok && p.eligible() {
		out = append(out, p)
	}
	for _, e := range m.entries {
		if e.name() != preferred && e.eligible() {
			out = append(out, e)
		}
	}
	return out
}

func (m *Manager) maybeRefresh(ctx context.Context, force bool) {
	m.refreshMu.Lock()
	now := m.now()
	if !force && !m.lastRefresh.IsZero() && now.Sub(m.lastRefresh) < m.cfg.RefreshInterval {
		m.refreshMu.Unlock()
		return
	}
	m.lastRefresh = now
	m.refreshMu.Unlock()

	var g errgroup.Group
	for _, e := range m.entries {
		g.Go(func() error {
			if !e.provider.IsEnabled() {
				e.setAvailable(false)
				return nil
			}
			probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
			defer cancel()
			available := e.provider.IsAvailable(probeCtx)
			e.setAvailable(available)
			if !available {
				m.logger.LogAttrs(ctx, slog.LevelWarn, "provider probe failed", logger.Provider(e.name()))
			}
			return nil
		})
	}
	_ = g.Wait()
}
