package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// Window names.
const (
	WindowBurst  = "burst"
	WindowMinute = "minute"
	WindowHour   = "hour"
	WindowDay    = "day"
)

// Config holds limiter thresholds. A non-positive limit disables that
// window.
type Config struct {
	BurstWindow     time.Duration `env:"RATELIMIT_BURST_WINDOW" envDefault:"10s"`
	BurstLimit      int           `env:"RATELIMIT_BURST" envDefault:"5"`
	PerMinute       int           `env:"RATELIMIT_PER_MINUTE" envDefault:"20"`
	PerHour         int           `env:"RATELIMIT_PER_HOUR" envDefault:"200"`
	PerDay          int           `env:"RATELIMIT_PER_DAY" envDefault:"1000"`
	BlockThreshold  int           `env:"RATELIMIT_BLOCK_THRESHOLD" envDefault:"10"`
	ViolationWindow time.Duration `env:"RATELIMIT_VIOLATION_WINDOW" envDefault:"24h"`
	BlockDuration   time.Duration `env:"RATELIMIT_BLOCK_DURATION" envDefault:"1h"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		BurstWindow:     10 * time.Second,
		BurstLimit:      5,
		PerMinute:       20,
		PerHour:         200,
		PerDay:          1000,
		BlockThreshold:  10,
		ViolationWindow: 24 * time.Hour,
		BlockDuration:   time.Hour,
	}
}

// Decision is the outcome of a check.
type Decision struct {
	Allowed bool
	// Window names the first exceeded window.
	Window     string
	RetryAfter time.Duration
	// Blocked is set when the user is under an abuse block.
	Blocked bool
	// Violations is the user's violation count inside the violation window
	// after this check.
	Violations int
	// Degraded is set when the store failed and the check failed open.
	Degraded bool
	Counts   map[string]int64
}

// Err returns nil for allowed decisions and a *notify.RateLimitError
// otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &notify.RateLimitError{Window: d.Window, RetryAfter: d.RetryAfter, Blocked: d.Blocked}
}

// Limiter applies Config to a Store. Safe for concurrent use.
type Limiter struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithLogger(l *slog.Logger) Option {
	return func(lim *Limiter) {
		if l != nil {
			lim.logger = l
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(lim *Limiter) {
		lim.cfg = cfg
		if lim.cfg.BurstWindow <= 0 {
			lim.cfg.BurstWindow = 10 * time.Second
		}
		if lim.cfg.ViolationWindow <= 0 {
			lim.cfg.ViolationWindow = 24 * time.Hour
		}
		if lim.cfg.BlockDuration <= 0 {
			lim.cfg.BlockDuration = time.Hour
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(lim *Limiter) {
		if now != nil {
			lim.now = now
		}
	}
}

// New creates a limiter. It panics on a nil store.
func New(store Store, opts ...Option) *Limiter {
	if store == nil {
		panic(ErrStoreRequired)
	}
	lim := &Limiter{store: store, cfg: DefaultConfig(), logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(lim)
	}
	return lim
}

type namedLimit struct {
	name string
	Limit
}

func (l *Limiter) limits() []namedLimit {
	return []namedLimit{
		{WindowBurst, Limit{Window: l.cfg.BurstWindow, Max: l.cfg.BurstLimit}},
		{WindowMinute, Limit{Window: time.Minute, Max: l.cfg.PerMinute}},
		{WindowHour, Limit{Window: time.Hour, Max: l.cfg.PerHour}},
		{WindowDay, Limit{Window: 24 * time.Hour, Max: l.cfg.PerDay}},
	}
}

// Check counts one request of notifType by userID and decides whether it
// may proceed.
func (l *Limiter) Check(ctx context.Context, userID int64, notifType string) Decision {
	now := l.now()

	until, err := l.store.BlockedUntil(ctx, blockKey(userID), now)
	if err != nil {
		return l.failOpen(ctx, userID, err)
	}
	if !until.IsZero() {
		return Decision{Blocked: true, RetryAfter: until.Sub(now)}
	}

	named := l.limits()
	limits := make([]Limit, len(named))
	for i, n := range named {
		limits[i] = n.Limit
	}

	res, err := l.store.Hit(ctx, Key(userID, notifType), now, limits)
	if err != nil {
		return l.failOpen(ctx, userID, err)
	}

	d := Decision{Allowed: res.Recorded, Counts: make(map[string]int64, len(named))}
	for i, n := range named {
		d.Counts[n.name] = res.Counts[i]
		if d.Allowed || d.Window != "" || n.Max <= 0 || res.Counts[i] < int64(n.Max) {
			continue
		}
		d.Window = n.name
		d.RetryAfter = n.Window
		if !res.Oldest[i].IsZero() {
			d.RetryAfter = res.Oldest[i].Add(n.Window).Sub(now)
		}
	}
	if d.Allowed {
		return d
	}

	l.violation(ctx, userID, now, &d)

	l.logger.LogAttrs(ctx, slog.LevelWarn, "rate limit exceeded",
		logger.Component("ratelimit"),
		logger.UserID(userID),
		logger.NotificationType(notifType),
		slog.String("window", d.Window),
		slog.Duration("retry_after", d.RetryAfter),
		slog.Int("violations", d.Violations),
		slog.Bool("blocked", d.Blocked),
	)

	return d
}

// violation records a rejected request and blocks the user once the
// threshold is reached.
func (l *Limiter) violation(ctx context.Context, userID int64, now time.Time, d *Decision) {
	res, err := l.store.Hit(ctx, violationsKey(userID), now, []Limit{{Window: l.cfg.ViolationWindow}})
	if err != nil {
		l.logger.LogAttrs(ctx, slog.LevelError, "failed to record rate limit violation",
			logger.Component("ratelimit"),
			logger.UserID(userID),
			logger.Error(err),
		)
		return
	}
	d.Violations = int(res.Counts[0]) + 1

	if l.cfg.BlockThreshold <= 0 || d.Violations < l.cfg.BlockThreshold {
		return
	}
	until := now.Add(l.cfg.BlockDuration)
	if err := l.store.SetBlock(ctx, blockKey(userID), until); err != nil {
		l.logger.LogAttrs(ctx, slog.LevelError, "failed to block user",
			logger.Component("ratelimit"),
			logger.UserID(userID),
			logger.Error(err),
		)
		return
	}
	d.Blocked = true
	d.RetryAfter = max(d.RetryAfter, l.cfg.BlockDuration)
}

func (l *Limiter) failOpen(ctx context.Context, userID int64, err error) Decision {
	l.logger.LogAttrs(ctx, slog.LevelError, "rate limit store unavailable, allowing request",
		logger.Component("ratelimit"),
		logger.UserID(userID),
		logger.Error(err),
	)
	return Decision{Allowed: true, Degraded: true}
}

// Status returns current counts per window without recording a request.
func (l *Limiter) Status(ctx context.Context, userID int64, notifType string) (map[string]int64, error) {
	now := l.now()
	key := Key(userID, notifType)
	out := make(map[string]int64, 4)
	for _, n := range l.limits() {
		c, err := l.store.Count(ctx, key, now, n.Window)
		if err != nil {
			return nil, err
		}
		out[n.name] = c
	}
	return out, nil
}

// Reset clears a user's counters for one type.
func (l *Limiter) Reset(ctx context.Context, userID int64, notifType string) error {
	return l.store.Reset(ctx, Key(userID, notifType))
}

// Unblock lifts an abuse block and clears the violation history.
func (l *Limiter) Unblock(ctx context.Context, userID int64) error {
	if err := l.store.Reset(ctx, blockKey(userID)); err != nil {
		return err
	}
	return l.store.Reset(ctx, violationsKey(userID))
}
