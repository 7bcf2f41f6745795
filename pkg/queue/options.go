package queue

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/presence"
)

// Option configures a Queue.
type Option func(*Queue)

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithConfig overrides the defaults. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(q *Queue) {
		q.cfg = cfg.merge(DefaultConfig())
	}
}

// WithTracker sets the connectivity tracker used for online checks and
// queued counts. A MemoryTracker is used by default.
func WithTracker(t presence.Tracker) Option {
	return func(q *Queue) {
		if t != nil {
			q.tracker = t
		}
	}
}

// WithHook registers an outcome observer.
func WithHook(h Hook) Option {
	return func(q *Queue) {
		if h != nil {
			q.hooks = append(q.hooks, h)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}
