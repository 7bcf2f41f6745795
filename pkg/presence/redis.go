package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifycore/pkg/logger"
)

const (
	fieldOnline   = "online"
	fieldLastSeen = "last_seen"
	fieldChannel  = "channel"
	fieldQueued   = "queued"
)

// RedisConfig holds RedisTracker settings.
type RedisConfig struct {
	Prefix string `env:"PRESENCE_REDIS_PREFIX" envDefault:"notify:presence:"`
	// TTL bounds how long a user stays online without a refresh.
	TTL time.Duration `env:"PRESENCE_TTL" envDefault:"2m"`
	// Retention is how long offline status hashes are kept.
	Retention time.Duration `env:"PRESENCE_RETENTION" envDefault:"168h"`
}

// RedisTracker stores presence in one hash per user. The online flag lives
// in a separate key with TTL so a crashed connection owner cannot leave a
// user online forever.
type RedisTracker struct {
	client redis.UniversalClient
	cfg    RedisConfig
	logger *slog.Logger
	now    func() time.Time
}

// RedisOption configures a RedisTracker.
type RedisOption func(*RedisTracker)

func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(t *RedisTracker) {
		if l != nil {
			t.logger = l
		}
	}
}

func WithRedisClock(now func() time.Time) RedisOption {
	return func(t *RedisTracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewRedisTracker(client redis.UniversalClient, cfg RedisConfig, opts ...RedisOption) *RedisTracker {
	if cfg.Prefix == "" {
		cfg.Prefix = "notify:presence:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	t := &RedisTracker{client: client, cfg: cfg, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *RedisTracker) statusKey(userID int64) string {
	return t.cfg.Prefix + strconv.FormatInt(userID, 10)
}

func (t *RedisTracker) onlineKey(userID int64) string {
	return t.statusKey(userID) + ":online"
}

// IsOnline reports false when Redis is unreachable.
func (t *RedisTracker) IsOnline(ctx context.Context, userID int64) bool {
	n, err := t.client.Exists(ctx, t.onlineKey(userID)).Result()
	if err != nil {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "presence lookup failed",
			logger.Component("presence"), logger.UserID(userID), logger.Error(err))
		return false
	}
	return n > 0
}

func (t *RedisTracker) SetOnline(ctx context.Context, userID int64, channel string) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	now := t.now()
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, t.onlineKey(userID), channel, t.cfg.TTL)
		p.HSet(ctx, t.statusKey(userID),
			fieldOnline, "1",
			fieldChannel, channel,
			fieldLastSeen, now.UnixMilli(),
		)
		p.Expire(ctx, t.statusKey(userID), t.cfg.Retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence: set online: %w", err)
	}
	return nil
}

func (t *RedisTracker) SetOffline(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	now := t.now()
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, t.onlineKey(userID))
		p.HSet(ctx, t.statusKey(userID), fieldOnline, "0", fieldLastSeen, now.UnixMilli())
		p.Expire(ctx, t.statusKey(userID), t.cfg.Retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence: set offline: %w", err)
	}
	return nil
}

func (t *RedisTracker) SetQueued(ctx context.Context, userID int64, count int) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	if err := t.client.HSet(ctx, t.statusKey(userID), fieldQueued, max(0, count)).Err(); err != nil {
		return fmt.Errorf("presence: set queued: %w", err)
	}
	return nil
}

func (t *RedisTracker) Status(ctx context.Context, userID int64) (Status, error) {
	if userID <= 0 {
		return Status{}, ErrInvalidUserID
	}
	vals, err := t.client.HGetAll(ctx, t.statusKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Status{}, fmt.Errorf("presence: status: %w", err)
	}
	s := Status{UserID: userID, Channel: vals[fieldChannel]}
	if ms, err := strconv.ParseInt(vals[fieldLastSeen], 10, 64); err == nil {
		s.LastSeen = time.UnixMilli(ms)
	}
	if n, err := strconv.Atoi(vals[fieldQueued]); err == nil {
		s.QueuedCount = n
	}
	s.Online = t.IsOnline(ctx, userID)
	return s, nil
}

// Touch extends the online TTL of a connected user. A lapsed online key is
// not recreated.
func (t *RedisTracker) Touch(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	ok, err := t.client.Expire(ctx, t.onlineKey(userID), t.cfg.TTL).Result()
	if err != nil {
		return fmt.Errorf("presence: touch: %w", err)
	}
	if !ok {
		return nil
	}
	if err := t.client.HSet(ctx, t.statusKey(userID), fieldLastSeen, t.now().UnixMilli()).Err(); err != nil {
		return fmt.Errorf("presence: touch: %w", err)
	}
	return nil
}
