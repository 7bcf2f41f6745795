package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/retry"
)

// RedisConfig configures the Redis pub/sub provider.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_PROVIDER_ENABLED" envDefault:"false"`
	Name     string `env:"REDIS_PROVIDER_NAME" envDefault:"socket-cluster"`
	Prefix   string `env:"REDIS_PROVIDER_CHANNEL_PREFIX" envDefault:"notify:user:"`
	Priority int    `env:"REDIS_PROVIDER_PRIORITY" envDefault:"20"`
}

// RedisPubSub publishes messages to a per-user channel. Socket servers
// subscribe to the channels of the users connected to them, so a publish
// with no receivers means the user holds no connection anywhere.
type RedisPubSub struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

func NewRedisPubSub(client redis.UniversalClient, cfg RedisConfig) *RedisPubSub {
	if cfg.Name == "" {
		cfg.Name = "socket-cluster"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "notify:user:"
	}
	return &RedisPubSub{client: client, cfg: cfg}
}

// Channel returns the pub/sub channel of a user.
func (r *RedisPubSub) Channel(userID int64) string {
	return r.cfg.Prefix + strconv.FormatInt(userID, 10)
}

func (r *RedisPubSub) Name() string    { return r.cfg.Name }
func (r *RedisPubSub) Priority() int   { return r.cfg.Priority }
func (r *RedisPubSub) IsEnabled() bool { return r.cfg.Enabled && r.client != nil }

func (r *RedisPubSub) IsAvailable(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *RedisPubSub) Send(ctx context.Context, msg notify.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return retry.Wrap(retry.KindInvalidPayload, fmt.Errorf("marshal message: %w", err))
	}

	receivers, err := r.client.Publish(ctx, r.Channel(msg.UserID), payload).Result()
	if err != nil {
		if kind := retry.Classify(err); kind != retry.KindUnknown {
			return retry.Wrap(kind, err)
		}
		return retry.Wrap(retry.KindServiceUnavailable, fmt.Errorf("publish: %w", err))
	}
	if receivers == 0 {
		return retry.Wrap(retry.KindNetworkUnavailable, ErrRecipientUnreachable)
	}
	return nil
}

// SendBatch publishes to each recipient's channel in one pipeline round trip.
func (r *RedisPubSub) SendBatch(ctx context.Context, userIDs []int64, msg notify.Message) (BatchResult, error) {
	pipe := r.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		payload, err := json.Marshal(msg.For(id))
		if err != nil {
			return BatchResult{}, retry.Wrap(retry.KindInvalidPayload, fmt.Errorf("marshal message: %w", err))
		}
		cmds[i] = pipe.Publish(ctx, r.Channel(id), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return BatchResult{}, retry.Wrap(retry.KindServiceUnavailable, fmt.Errorf("publish batch: %w", err))
	}

	res := BatchResult{Failed: make(map[int64]error)}
	for i, id := range userIDs {
		if cmds[i].Val() == 0 {
			res.Failed[id] = retry.Wrap(retry.KindNetworkUnavailable, ErrRecipientUnreachable)
			continue
		}
		res.Delivered = append(res.Delivered, id)
	}
	return res, nil
}

// Subscribe opens a subscription to a user's channel. Socket servers use it
// to receive messages for their locally connected users.
func (r *RedisPubSub) Subscribe(ctx context.Context, userID int64) *redis.PubSub {
	return r.client.Subscribe(ctx, r.Channel(userID))
}
