package main

import (
	"errors"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/audit"
	"github.com/dmitrymomot/notifycore/pkg/compress"
	"github.com/dmitrymomot/notifycore/pkg/email"
	"github.com/dmitrymomot/notifycore/pkg/enhance"
	"github.com/dmitrymomot/notifycore/pkg/httpapi"
	"github.com/dmitrymomot/notifycore/pkg/orchestrator"
	"github.com/dmitrymomot/notifycore/pkg/pg"
	"github.com/dmitrymomot/notifycore/pkg/presence"
	"github.com/dmitrymomot/notifycore/pkg/provider"
	"github.com/dmitrymomot/notifycore/pkg/queue"
	"github.com/dmitrymomot/notifycore/pkg/ratelimit"
	"github.com/dmitrymomot/notifycore/pkg/redis"
	"github.com/dmitrymomot/notifycore/pkg/storage/opensearch"
)

// Config is the daemon configuration, composed from the component configs.
type Config struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"APP_SERVICE" envDefault:"notifyd"`

	HTTP          httpapi.ServerConfig
	Postgres      pg.Config
	Redis         redis.Config
	OpenSearch    opensearch.Config
	Queue         queue.Config
	QueueLease    time.Duration `env:"QUEUE_CLAIM_LEASE" envDefault:"5m"`
	Providers     provider.Config
	Gateway       provider.GatewayConfig
	RedisProvider provider.RedisConfig
	HubBuffer     int `env:"SOCKET_BUFFER_SIZE" envDefault:"64"`
	Presence      presence.RedisConfig
	Orchestrator  orchestrator.Config
	Enhance       enhance.Config
	RateLimit     ratelimit.Config
	RateLimitKey  string `env:"RATELIMIT_REDIS_PREFIX" envDefault:"notify:ratelimit:"`
	ContentRules  string `env:"CONTENT_RULES_FILE"`
	Compress      compress.Config
	Audit         audit.AsyncOptions
	AuditKeep     time.Duration `env:"AUDIT_RETENTION" envDefault:"720h"`
	Email         email.Config
	MetricsWindow int           `env:"METRICS_CAPACITY" envDefault:"10000"`
	StreamPing    time.Duration `env:"STREAM_HEARTBEAT" envDefault:"25s"`
	UserCache     int           `env:"USER_CACHE_SIZE" envDefault:"10000"`
	UserCacheTTL  time.Duration `env:"USER_CACHE_TTL" envDefault:"1m"`
}

// Validate is called by config.Load.
func (c *Config) Validate() error {
	if !c.Postgres.Enabled() {
		return errors.New("DATABASE_URL is required")
	}
	if c.RedisProvider.Enabled && !c.Redis.Enabled() {
		return errors.New("REDIS_PROVIDER_ENABLED requires REDIS_URL")
	}
	if c.Redis.Enabled() && c.StreamPing >= c.Presence.TTL {
		return errors.New("STREAM_HEARTBEAT must be shorter than PRESENCE_TTL")
	}
	return nil
}
