// Command notifyd runs the notification delivery core: the orchestrator,
// the retry queue, the provider manager and the HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifycore/pkg/audit"
	"github.com/dmitrymomot/notifycore/pkg/compress"
	"github.com/dmitrymomot/notifycore/pkg/config"
	"github.com/dmitrymomot/notifycore/pkg/contentfilter"
	"github.com/dmitrymomot/notifycore/pkg/email"
	"github.com/dmitrymomot/notifycore/pkg/enhance"
	"github.com/dmitrymomot/notifycore/pkg/httpapi"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/metrics"
	"github.com/dmitrymomot/notifycore/pkg/orchestrator"
	"github.com/dmitrymomot/notifycore/pkg/pg"
	"github.com/dmitrymomot/notifycore/pkg/presence"
	"github.com/dmitrymomot/notifycore/pkg/provider"
	"github.com/dmitrymomot/notifycore/pkg/queue"
	"github.com/dmitrymomot/notifycore/pkg/ratelimit"
	"github.com/dmitrymomot/notifycore/pkg/redis"
	"github.com/dmitrymomot/notifycore/pkg/storage/opensearch"
	"github.com/dmitrymomot/notifycore/pkg/storage/postgres"
)

func main() {
	var cfg Config
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithContextExtractors(httpapi.RequestIDExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "notifyd stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.LogAttrs(ctx, slog.LevelInfo, "notifyd stopped")
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, postgres.Migrations, postgres.MigrationsDir, cfg.Postgres.MigrationsTable, log); err != nil {
		return err
	}

	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		if rdb, err = redis.Connect(ctx, cfg.Redis); err != nil {
			return err
		}
		defer rdb.Close()
	}

	// Connectivity oracle.
	var tracker presence.Tracker = presence.NewMemoryTracker()
	if rdb != nil {
		tracker = presence.NewRedisTracker(rdb, cfg.Presence, presence.WithRedisLogger(log))
	}

	// Enhancement components.
	auditStorage, closeAudit, err := openAuditStorage(ctx, cfg, pool, log)
	if err != nil {
		return err
	}
	auditLog := audit.New(auditStorage,
		audit.WithLogger(log),
		audit.WithFilter(audit.NewMetadataFilter()),
	)

	var limitStore ratelimit.Store
	if rdb != nil {
		limitStore = ratelimit.NewRedisStore(rdb, cfg.RateLimitKey)
	} else {
		mem := ratelimit.NewMemoryStore()
		defer mem.Close()
		limitStore = mem
	}
	limiter := ratelimit.New(limitStore, ratelimit.WithConfig(cfg.RateLimit), ratelimit.WithLogger(log))

	rules := contentfilter.DefaultRules()
	if cfg.ContentRules != "" {
		if rules, err = contentfilter.LoadRulesFile(cfg.ContentRules); err != nil {
			return err
		}
	}
	filter, err := contentfilter.New(rules)
	if err != nil {
		return err
	}

	optimizer, err := compress.New(cfg.Compress)
	if err != nil {
		return err
	}
	defer optimizer.Close()

	enhancer := enhance.New(cfg.Enhance,
		enhance.WithLogger(log),
		enhance.WithRateLimiter(limiter),
		enhance.WithContentFilter(filter),
		enhance.WithAudit(auditLog),
		enhance.WithOptimizer(optimizer),
	)

	// Delivery providers.
	hub := provider.NewHub(provider.WithBufferSize(cfg.HubBuffer))
	defer hub.Close()
	providers := []provider.Provider{hub}
	if cfg.Gateway.URL != "" {
		providers = append(providers, provider.NewGateway(cfg.Gateway, provider.WithPayloadEncoder(enhancer)))
	}
	if rdb != nil && cfg.RedisProvider.Enabled {
		providers = append(providers, provider.NewRedisPubSub(rdb, cfg.RedisProvider))
	}
	manager := provider.NewManager(providers,
		provider.WithLogger(log),
		provider.WithConfig(cfg.Providers),
	)

	// Stores, queue and orchestrator.
	inboxStore := postgres.NewInboxStore(pool)
	users := postgres.NewUsers(pool, postgres.WithUserCache(cfg.UserCache, cfg.UserCacheTTL))
	agg := metrics.NewAggregator(metrics.WithCapacity(cfg.MetricsWindow))

	q, err := queue.New(postgres.NewQueueStore(pool, postgres.WithLease(cfg.QueueLease)), manager,
		queue.WithTracker(tracker),
		queue.WithHook(orchestrator.QueueRecorder(agg, inboxStore, log)),
		queue.WithConfig(cfg.Queue),
		queue.WithLogger(log),
	)
	if err != nil {
		return err
	}

	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Dependencies{
		Users:        users,
		Preferences:  users,
		Connectivity: tracker,
		Inbox:        inboxStore,
	},
		orchestrator.WithLogger(log),
		orchestrator.WithConfig(cfg.Orchestrator),
		orchestrator.WithDelivery(manager),
		orchestrator.WithQueue(q),
		orchestrator.WithEnhancer(enhancer),
		orchestrator.WithEmail(email.NewDispatcher(sender, cfg.Email, email.WithLogger(log))),
		orchestrator.WithMetrics(agg),
	)
	if err != nil {
		return err
	}

	api := httpapi.New(orch, q, hub,
		httpapi.WithLogger(log),
		httpapi.WithHeartbeat(cfg.StreamPing),
	)
	srv := httpapi.NewServer(cfg.HTTP, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(q.Run(gctx))
	g.Go(orch.Run(gctx))
	g.Go(func() error { return srv.Run(gctx, api.Handler()) })
	g.Go(func() error { return auditRetention(gctx, auditLog, cfg.AuditKeep, log) })

	err = g.Wait()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return errors.Join(err, closeAudit(closeCtx))
}

// openAuditStorage picks OpenSearch when configured and Postgres otherwise.
// Writes are batched by an AsyncWriter whose Close flushes the buffer.
func openAuditStorage(ctx context.Context, cfg Config, pool *pgxpool.Pool, log *slog.Logger) (audit.Storage, func(context.Context) error, error) {
	var backend audit.Storage = postgres.NewAuditStore(pool)
	if cfg.OpenSearch.Enabled() {
		client, err := opensearch.Connect(ctx, cfg.OpenSearch)
		if err != nil {
			return nil, nil, err
		}
		store := opensearch.NewAuditStore(client, cfg.OpenSearch.Index, opensearch.WithRefresh(cfg.OpenSearch.Refresh))
		if err := store.EnsureIndex(ctx); err != nil {
			return nil, nil, err
		}
		backend = store
	}
	w := audit.NewAsyncWriter(backend, cfg.Audit, audit.WithAsyncLogger(log))
	return w, w.Close, nil
}

// auditRetention prunes audit events older than keep once an hour.
func auditRetention(ctx context.Context, a *audit.Logger, keep time.Duration, log *slog.Logger) error {
	if keep <= 0 {
		return nil
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := a.Cleanup(ctx, keep)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelWarn, "audit cleanup failed", logger.Error(err))
				continue
			}
			if n > 0 {
				log.LogAttrs(ctx, slog.LevelInfo, "audit events pruned", logger.Count(int(n)))
			}
		}
	}
}
