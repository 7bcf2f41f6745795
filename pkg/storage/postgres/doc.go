// Package postgres implements the durable stores on PostgreSQL through a
// pgx pool: the queue's durable tier, the in-app inbox, the audit log, and
// the user directory with per-type notification preferences.
//
// The schema ships as embedded goose migrations:
//
//	if err := pg.Migrate(ctx, pool, postgres.Migrations, postgres.MigrationsDir, cfg.MigrationsTable, log); err != nil {
//	    return err
//	}
//	st := postgres.NewQueueStore(pool)
//
// Queue claims use SELECT ... FOR UPDATE SKIP LOCKED so several daemons can
// drain one table without handing the same item out twice. Items left in
// processing by a crashed daemon are reclaimed after the lease expires.
package postgres
