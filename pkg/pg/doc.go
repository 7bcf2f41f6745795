// Package pg opens the PostgreSQL pool, applies embedded goose migrations and
// exposes a health check. The durable queue, inbox, audit and user stores in
// pkg/storage/postgres run on the pool it returns.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, postgres.Migrations, "migrations", log); err != nil {
//	    return err
//	}
package pg
