// Package pg bootstraps PostgreSQL access on top of pgx/v5: a retrying pool
// constructor, goose migrations from an embedded filesystem, a health check,
// error classification helpers and a transaction-in-context helper.
//
//	pool, err := pg.Connect(ctx, cfg.Postgres)
//	if err != nil { ... }
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg.Postgres, log); err != nil { ... }
//
//	db := pg.NewDB(pool)
//	err = db.WithTx(ctx, func(ctx context.Context) error {
//		_, err := db.Q(ctx).Exec(ctx, "UPDATE ...")
//		return err
//	})
package pg
