// Package pg connects to PostgreSQL through a pgx pool, applies goose
// migrations from an embedded filesystem and classifies driver errors.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, migrations, "migrations", cfg, log); err != nil {
//	    return err
//	}
package pg
