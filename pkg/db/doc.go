// Package db wraps pgxpool with startup retries, goose migrations and
// transaction helpers.
//
//	pool, err := db.Connect(ctx, cfg, log)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := db.Migrate(ctx, pool, migrations.FS, ".", cfg.MigrationsTable, log); err != nil {
//		return err
//	}
//
//	version, err := db.WithTxResult(ctx, pool, func(tx pgx.Tx) (int, error) {
//		var v int
//		err := tx.QueryRow(ctx, "UPDATE t SET version = version + 1 RETURNING version").Scan(&v)
//		return v, err
//	})
//
// IsUniqueViolation recognises SQLSTATE 23505 so stores can turn an
// insert race into a domain conflict.
package db
