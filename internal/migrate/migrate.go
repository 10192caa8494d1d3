// Package migrate applies the embedded schema migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Versioned schema for the estimate cache, quarantine queue, and interval
// store, one directory per dialect.
//
//go:embed migrations
var migrationsFS embed.FS

// dialect maps a storage driver name onto goose's dialect, the migration
// directory, and the database/sql driver to open the connection with.
func dialect(driver string) (gooseDialect, dir, sqlDriver string, err error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return "sqlite3", "migrations/sqlite", "sqlite", nil
	case "postgres", "pgx", "postgrespool":
		return "postgres", "migrations/postgres", "pgx", nil
	}
	return "", "", "", fmt.Errorf("migrate: unsupported driver %q", driver)
}

func run(ctx context.Context, driver, dsn string, apply func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error) error {
	gd, dir, sqlDriver, err := dialect(driver)
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect(gd); err != nil {
		return err
	}

	if dsn == "" {
		dsn = "costengine.db"
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return fmt.Errorf("migrate: open %s: %w", sqlDriver, err)
	}
	defer db.Close()

	return apply(ctx, db, dir)
}

// Up applies every pending migration.
func Up(ctx context.Context, driver, dsn string) error {
	return run(ctx, driver, dsn, goose.UpContext)
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, driver, dsn string) error {
	return run(ctx, driver, dsn, goose.DownContext)
}

// Status prints the applied/pending ledger.
func Status(ctx context.Context, driver, dsn string) error {
	return run(ctx, driver, dsn, goose.StatusContext)
}
