package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/BradenHooton/shopguard/migrations"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigratePostgres applies the embedded Postgres migrations using the pool's connection config
func MigratePostgres(ctx context.Context, db *DB, logger *slog.Logger) error {
	sqlDB := stdlib.OpenDB(*db.Pool.Config().ConnConfig)
	defer sqlDB.Close()

	return migrate(ctx, goose.DialectPostgres, sqlDB, "postgres", logger)
}

// MigrateSQLite applies the embedded SQLite migrations
func MigrateSQLite(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return migrate(ctx, goose.DialectSQLite3, db, "sqlite", logger)
}

func migrate(ctx context.Context, dialect goose.Dialect, db *sql.DB, dir string, logger *slog.Logger) error {
	fsys, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to open %s migrations: %w", dir, err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	for _, r := range results {
		logger.Info("migration applied",
			slog.String("dialect", dir),
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration))
	}

	return nil
}
