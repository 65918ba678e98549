package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// The task store schema ships inside the binary so `taskstore migrate`
// needs nothing beyond a database URL. The log sequence lives in the same
// migration set as the tables it numbers.
//
//go:embed migrations/*.sql
var embedMigrations embed.FS

// RunMigrations brings the schema up to the latest embedded version. It is
// safe to call on every start; applied versions are skipped by goose.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// goose speaks database/sql, so borrow a stdlib handle from the pool.
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	slog.Info("schema migrated", "version", version)

	return nil
}
