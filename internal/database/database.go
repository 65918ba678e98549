package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/taskstore/internal/config"
)

// DB owns the pgx pool every repository and the task service share. The
// pool is the unit of transactionality: services begin transactions on it
// directly, repositories only ever see the pool or an open tx.
type DB struct {
	pool *pgxpool.Pool
}

// Pool exposes the underlying pool for repository construction.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// New connects to the given PostgreSQL URL and verifies the connection
// before handing the pool out. Pool sizing comes from the config defaults.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	cfg.MaxConns = config.DefaultMaxConns
	cfg.MinConns = config.DefaultMinConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to task store database")

	return &DB{pool: pool}, nil
}

// Close releases the pool. Safe to defer right after New.
func (db *DB) Close() {
	db.pool.Close()
	slog.Info("task store database closed")
}
