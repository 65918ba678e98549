package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/procflow/taskstore/internal/config"
	"github.com/procflow/taskstore/internal/database"
	"github.com/procflow/taskstore/internal/logger"
	"github.com/procflow/taskstore/internal/repository"
)

func main() {
	app := &cli.App{
		Name:  "taskstore",
		Usage: "Task query-and-audit store maintenance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending schema migrations",
				Action: runMigrate,
			},
			{
				Name:  "purge-log",
				Usage: "Delete task log entries older than the retention window",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "retention",
						Aliases: []string{"r"},
						Value:   90 * 24 * time.Hour,
						Usage:   "Keep entries younger than this duration",
						EnvVars: []string{"LOG_RETENTION"},
					},
				},
				Action: runPurgeLog,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func runMigrate(c *cli.Context) error {
	ctx := c.Context

	db, err := database.New(ctx, c.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return database.RunMigrations(ctx, db.Pool())
}

func runPurgeLog(c *cli.Context) error {
	ctx := c.Context

	db, err := database.New(ctx, c.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	cutoff := time.Now().Add(-c.Duration("retention"))
	logRepo := repository.NewTaskLogRepository(db.Pool())

	removed, err := logRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge log entries: %w", err)
	}

	slog.Info("purged log entries", "removed", removed, "cutoff", cutoff)
	return nil
}
