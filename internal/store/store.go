// Package store opens the queue.Store backend named by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"mqas/internal/config"
	"mqas/internal/queue"
	"mqas/internal/store/mongo"
	"mqas/internal/store/postgres"
	"mqas/internal/store/sqlite"
)

// Open dials the configured backend, bounded by the store connect timeout.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (queue.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: config is required")
	}
	if timeout := cfg.ConnectTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.Store.SQLitePath)
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.Store.PostgresDSN, postgres.WithLogger(logger))
	case config.BackendMongo:
		return mongo.Open(ctx, cfg.Store.MongoURI, cfg.Store.Database, cfg.Store.Collection, mongo.WithLogger(logger))
	default:
		return nil, fmt.Errorf("store: unsupported backend %q", cfg.Store.Backend)
	}
}

// Opener adapts Open for queue.Connect.
func Opener(cfg *config.Config, logger *slog.Logger) queue.Opener {
	return func(ctx context.Context) (queue.Store, error) {
		return Open(ctx, cfg, logger)
	}
}
