package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ebogdum/easylock/config"
	"github.com/ebogdum/easylock/locks"
	"github.com/ebogdum/easylock/locks/postgres"
	"github.com/ebogdum/easylock/locks/sqlite"
)

// buildStore opens the lock store selected by cfg.Type
func buildStore(cfg config.StoreConfig, logger *zap.Logger) (locks.Store, error) {
	switch cfg.Type {
	case "memory":
		logger.Warn("Using in-memory lock store, locks are not shared between processes")
		return locks.NewMemoryStore(), nil

	case "redis":
		logger.Info("Initializing Redis lock store", zap.String("addr", cfg.RedisAddr))
		store, err := locks.NewRedisStore(locks.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis lock store: %w", err)
		}
		return store, nil

	case "postgres":
		logger.Info("Running lock store migrations")
		if err := postgres.RunMigrations(cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("failed to run lock store migrations: %w", err)
		}
		logger.Info("Initializing PostgreSQL lock store")
		store, err := postgres.NewPostgresStore(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres lock store: %w", err)
		}
		return store, nil

	case "sqlite":
		logger.Info("Initializing SQLite lock store", zap.String("path", cfg.SQLitePath))
		store, err := sqlite.NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite lock store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown lock store type %q", cfg.Type)
	}
}
