// Package store provides series store initialization for frontier.
//
// It builds the storage.Store selected by the configuration:
//
//   - redis: sorted sets on a Redis server (default, matches the producers).
//   - memory: in-process sorted sets, for local runs and tests.
//   - sqlite: a series_entries table in a SQLite file.
//   - pebble: an embedded Pebble database directory.
//
// Construction errors are fatal to the caller. An unreachable Redis server
// at startup is only logged: reachability is re-checked every poll cycle and
// store outages never stop the service.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/frontier/cmd/frontier/config"
	"github.com/HatiCode/frontier/pkg/storage"
)

// New creates the store selected by cfg.Storage.
func New(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage {
	case "redis":
		logger.Info("initializing redis storage",
			"addr", cfg.RedisAddr,
			"db", cfg.RedisDB,
		)
		redisStore, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis storage: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisStore.Ping(ctx); err != nil {
			logger.Warn("redis not reachable yet, will retry every cycle", "error", err)
		} else {
			logger.Info("redis storage initialized successfully")
		}
		return redisStore, nil

	case "memory":
		logger.Info("initializing in-memory storage")
		return storage.NewMemoryStore(), nil

	case "sqlite":
		logger.Info("initializing sqlite storage", "path", cfg.SQLitePath)
		sqliteStore, err := storage.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite storage: %w", err)
		}
		return sqliteStore, nil

	case "pebble":
		logger.Info("initializing pebble storage", "path", cfg.PebblePath)
		pebbleStore, err := storage.OpenPebbleStore(cfg.PebblePath)
		if err != nil {
			return nil, fmt.Errorf("pebble storage: %w", err)
		}
		return pebbleStore, nil

	default:
		return nil, fmt.Errorf("invalid storage type %q", cfg.Storage)
	}
}
