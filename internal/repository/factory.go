package repository

import (
	"context"
	"fmt"

	"github.com/flybeeper/trajflow/internal/config"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// NewStore создает хранилище по конфигурации и проверяет соединение
func NewStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	var (
		store Store
		err   error
	)

	switch cfg.Cache.Backend {
	case "memory":
		store = NewMemoryStore(cfg.Cache.MemoryCapacity, cfg.Cache.TTL)
	case "sqlite":
		store, err = NewSQLiteStore(cfg.Cache.SQLitePath, cfg.Cache.TTL, logger)
	case "redis":
		store, err = NewRedisStore(&cfg.Redis, cfg.Cache.TTL, logger)
	case "mysql":
		var repo *MySQLRepository
		repo, err = NewMySQLRepository(&cfg.MySQL, cfg.Cache.TTL, logger)
		if err == nil {
			if err = repo.EnsureCacheTable(ctx); err != nil {
				repo.Close()
			}
		}
		store = repo
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s store is not reachable: %w", cfg.Cache.Backend, err)
	}

	logger.WithField("backend", cfg.Cache.Backend).Info("Cache store ready")
	return store, nil
}
