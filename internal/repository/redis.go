package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flybeeper/trajflow/internal/config"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// CachePrefix префикс ключей блоков в Redis
const CachePrefix = "trajflow:" // trajflow:{key}

// RedisStore хранилище блоков в Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *utils.Logger
	config *config.RedisConfig
}

// NewRedisStore создает хранилище Redis; ttl 0 означает хранение без срока
func NewRedisStore(cfg *config.RedisConfig, ttl time.Duration, logger *utils.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	// Парсим Redis URL
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Дополнительные настройки
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	opt.DB = cfg.DB
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.ConnMaxIdleTime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	return &RedisStore{
		client: redis.NewClient(opt),
		ttl:    ttl,
		logger: logger,
		config: cfg,
	}, nil
}

// Get возвращает блок по ключу
func (r *RedisStore) Get(ctx context.Context, key string) (blob []byte, err error) {
	defer func(start time.Time) { observe("redis", "get", start, err) }(time.Now())

	blob, err = r.client.Get(ctx, CachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return blob, nil
}

// Put сохраняет блок
func (r *RedisStore) Put(ctx context.Context, key string, blob []byte) (err error) {
	defer func(start time.Time) { observe("redis", "put", start, err) }(time.Now())

	if err = r.client.Set(ctx, CachePrefix+key, blob, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func (r *RedisStore) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// GetClient возвращает Redis клиент (используется в тестах)
func (r *RedisStore) GetClient() *redis.Client {
	return r.client
}

var _ Store = (*RedisStore)(nil)
