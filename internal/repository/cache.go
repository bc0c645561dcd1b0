package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// TrajectoriesKey ключ коллекции траекторий
func TrajectoriesKey(identity string) string {
	return "traces:" + identity
}

// SolutionKey ключ решения для набора параметров
func SolutionKey(identity, paramsKey string) string {
	return fmt.Sprintf("solution:%s:%s", identity, paramsKey)
}

// EvaluationKey ключ результата перебора сетки
func EvaluationKey(identity string, kind models.SolverKind) string {
	return fmt.Sprintf("evaluation:%s:%s", identity, kind)
}

// Cache типизированный доступ к хранилищу через кодек
type Cache struct {
	store  Store
	logger *utils.Logger
}

// NewCache создает кэш поверх хранилища
func NewCache(store Store, logger *utils.Logger) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Cache{store: store, logger: logger}, nil
}

// Load читает и декодирует блок в v. Возвращает false при отсутствии ключа
// и при нечитаемом блоке: такой блок считается промахом и будет перезаписан.
func (c *Cache) Load(ctx context.Context, key string, kind BlobKind, v interface{}) (bool, error) {
	blob, err := c.store.Get(ctx, key)
	if errors.Is(err, models.ErrCacheMiss) {
		metrics.CacheLookups.WithLabelValues(string(kind), "miss").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := Decode(blob, kind, v); err != nil {
		cacheErr := &models.CacheError{Key: key, Err: err}
		metrics.CacheLookups.WithLabelValues(string(kind), "corrupt").Inc()
		c.logger.WithError(cacheErr).
			WithField("cache_key", key).
			Warn("Discarding unreadable cache blob")
		return false, nil
	}

	metrics.CacheLookups.WithLabelValues(string(kind), "hit").Inc()
	return true, nil
}

// Save кодирует и сохраняет значение
func (c *Cache) Save(ctx context.Context, key string, kind BlobKind, v interface{}) error {
	blob, err := Encode(kind, v)
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, key, blob); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}

	c.logger.WithField("cache_key", key).
		WithField("bytes", len(blob)).
		Debug("Cache blob saved")
	return nil
}
