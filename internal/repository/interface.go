package repository

import (
	"context"
	"errors"
	"time"

	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
)

// Store хранилище бинарных блоков по строковому ключу
type Store interface {
	// Get возвращает блок или models.ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, blob []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// RecordSource источник сырых записей для области
type RecordSource interface {
	LoadRecords(ctx context.Context, bounds *models.Bounds) ([]models.Record, error)
}

// observe фиксирует длительность и ошибку операции хранилища
func observe(backend, operation string, start time.Time, err error) {
	metrics.StoreOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, models.ErrCacheMiss) {
		metrics.StoreOperationErrors.WithLabelValues(backend, operation).Inc()
	}
}
