package repository

import (
	"context"
	"time"

	"github.com/flybeeper/trajflow/internal/geo"
	"github.com/flybeeper/trajflow/internal/models"
)

// MemoryStore хранилище в памяти процесса поверх LRU кэша
type MemoryStore struct {
	cache *geo.LRUCache
}

// NewMemoryStore создает хранилище на capacity блоков; ttl 0 означает бессрочное хранение
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryStore{cache: geo.NewLRUCache(capacity, ttl)}
}

// Get возвращает копию блока
func (s *MemoryStore) Get(ctx context.Context, key string) (blob []byte, err error) {
	defer func(start time.Time) { observe("memory", "get", start, err) }(time.Now())

	value, ok := s.cache.Get(key)
	if !ok {
		return nil, models.ErrCacheMiss
	}
	stored := value.([]byte)
	blob = make([]byte, len(stored))
	copy(blob, stored)
	return blob, nil
}

// Put сохраняет копию блока
func (s *MemoryStore) Put(ctx context.Context, key string, blob []byte) (err error) {
	defer func(start time.Time) { observe("memory", "put", start, err) }(time.Now())

	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.cache.Set(key, stored, len(stored))
	return nil
}

// Ping всегда успешен
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close очищает хранилище
func (s *MemoryStore) Close() error {
	s.cache.Clear()
	return nil
}

var _ Store = (*MemoryStore)(nil)
