package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_blobs (
	key        TEXT PRIMARY KEY,
	blob       BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// SQLiteStore локальное файловое хранилище блоков
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	logger *utils.Logger
}

// NewSQLiteStore открывает базу по пути (":memory:" для временной) и создает схему
func NewSQLiteStore(path string, ttl time.Duration, logger *utils.Logger) (*SQLiteStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// один писатель
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize SQLite schema: %w", err)
	}

	logger.WithField("path", path).Info("Initialized SQLite cache store")

	return &SQLiteStore{db: db, ttl: ttl, logger: logger}, nil
}

// Get возвращает блок по ключу; просроченные блоки считаются отсутствующими
func (s *SQLiteStore) Get(ctx context.Context, key string) (blob []byte, err error) {
	defer func(start time.Time) { observe("sqlite", "get", start, err) }(time.Now())

	var createdAt int64
	err = s.db.QueryRowContext(ctx,
		`SELECT blob, created_at FROM cache_blobs WHERE key = ?`, key,
	).Scan(&blob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query blob: %w", err)
	}

	if s.ttl > 0 && time.Since(time.Unix(createdAt, 0)) > s.ttl {
		return nil, models.ErrCacheMiss
	}
	return blob, nil
}

// Put сохраняет или заменяет блок
func (s *SQLiteStore) Put(ctx context.Context, key string, blob []byte) (err error) {
	defer func(start time.Time) { observe("sqlite", "put", start, err) }(time.Now())

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_blobs (key, blob, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, created_at = excluded.created_at`,
		key, blob, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}
	return nil
}

// Ping проверяет соединение с базой
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает базу
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
