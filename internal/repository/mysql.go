package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/flybeeper/trajflow/internal/config"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MySQLRepository соединение с MySQL: хранилище блоков и источник записей треков
type MySQLRepository struct {
	db     *sql.DB
	logger *utils.Logger
	config *config.MySQLConfig
	ttl    time.Duration
}

// NewMySQLRepository создает MySQL репозиторий
func NewMySQLRepository(cfg *config.MySQLConfig, ttl time.Duration, logger *utils.Logger) (*MySQLRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required")
	}
	for _, table := range []string{cfg.CacheTable, cfg.TrackTable} {
		if !tableNamePattern.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}

	// время сканируется в time.Time
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	dsn.ParseTime = true

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	// Настройки connection pool
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	return &MySQLRepository{
		db:     db,
		logger: logger,
		config: cfg,
		ttl:    ttl,
	}, nil
}

// EnsureCacheTable создает таблицу блоков, если ее нет
func (r *MySQLRepository) EnsureCacheTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			cache_key  VARCHAR(255) NOT NULL PRIMARY KEY,
			blob_data  LONGBLOB NOT NULL,
			created_at DATETIME NOT NULL
		)`, r.config.CacheTable)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

// Get возвращает блок по ключу
func (r *MySQLRepository) Get(ctx context.Context, key string) (blob []byte, err error) {
	defer func(start time.Time) { observe("mysql", "get", start, err) }(time.Now())

	query := fmt.Sprintf(`SELECT blob_data, created_at FROM %s WHERE cache_key = ?`, r.config.CacheTable)

	var createdAt time.Time
	err = r.db.QueryRowContext(ctx, query, key).Scan(&blob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query blob: %w", err)
	}

	if r.ttl > 0 && time.Since(createdAt) > r.ttl {
		return nil, models.ErrCacheMiss
	}
	return blob, nil
}

// Put сохраняет или заменяет блок
func (r *MySQLRepository) Put(ctx context.Context, key string, blob []byte) (err error) {
	defer func(start time.Time) { observe("mysql", "put", start, err) }(time.Now())

	query := fmt.Sprintf(`
		INSERT INTO %s (cache_key, blob_data, created_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE blob_data = VALUES(blob_data), created_at = VALUES(created_at)`,
		r.config.CacheTable)

	if _, err = r.db.ExecContext(ctx, query, key, blob, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}
	return nil
}

// LoadRecords загружает точки треков в пределах bounds (nil означает все точки)
func (r *MySQLRepository) LoadRecords(ctx context.Context, bounds *models.Bounds) ([]models.Record, error) {
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT entity_id, ts, lon, lat
		FROM %s`, r.config.TrackTable)
	var args []interface{}
	if bounds != nil {
		query += `
		WHERE lon BETWEEN ? AND ? AND lat BETWEEN ? AND ?`
		args = append(args,
			bounds.Southwest.Longitude, bounds.Northeast.Longitude,
			bounds.Southwest.Latitude, bounds.Northeast.Latitude,
		)
	}
	query += `
		ORDER BY entity_id, ts`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query track records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(&rec.EntityID, &rec.Timestamp, &rec.X, &rec.Y); err != nil {
			return nil, fmt.Errorf("failed to scan track record: %w", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("track records iteration failed: %w", err)
	}

	r.logger.WithField("records", len(records)).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Loaded track records from MySQL")

	return records, nil
}

// Ping проверяет соединение с MySQL
func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close закрывает соединение с MySQL
func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

var (
	_ Store        = (*MySQLRepository)(nil)
	_ RecordSource = (*MySQLRepository)(nil)
)
