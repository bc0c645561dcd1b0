package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/flybeeper/trajflow/internal/models"
)

// Config содержит конфигурацию приложения
type Config struct {
	Environment string
	Server      ServerConfig
	Cache       CacheConfig
	Redis       RedisConfig
	MySQL       MySQLConfig
	Source      SourceConfig
	Preprocess  PreprocessConfig
	Flow        FlowConfig
	Evaluation  EvaluationConfig
	Performance PerformanceConfig
	Monitoring  MonitoringConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CacheConfig конфигурация хранилища промежуточных результатов
type CacheConfig struct {
	Backend        string // memory, sqlite, redis, mysql
	TTL            time.Duration
	MemoryCapacity int
	SQLitePath     string
}

// RedisConfig конфигурация Redis
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// MySQLConfig конфигурация MySQL
type MySQLConfig struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
	CacheTable   string
	TrackTable   string
}

// SourceConfig источник входных записей
type SourceConfig struct {
	Kind string // csv, mysql
	Path string
	// BBox область выборки; пустая означает границы самих записей
	BBox *models.Bounds
}

// PreprocessConfig параметры препроцессинга
type PreprocessConfig struct {
	SimplifyTolerance float64
	GapThreshold      time.Duration
	MinPoints         int
}

// FlowConfig параметры агрегатора потоков, не входящие в сетку
type FlowConfig struct {
	MinStopDuration time.Duration
}

// EvaluationConfig параметры перебора сетки
type EvaluationConfig struct {
	Workers           int
	MaxDistinctLabels int
	GridFile          string
}

// PerformanceConfig конфигурация производительности
type PerformanceConfig struct {
	WebSocketPingInterval time.Duration
	WebSocketPongTimeout  time.Duration
}

// MonitoringConfig конфигурация мониторинга
type MonitoringConfig struct {
	MetricsEnabled bool
}

// Load загружает конфигурацию из .env файла (если есть) и переменных окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	bbox, err := parseBounds(getEnv("SOURCE_BBOX", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid SOURCE_BBOX: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Address:      getEnv("SERVER_ADDRESS", ":8090"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Cache: CacheConfig{
			Backend:        getEnv("CACHE_BACKEND", "sqlite"),
			TTL:            getDuration("CACHE_TTL", 0),
			MemoryCapacity: getInt("CACHE_MEMORY_CAPACITY", 256),
			SQLitePath:     getEnv("CACHE_SQLITE_PATH", "trajflow-cache.db"),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getInt("REDIS_DB", 0),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		MySQL: MySQLConfig{
			DSN:          getEnv("MYSQL_DSN", ""),
			MaxIdleConns: getInt("MYSQL_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getInt("MYSQL_MAX_OPEN_CONNS", 20),
			CacheTable:   getEnv("MYSQL_CACHE_TABLE", "trajflow_cache"),
			TrackTable:   getEnv("MYSQL_TRACK_TABLE", "track_points"),
		},
		Source: SourceConfig{
			Kind: getEnv("SOURCE_KIND", "csv"),
			Path: getEnv("SOURCE_PATH", "tracks.csv"),
			BBox: bbox,
		},
		Preprocess: PreprocessConfig{
			SimplifyTolerance: getFloat("SIMPLIFY_TOLERANCE", 0.0001),
			GapThreshold:      getDuration("GAP_THRESHOLD", 30*time.Minute),
			MinPoints:         getInt("MIN_POINTS", 10),
		},
		Flow: FlowConfig{
			MinStopDuration: getDuration("MIN_STOP_DURATION", 10*time.Minute),
		},
		Evaluation: EvaluationConfig{
			Workers:           getInt("EVALUATION_WORKERS", 1),
			MaxDistinctLabels: getInt("MAX_DISTINCT_LABELS", 100),
			GridFile:          getEnv("GRID_FILE", ""),
		},
		Performance: PerformanceConfig{
			WebSocketPingInterval: getDuration("WEBSOCKET_PING_INTERVAL", 30*time.Second),
			WebSocketPongTimeout:  getDuration("WEBSOCKET_PONG_TIMEOUT", 60*time.Second),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true),
		},
	}

	// Валидация
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "sqlite", "redis", "mysql":
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of memory, sqlite, redis, mysql")
	}

	if c.Cache.Backend == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required for redis cache")
	}
	if c.Cache.Backend == "mysql" && c.MySQL.DSN == "" {
		return fmt.Errorf("MYSQL_DSN is required for mysql cache")
	}
	if c.Cache.Backend == "sqlite" && c.Cache.SQLitePath == "" {
		return fmt.Errorf("CACHE_SQLITE_PATH is required for sqlite cache")
	}

	switch c.Source.Kind {
	case "csv":
		if c.Source.Path == "" {
			return fmt.Errorf("SOURCE_PATH is required for csv source")
		}
	case "mysql":
		if c.MySQL.DSN == "" {
			return fmt.Errorf("MYSQL_DSN is required for mysql source")
		}
		if c.Source.BBox == nil {
			return fmt.Errorf("SOURCE_BBOX is required for mysql source")
		}
	default:
		return fmt.Errorf("SOURCE_KIND must be csv or mysql")
	}

	if c.Preprocess.SimplifyTolerance < 0 {
		return fmt.Errorf("SIMPLIFY_TOLERANCE must not be negative")
	}
	if c.Preprocess.GapThreshold <= 0 {
		return fmt.Errorf("GAP_THRESHOLD must be positive")
	}
	if c.Preprocess.MinPoints <= 0 {
		return fmt.Errorf("MIN_POINTS must be positive")
	}

	if c.Flow.MinStopDuration <= 0 {
		return fmt.Errorf("MIN_STOP_DURATION must be positive")
	}

	if c.Evaluation.Workers <= 0 {
		return fmt.Errorf("EVALUATION_WORKERS must be positive")
	}
	if c.Evaluation.MaxDistinctLabels < 2 {
		return fmt.Errorf("MAX_DISTINCT_LABELS must be at least 2")
	}

	return nil
}

// Helper функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseBounds разбирает "minLon,minLat,maxLon,maxLat"
func parseBounds(value string) (*models.Bounds, error) {
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 comma separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		v[i] = f
	}

	bounds := &models.Bounds{
		Southwest: models.GeoPoint{Longitude: v[0], Latitude: v[1]},
		Northeast: models.GeoPoint{Longitude: v[2], Latitude: v[3]},
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	return bounds, nil
}

// LogLevel возвращает уровень логирования
func LogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// LogFormat возвращает формат логирования
func LogFormat() string {
	return getEnv("LOG_FORMAT", "json")
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func IsDevelopment() bool {
	return getEnv("APP_ENV", "production") == "development"
}
