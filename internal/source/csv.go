package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/repository"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// ReasonParse запись не разобрана
const ReasonParse = "parse"

// CSVSource читает записи entity_id,timestamp,x,y из файла.
// Заголовок необязателен, timestamp в RFC3339 или unix-секундах.
type CSVSource struct {
	path   string
	logger *utils.Logger
}

// NewCSVSource создает источник для файла path
func NewCSVSource(path string, logger *utils.Logger) (*CSVSource, error) {
	if path == "" {
		return nil, fmt.Errorf("csv path cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &CSVSource{path: path, logger: logger.WithField("source", path)}, nil
}

// LoadRecords читает файл и оставляет записи внутри bounds (nil означает все)
func (s *CSVSource) LoadRecords(ctx context.Context, bounds *models.Bounds) ([]models.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	return s.Read(ctx, f, bounds)
}

// Read разбирает CSV из r. Неразборчивые строки пропускаются с предупреждением.
func (s *CSVSource) Read(ctx context.Context, r io.Reader, bounds *models.Bounds) ([]models.Record, error) {
	start := time.Now()
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var records []models.Record
	skipped, outside := 0, 0
	for line := 1; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				metrics.RecordsRejected.WithLabelValues(ReasonParse).Inc()
				s.logger.WithError(err).WithField("line", line).Warn("Skipping malformed CSV row")
				continue
			}
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}

		if line == 1 && isHeader(row) {
			continue
		}

		rec, err := parseRow(row)
		if err != nil {
			skipped++
			metrics.RecordsRejected.WithLabelValues(ReasonParse).Inc()
			s.logger.WithError(err).WithField("line", line).Warn("Skipping malformed CSV row")
			continue
		}

		if bounds != nil && !bounds.Contains(models.GeoPoint{Latitude: rec.Y, Longitude: rec.X}) {
			outside++
			continue
		}
		records = append(records, rec)
	}

	s.logger.WithFields(map[string]interface{}{
		"records":     len(records),
		"skipped":     skipped,
		"outside":     outside,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Loaded track records from CSV")

	return records, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "entity_id")
}

func parseRow(row []string) (models.Record, error) {
	if len(row) < 4 {
		return models.Record{}, fmt.Errorf("expected 4 fields, got %d", len(row))
	}

	ts, err := ParseTimestamp(row[1])
	if err != nil {
		return models.Record{}, err
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return models.Record{}, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
	if err != nil {
		return models.Record{}, fmt.Errorf("invalid y: %w", err)
	}

	return models.Record{
		EntityID:  strings.TrimSpace(row[0]),
		Timestamp: ts,
		X:         x,
		Y:         y,
	}, nil
}

// ParseTimestamp принимает RFC3339 или unix-секунды (допускается дробная часть)
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}

	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}

var _ repository.RecordSource = (*CSVSource)(nil)
