package service

import (
	"math"
	"strings"
	"sync"

	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// Причины отклонения записей
const (
	RejectEntity      = "entity"
	RejectTimestamp   = "timestamp"
	RejectCoordinates = "coordinates"
	RejectBounds      = "bounds"
)

// ValidationMetrics счетчики валидации записей
type ValidationMetrics struct {
	TotalRecords    int64
	AcceptedRecords int64
	Rejected        map[string]int64
}

// RecordValidator отбрасывает записи, которые нельзя превратить в точки траектории
type RecordValidator struct {
	mu      sync.Mutex
	bounds  *models.Bounds
	logger  *utils.Logger
	metrics ValidationMetrics
}

// NewRecordValidator создает валидатор; bounds ограничивает область (nil без ограничения)
func NewRecordValidator(logger *utils.Logger, bounds *models.Bounds) *RecordValidator {
	return &RecordValidator{
		bounds:  bounds,
		logger:  logger,
		metrics: ValidationMetrics{Rejected: make(map[string]int64)},
	}
}

// Validate возвращает причину отклонения записи или пустую строку
func (v *RecordValidator) Validate(r models.Record) string {
	switch {
	case strings.TrimSpace(r.EntityID) == "":
		return RejectEntity
	case r.Timestamp.IsZero():
		return RejectTimestamp
	case math.IsNaN(r.X) || math.IsNaN(r.Y) || math.IsInf(r.X, 0) || math.IsInf(r.Y, 0):
		return RejectCoordinates
	}

	position := models.GeoPoint{Latitude: r.Y, Longitude: r.X}
	if err := position.Validate(); err != nil {
		return RejectCoordinates
	}
	if v.bounds != nil && !v.bounds.Contains(position) {
		return RejectBounds
	}
	return ""
}

// Filter возвращает корректные записи в исходном порядке
func (v *RecordValidator) Filter(records []models.Record) []models.Record {
	v.mu.Lock()
	defer v.mu.Unlock()

	valid := make([]models.Record, 0, len(records))
	for _, r := range records {
		v.metrics.TotalRecords++
		metrics.RecordsTotal.Inc()

		if reason := v.Validate(r); reason != "" {
			v.metrics.Rejected[reason]++
			metrics.RecordsRejected.WithLabelValues(reason).Inc()
			continue
		}
		v.metrics.AcceptedRecords++
		valid = append(valid, r)
	}

	if rejected := len(records) - len(valid); rejected > 0 {
		v.logger.WithField("rejected", rejected).
			WithField("total", len(records)).
			Warn("Rejected invalid input records")
	}

	return valid
}

// GetMetrics возвращает копию счетчиков
func (v *RecordValidator) GetMetrics() ValidationMetrics {
	v.mu.Lock()
	defer v.mu.Unlock()

	rejected := make(map[string]int64, len(v.metrics.Rejected))
	for k, n := range v.metrics.Rejected {
		rejected[k] = n
	}
	return ValidationMetrics{
		TotalRecords:    v.metrics.TotalRecords,
		AcceptedRecords: v.metrics.AcceptedRecords,
		Rejected:        rejected,
	}
}
