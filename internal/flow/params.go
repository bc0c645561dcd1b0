package flow

import (
	"math"
	"time"

	"github.com/flybeeper/trajflow/internal/models"
)

// DefaultMinStopDuration минимальная длительность остановки
const DefaultMinStopDuration = 10 * time.Minute

// Params параметры агрегатора потоков. Расстояния в метрах.
type Params struct {
	MinDistance     float64
	MaxDistance     float64
	MinStopDuration time.Duration
}

// ParamsFrom строит параметры агрегатора из ячейки сетки
func ParamsFrom(p models.Params, minStopDuration time.Duration) Params {
	if minStopDuration == 0 {
		minStopDuration = DefaultMinStopDuration
	}
	return Params{
		MinDistance:     p.MinDistance,
		MaxDistance:     p.MaxDistance,
		MinStopDuration: minStopDuration,
	}
}

// Validate проверяет структурную корректность параметров
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.MinDistance) || p.MinDistance < 0:
		return models.NewInvalidParameterError("min_distance", p.MinDistance, "must not be negative")
	case math.IsNaN(p.MaxDistance) || p.MaxDistance <= 0:
		return models.NewInvalidParameterError("max_distance", p.MaxDistance, "must be positive")
	case p.MinDistance >= p.MaxDistance:
		return models.NewInvalidParameterError("min_distance", p.MinDistance, "must be less than max_distance")
	case p.MinStopDuration <= 0:
		return models.NewInvalidParameterError("min_stop_duration", p.MinStopDuration, "must be positive")
	}
	return nil
}
