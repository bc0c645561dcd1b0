package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// SolverKind вариант алгоритма кластеризации
type SolverKind string

const (
	// FlowAggregation агрегация потоков между остановками
	FlowAggregation SolverKind = "tca"
	// DensityClustering плотностная кластеризация точек
	DensityClustering SolverKind = "dbscan"
)

// Valid проверяет, что вариант известен
func (k SolverKind) Valid() bool {
	return k == FlowAggregation || k == DensityClustering
}

// Params набор параметров одной ячейки сетки.
// Для FlowAggregation используются MinDistance и MaxDistance (метры),
// для DensityClustering используются Eps и MinSamples.
type Params struct {
	Kind        SolverKind `json:"kind" yaml:"kind"`
	MinDistance float64    `json:"min_distance,omitempty" yaml:"min_distance,omitempty"`
	MaxDistance float64    `json:"max_distance,omitempty" yaml:"max_distance,omitempty"`
	Eps         float64    `json:"eps,omitempty" yaml:"eps,omitempty"`
	MinSamples  int        `json:"min_samples,omitempty" yaml:"min_samples,omitempty"`
}

// FlowParams создает параметры агрегатора потоков
func FlowParams(minDistance, maxDistance float64) Params {
	return Params{Kind: FlowAggregation, MinDistance: minDistance, MaxDistance: maxDistance}
}

// DensityParams создает параметры плотностной кластеризации
func DensityParams(eps float64, minSamples int) Params {
	return Params{Kind: DensityClustering, Eps: eps, MinSamples: minSamples}
}

// Key детерминированный идентификатор параметров, например tca_50_100 или dbscan_0.0005_5
func (p Params) Key() string {
	switch p.Kind {
	case FlowAggregation:
		return fmt.Sprintf("%s_%s_%s", p.Kind, formatParam(p.MinDistance), formatParam(p.MaxDistance))
	case DensityClustering:
		return fmt.Sprintf("%s_%s_%d", p.Kind, formatParam(p.Eps), p.MinSamples)
	default:
		return fmt.Sprintf("unknown_%s", p.Kind)
	}
}

// String для логов
func (p Params) String() string {
	return p.Key()
}

func formatParam(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Score пара метрик качества: когезия/разделимость в [-1, 1] и отношение дисперсий в [0, inf)
type Score struct {
	Cohesion   float64 `json:"cohesion"`
	Separation float64 `json:"separation"`
}

// GridResult результат поиска по сетке. Scores выровнен по индексам Grid,
// nil означает вырожденный результат ячейки.
type GridResult struct {
	Kind      SolverKind `json:"kind"`
	Grid      []Params   `json:"grid"`
	Scores    []*Score   `json:"scores"`
	Loaded    bool       `json:"-"`
	RunID     string     `json:"run_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Best возвращает индекс и параметры ячейки с максимальным первым элементом оценки.
// При равенстве выбирается меньший индекс. Если все оценки nil, возвращает ErrAllDegenerate.
func (r *GridResult) Best() (int, Params, error) {
	best := -1
	bestValue := math.Inf(-1)
	for i, s := range r.Scores {
		if s == nil || math.IsNaN(s.Cohesion) {
			continue
		}
		if best == -1 || s.Cohesion > bestValue {
			best = i
			bestValue = s.Cohesion
		}
	}
	if best == -1 {
		return -1, Params{}, ErrAllDegenerate
	}
	return best, r.Grid[best], nil
}

// ValidCount количество невырожденных ячеек
func (r *GridResult) ValidCount() int {
	n := 0
	for _, s := range r.Scores {
		if s != nil {
			n++
		}
	}
	return n
}

// Progress событие прогресса поиска по сетке
type Progress struct {
	RunID     string     `json:"run_id"`
	Kind      SolverKind `json:"kind"`
	Index     int        `json:"index"`
	Completed int        `json:"completed"`
	Total     int        `json:"total"`
	Params    Params     `json:"params"`
	Score     *Score     `json:"score,omitempty"`
	Status    string     `json:"status"` // scored, degenerate, invalid, cached
}
