package filter

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// SimplificationFilter упрощает геометрию трека алгоритмом Douglas-Peucker.
// Первая и последняя точки сохраняются, порядок по времени не меняется.
type SimplificationFilter struct {
	tolerance float64
	logger    *utils.Logger
}

// NewSimplificationFilter создает фильтр упрощения с допуском в единицах координат
func NewSimplificationFilter(tolerance float64, logger *utils.Logger) *SimplificationFilter {
	return &SimplificationFilter{
		tolerance: tolerance,
		logger:    logger,
	}
}

// Filter применяет упрощение
func (f *SimplificationFilter) Filter(track *TrackData) (*FilterResult, error) {
	if f.tolerance < 0 {
		return nil, fmt.Errorf("simplify tolerance must not be negative: %v", f.tolerance)
	}
	if len(track.Points) < 3 || f.tolerance == 0 {
		return &FilterResult{
			OriginalCount: len(track.Points),
			Points:        track.Points,
		}, nil
	}

	ls := make(orb.LineString, len(track.Points))
	for i, p := range track.Points {
		ls[i] = orb.Point{p.X, p.Y}
	}

	// Simplify modifies its input, ls is a private copy
	simplified := simplify.DouglasPeucker(f.tolerance).LineString(ls)

	kept := matchSubsequence(track.Points, simplified)
	result := make([]models.Point, len(kept))
	for i, idx := range kept {
		result[i] = track.Points[idx]
	}

	removed := len(track.Points) - len(result)
	f.logger.WithField("entity_id", track.EntityID).
		WithField("input_points", len(track.Points)).
		WithField("output_points", len(result)).
		Debug("Track simplified")

	return &FilterResult{
		OriginalCount: len(track.Points),
		FilteredCount: removed,
		Points:        result,
		Statistics:    FilterStats{Simplified: removed},
	}, nil
}

// matchSubsequence сопоставляет точки упрощенной линии индексам исходного трека.
// Упрощенная линия является подпоследовательностью исходной, последняя точка всегда
// соответствует последнему индексу.
func matchSubsequence(points []models.Point, simplified orb.LineString) []int {
	kept := make([]int, 0, len(simplified))
	j := 0
	for k, sp := range simplified {
		if k == len(simplified)-1 {
			kept = append(kept, len(points)-1)
			break
		}
		for j < len(points) && (points[j].X != sp[0] || points[j].Y != sp[1]) {
			j++
		}
		if j >= len(points) {
			break
		}
		kept = append(kept, j)
		j++
	}
	return kept
}

// Name возвращает имя фильтра
func (f *SimplificationFilter) Name() string {
	return "SimplificationFilter"
}

// Description возвращает описание фильтра
func (f *SimplificationFilter) Description() string {
	return fmt.Sprintf("Douglas-Peucker simplification with tolerance %g", f.tolerance)
}
