package filter

import (
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// DuplicateFilter удаляет точки с повторяющейся временной меткой.
// Трек должен быть отсортирован по времени; после фильтра метки строго возрастают.
type DuplicateFilter struct {
	logger *utils.Logger
}

// NewDuplicateFilter создает новый фильтр дубликатов
func NewDuplicateFilter(logger *utils.Logger) *DuplicateFilter {
	return &DuplicateFilter{logger: logger}
}

// Filter оставляет первую точку для каждой временной метки
func (f *DuplicateFilter) Filter(track *TrackData) (*FilterResult, error) {
	if len(track.Points) < 2 {
		return &FilterResult{
			OriginalCount: len(track.Points),
			Points:        track.Points,
		}, nil
	}

	result := make([]models.Point, 0, len(track.Points))
	result = append(result, track.Points[0])
	duplicates := 0

	for i := 1; i < len(track.Points); i++ {
		last := result[len(result)-1]
		if !track.Points[i].Timestamp.After(last.Timestamp) {
			duplicates++
			continue
		}
		result = append(result, track.Points[i])
	}

	if duplicates > 0 {
		f.logger.WithField("entity_id", track.EntityID).
			WithField("duplicates", duplicates).
			Debug("Removed points with repeated timestamps")
	}

	return &FilterResult{
		OriginalCount: len(track.Points),
		FilteredCount: duplicates,
		Points:        result,
		Statistics:    FilterStats{Duplicates: duplicates},
	}, nil
}

// Name возвращает имя фильтра
func (f *DuplicateFilter) Name() string {
	return "DuplicateFilter"
}

// Description возвращает описание фильтра
func (f *DuplicateFilter) Description() string {
	return "Removes points whose timestamp does not advance past the previous point"
}
