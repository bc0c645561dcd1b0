package filter

import (
	"time"

	"github.com/flybeeper/trajflow/internal/models"
)

// TrackData трек одного объекта, проходящий через цепочку фильтров
type TrackData struct {
	EntityID string         `json:"entity_id"`
	Points   []models.Point `json:"points"`
	Segments []SegmentInfo  `json:"segments,omitempty"` // сегменты, найденные предыдущими фильтрами
}

// FilterResult результат фильтрации
type FilterResult struct {
	OriginalCount int            `json:"original_count"`
	FilteredCount int            `json:"filtered_count"`
	Points        []models.Point `json:"points"`
	Segments      []SegmentInfo  `json:"segments,omitempty"`
	Statistics    FilterStats    `json:"statistics"`
}

// FilterStats статистика фильтрации
type FilterStats struct {
	Duplicates      int `json:"duplicates"`
	Simplified      int `json:"simplified"`
	SegmentCount    int `json:"segment_count,omitempty"`
	SegmentBreaks   int `json:"segment_breaks,omitempty"`
	DroppedSegments int `json:"dropped_segments,omitempty"`
}

// SegmentInfo информация о сегменте трека
type SegmentInfo struct {
	ID         int       `json:"id"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"` // включительно
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Duration   float64   `json:"duration_minutes"`
	PointCount int       `json:"point_count"`
}

// TrackFilter интерфейс для фильтров треков
type TrackFilter interface {
	// Filter применяет фильтр к треку
	Filter(track *TrackData) (*FilterResult, error)

	// Name возвращает имя фильтра
	Name() string

	// Description возвращает описание фильтра
	Description() string
}

// FilterConfig конфигурация препроцессинга
type FilterConfig struct {
	// Допуск упрощения Douglas-Peucker в единицах координат (градусы)
	SimplifyTolerance float64 `json:"simplify_tolerance"`

	// Разрыв во времени, после которого трек делится на сегменты
	GapThreshold time.Duration `json:"gap_threshold"`

	// Минимальное количество точек в сегменте
	MinPoints int `json:"min_points"`
}

// DefaultFilterConfig возвращает конфигурацию по умолчанию
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SimplifyTolerance: 0.0001,
		GapThreshold:      30 * time.Minute,
		MinPoints:         10,
	}
}

// wholeTrackSegment сегмент, покрывающий весь трек
func wholeTrackSegment(points []models.Point) []SegmentInfo {
	if len(points) == 0 {
		return nil
	}
	return []SegmentInfo{newSegmentInfo(points, 1, 0, len(points)-1)}
}

func newSegmentInfo(points []models.Point, id, start, end int) SegmentInfo {
	segment := SegmentInfo{
		ID:         id,
		StartIndex: start,
		EndIndex:   end,
		StartTime:  points[start].Timestamp,
		EndTime:    points[end].Timestamp,
		PointCount: end - start + 1,
	}
	segment.Duration = segment.EndTime.Sub(segment.StartTime).Minutes()
	return segment
}
