package filter

import (
	"fmt"
	"time"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// FilterChain цепочка фильтров для последовательного применения
type FilterChain struct {
	filters []TrackFilter
	config  *FilterConfig
	logger  *utils.Logger
}

// NewFilterChain создает цепочку препроцессинга: дубликаты, упрощение,
// сегментация по разрывам, отбрасывание коротких сегментов
func NewFilterChain(config *FilterConfig, logger *utils.Logger) *FilterChain {
	if config == nil {
		config = DefaultFilterConfig()
	}

	chain := &FilterChain{
		filters: make([]TrackFilter, 0, 4),
		config:  config,
		logger:  logger,
	}

	chain.AddFilter(NewDuplicateFilter(logger))
	chain.AddFilter(NewSimplificationFilter(config.SimplifyTolerance, logger))
	chain.AddFilter(NewTimeGapSegmentationFilter(logger, config.GapThreshold))
	chain.AddFilter(NewMinPointsFilter(logger, config.MinPoints))

	return chain
}

// NewEmptyFilterChain создает цепочку без фильтров
func NewEmptyFilterChain(logger *utils.Logger) *FilterChain {
	return &FilterChain{
		config: DefaultFilterConfig(),
		logger: logger,
	}
}

// AddFilter добавляет фильтр в цепочку
func (fc *FilterChain) AddFilter(filter TrackFilter) {
	fc.filters = append(fc.filters, filter)
}

// Filter применяет все фильтры в цепочке. Сегменты передаются от фильтра к фильтру.
func (fc *FilterChain) Filter(track *TrackData) (*FilterResult, error) {
	if len(track.Points) == 0 {
		return &FilterResult{
			Points: []models.Point{},
		}, nil
	}

	fc.logger.WithField("entity_id", track.EntityID).
		WithField("original_points", len(track.Points)).
		WithField("filters_count", len(fc.filters)).
		Debug("Starting track filtering")

	originalCount := len(track.Points)
	currentTrack := *track
	combinedStats := FilterStats{}

	for _, filter := range fc.filters {
		start := time.Now()

		result, err := filter.Filter(&currentTrack)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", filter.Name(), err)
		}

		fc.logger.WithField("filter", filter.Name()).
			WithField("input_points", len(currentTrack.Points)).
			WithField("output_points", len(result.Points)).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Debug("Filter applied")

		currentTrack.Points = result.Points
		if result.Segments != nil {
			currentTrack.Segments = result.Segments
		}

		combinedStats.Duplicates += result.Statistics.Duplicates
		combinedStats.Simplified += result.Statistics.Simplified
		combinedStats.DroppedSegments += result.Statistics.DroppedSegments
		if result.Statistics.SegmentBreaks > combinedStats.SegmentBreaks {
			combinedStats.SegmentBreaks = result.Statistics.SegmentBreaks
		}
	}

	segments := currentTrack.Segments
	if segments == nil {
		segments = wholeTrackSegment(currentTrack.Points)
	}
	combinedStats.SegmentCount = len(segments)

	return &FilterResult{
		OriginalCount: originalCount,
		FilteredCount: originalCount - len(currentTrack.Points),
		Points:        currentTrack.Points,
		Segments:      segments,
		Statistics:    combinedStats,
	}, nil
}

// Name возвращает имя цепочки фильтров
func (fc *FilterChain) Name() string {
	return "FilterChain"
}

// Description возвращает описание цепочки фильтров
func (fc *FilterChain) Description() string {
	filterNames := make([]string, len(fc.filters))
	for i, filter := range fc.filters {
		filterNames[i] = filter.Name()
	}
	return fmt.Sprintf("Chain of filters: %v", filterNames)
}

// CalculateTrackStatistics вычисляет накопленное расстояние (м) и скорость (км/ч).
// Скорость первой точки равна скорости второй.
func CalculateTrackStatistics(points []models.Point) []models.Point {
	result := make([]models.Point, len(points))
	copy(result, points)

	if len(result) == 0 {
		return result
	}
	result[0].Distance = 0
	result[0].Speed = 0

	for i := 1; i < len(result); i++ {
		prev := result[i-1]
		curr := &result[i]

		step := prev.GeoPoint().DistanceMetersTo(curr.GeoPoint())
		curr.Distance = prev.Distance + step

		curr.Speed = 0
		timeDiff := curr.Timestamp.Sub(prev.Timestamp)
		if timeDiff > 0 {
			// км/ч = км / ч
			curr.Speed = (step / 1000) / timeDiff.Hours()
		}
	}

	if len(result) > 1 {
		result[0].Speed = result[1].Speed
	}

	return result
}
