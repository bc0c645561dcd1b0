package filter

import (
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// MinPointsFilter отбрасывает сегменты, в которых меньше minPoints точек
type MinPointsFilter struct {
	logger    *utils.Logger
	minPoints int
}

// NewMinPointsFilter создает фильтр коротких сегментов
func NewMinPointsFilter(logger *utils.Logger, minPoints int) *MinPointsFilter {
	if minPoints <= 0 {
		minPoints = 10
	}
	return &MinPointsFilter{logger: logger, minPoints: minPoints}
}

// Filter удаляет точки коротких сегментов и перенумеровывает оставшиеся сегменты
func (f *MinPointsFilter) Filter(track *TrackData) (*FilterResult, error) {
	segments := track.Segments
	if len(segments) == 0 {
		segments = wholeTrackSegment(track.Points)
	}

	points := make([]models.Point, 0, len(track.Points))
	kept := make([]SegmentInfo, 0, len(segments))
	dropped := 0

	for _, segment := range segments {
		if segment.PointCount < f.minPoints {
			dropped++
			continue
		}
		start := len(points)
		points = append(points, track.Points[segment.StartIndex:segment.EndIndex+1]...)

		segment.StartIndex = start
		segment.EndIndex = len(points) - 1
		kept = append(kept, segment)
	}

	if dropped > 0 {
		f.logger.WithField("entity_id", track.EntityID).
			WithField("dropped_segments", dropped).
			WithField("min_points", f.minPoints).
			Debug("Dropped short segments")
	}

	return &FilterResult{
		OriginalCount: len(track.Points),
		FilteredCount: len(track.Points) - len(points),
		Points:        points,
		Segments:      kept,
		Statistics: FilterStats{
			SegmentCount:    len(kept),
			DroppedSegments: dropped,
		},
	}, nil
}

// Name возвращает имя фильтра
func (f *MinPointsFilter) Name() string {
	return "MinPointsFilter"
}

// Description возвращает описание фильтра
func (f *MinPointsFilter) Description() string {
	return "Drops segments shorter than the minimum point count"
}
