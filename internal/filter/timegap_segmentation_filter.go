package filter

import (
	"time"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// TimeGapSegmentationFilter фильтр для разделения трека по большим временным разрывам
type TimeGapSegmentationFilter struct {
	logger *utils.Logger
	gap    time.Duration // Разрыв, превышение которого создает новый сегмент
}

// NewTimeGapSegmentationFilter создает новый фильтр сегментации по времени
func NewTimeGapSegmentationFilter(logger *utils.Logger, gap time.Duration) *TimeGapSegmentationFilter {
	if gap <= 0 {
		gap = 30 * time.Minute // По умолчанию 30 минут
	}
	return &TimeGapSegmentationFilter{
		logger: logger,
		gap:    gap,
	}
}

// Filter применяет сегментацию по временным разрывам. Точки не удаляются.
func (f *TimeGapSegmentationFilter) Filter(track *TrackData) (*FilterResult, error) {
	if len(track.Points) == 0 {
		return &FilterResult{Points: track.Points}, nil
	}

	segments := f.detectTimeGapSegments(track.Points)

	for _, segment := range segments {
		f.logger.WithField("segment_id", segment.ID).
			WithField("start_time", segment.StartTime).
			WithField("end_time", segment.EndTime).
			WithField("duration_min", segment.Duration).
			WithField("points", segment.PointCount).
			Debug("Time segment detected")
	}

	stats := FilterStats{
		SegmentCount:  len(segments),
		SegmentBreaks: len(segments) - 1,
	}

	f.logger.WithField("entity_id", track.EntityID).
		WithField("segments_count", len(segments)).
		WithField("gap_threshold_min", f.gap.Minutes()).
		Debug("Time gap segmentation completed")

	return &FilterResult{
		OriginalCount: len(track.Points),
		Points:        track.Points,
		Segments:      segments,
		Statistics:    stats,
	}, nil
}

// detectTimeGapSegments определяет сегменты на основе временных разрывов
func (f *TimeGapSegmentationFilter) detectTimeGapSegments(points []models.Point) []SegmentInfo {
	var segments []SegmentInfo
	segmentID := 1
	segmentStart := 0

	for i := 1; i < len(points); i++ {
		timeDiff := points[i].Timestamp.Sub(points[i-1].Timestamp)

		// Разрыв строго больше порога открывает новый сегмент
		if timeDiff > f.gap {
			segments = append(segments, newSegmentInfo(points, segmentID, segmentStart, i-1))

			f.logger.WithField("segment_id", segmentID).
				WithField("time_gap_minutes", timeDiff.Minutes()).
				Debug("Large time gap detected, creating new segment")

			segmentID++
			segmentStart = i
		}
	}

	segments = append(segments, newSegmentInfo(points, segmentID, segmentStart, len(points)-1))
	return segments
}

// Name возвращает имя фильтра
func (f *TimeGapSegmentationFilter) Name() string {
	return "TimeGapSegmentationFilter"
}

// Description возвращает описание фильтра
func (f *TimeGapSegmentationFilter) Description() string {
	return "Splits track into segments based on large time gaps between points"
}
