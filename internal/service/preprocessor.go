package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/flybeeper/trajflow/internal/filter"
	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/repository"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// Preprocessor строит коллекцию траекторий из сырых записей
type Preprocessor struct {
	cache     *repository.Cache
	chain     *filter.FilterChain
	validator *RecordValidator
	logger    *utils.Logger
}

// NewPreprocessor создает препроцессор. cache может быть nil: тогда результат не сохраняется.
func NewPreprocessor(cache *repository.Cache, cfg *filter.FilterConfig, logger *utils.Logger) (*Preprocessor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Preprocessor{
		cache:     cache,
		chain:     filter.NewFilterChain(cfg, logger),
		validator: NewRecordValidator(logger, nil),
		logger:    logger,
	}, nil
}

// Validation счетчики валидации входных записей
func (p *Preprocessor) Validation() ValidationMetrics {
	return p.validator.GetMetrics()
}

// Preprocess возвращает сохраненную коллекцию для identity, если она есть,
// иначе группирует записи по объектам, упорядочивает по времени, применяет
// цепочку фильтров, режет на траектории и сохраняет результат.
// Второе значение true, если коллекция загружена из кэша.
func (p *Preprocessor) Preprocess(ctx context.Context, records []models.Record, identity string) (*models.TrajectoryCollection, bool, error) {
	key := repository.TrajectoriesKey(identity)

	if p.cache != nil {
		var cached models.TrajectoryCollection
		ok, err := p.cache.Load(ctx, key, repository.KindTrajectories, &cached)
		if err != nil {
			return nil, false, err
		}
		if ok {
			metrics.PreprocessedTrajectories.Set(float64(cached.Len()))
			p.logger.WithField("cache_key", key).
				WithField("trajectories", cached.Len()).
				Info("Loaded preprocessed trajectories")
			return &cached, true, nil
		}
	}

	start := time.Now()
	groups := groupByEntity(p.validator.Filter(records))

	collection := &models.TrajectoryCollection{Trajectories: []models.Trajectory{}}
	var stats filter.FilterStats
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		result, err := p.chain.Filter(&filter.TrackData{EntityID: group.entityID, Points: group.points})
		if err != nil {
			return nil, false, fmt.Errorf("entity %s: %w", group.entityID, err)
		}
		stats.Duplicates += result.Statistics.Duplicates
		stats.Simplified += result.Statistics.Simplified
		stats.DroppedSegments += result.Statistics.DroppedSegments
		metrics.FilteredPoints.WithLabelValues("duplicate").Add(float64(result.Statistics.Duplicates))
		metrics.FilteredPoints.WithLabelValues("simplification").Add(float64(result.Statistics.Simplified))
		metrics.FilteredPoints.WithLabelValues("short_segment").Add(float64(
			result.FilteredCount - result.Statistics.Duplicates - result.Statistics.Simplified))

		for _, segment := range result.Segments {
			points := filter.CalculateTrackStatistics(result.Points[segment.StartIndex : segment.EndIndex+1])
			collection.Trajectories = append(collection.Trajectories, models.Trajectory{
				ID:       fmt.Sprintf("%s:%d", group.entityID, segment.ID),
				EntityID: group.entityID,
				Points:   points,
			})
		}
	}

	duration := time.Since(start)
	metrics.PreprocessDuration.Observe(duration.Seconds())
	metrics.PreprocessedTrajectories.Set(float64(collection.Len()))

	p.logger.WithFields(map[string]interface{}{
		"records":          len(records),
		"entities":         len(groups),
		"trajectories":     collection.Len(),
		"points":           collection.PointCount(),
		"duplicates":       stats.Duplicates,
		"simplified":       stats.Simplified,
		"dropped_segments": stats.DroppedSegments,
		"duration_ms":      duration.Milliseconds(),
	}).Info("Preprocessed trajectories")

	if p.cache != nil {
		if err := p.cache.Save(ctx, key, repository.KindTrajectories, collection); err != nil {
			return nil, false, err
		}
	}

	return collection, false, nil
}

type entityGroup struct {
	entityID string
	points   []models.Point
}

// groupByEntity группирует записи по объектам. Объекты упорядочены по
// идентификатору, точки каждого объекта устойчиво отсортированы по времени.
func groupByEntity(records []models.Record) []entityGroup {
	index := make(map[string]int)
	var groups []entityGroup
	for _, r := range records {
		i, ok := index[r.EntityID]
		if !ok {
			i = len(groups)
			index[r.EntityID] = i
			groups = append(groups, entityGroup{entityID: r.EntityID})
		}
		groups[i].points = append(groups[i].points, models.Point{Timestamp: r.Timestamp.UTC(), X: r.X, Y: r.Y})
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return lessEntityID(groups[a].entityID, groups[b].entityID)
	})
	for i := range groups {
		points := groups[i].points
		sort.SliceStable(points, func(a, b int) bool {
			return points[a].Timestamp.Before(points[b].Timestamp)
		})
	}
	return groups
}

// lessEntityID упорядочивает числовые идентификаторы по значению перед
// нечисловыми, нечисловые сравниваются как строки
func lessEntityID(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}
