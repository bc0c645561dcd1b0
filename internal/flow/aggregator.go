package flow

import (
	"context"
	"time"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// Aggregation результат агрегации потоков
type Aggregation struct {
	Clusters []models.StopCluster
	// Flows потоки после объединения встречных, по убыванию веса
	Flows    []models.Flow
	Episodes int
}

// Aggregator строит кластеры остановок и потоки между ними
type Aggregator struct {
	params Params
	logger *utils.Logger
}

// NewAggregator создает агрегатор; некорректные параметры дают InvalidParameterError
func NewAggregator(params Params, logger *utils.Logger) (*Aggregator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{params: params, logger: logger}, nil
}

// Params возвращает параметры агрегатора
func (a *Aggregator) Params() Params {
	return a.params
}

// Aggregate находит остановки, кластеризует их и строит потоки
func (a *Aggregator) Aggregate(ctx context.Context, collection *models.TrajectoryCollection) (*Aggregation, error) {
	start := time.Now()

	significant := make([][]SignificantPoint, collection.Len())
	episodes := 0
	for i := 0; i < collection.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		points := collection.Trajectories[i].Points
		stops := DetectStops(points, a.params.MaxDistance, a.params.MinStopDuration)
		episodes += len(stops)
		significant[i] = SignificantPoints(points, stops, a.params.MinDistance)
	}

	clustering := ClusterSignificantPoints(significant, a.params.MaxDistance)

	var trajectories []models.Trajectory
	if collection != nil {
		trajectories = collection.Trajectories
	}
	flows := BuildFlows(trajectories, clustering.Sequences, clustering.Clusters)
	merged := MergeReversedFlows(flows)

	a.logger.WithFields(map[string]interface{}{
		"trajectories":  collection.Len(),
		"stop_episodes": episodes,
		"stop_clusters": len(clustering.Clusters),
		"flows":         len(flows),
		"merged_flows":  len(merged),
		"min_distance":  a.params.MinDistance,
		"max_distance":  a.params.MaxDistance,
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Debug("Flows aggregated")

	return &Aggregation{
		Clusters: clustering.Clusters,
		Flows:    merged,
		Episodes: episodes,
	}, nil
}

// Label размечает точки коллекции весом ближайшего потока и возвращает
// метки в порядке потока точек и траектории по убыванию максимальной метки
func (a *Aggregator) Label(collection *models.TrajectoryCollection, flows []models.Flow) ([]int, []models.LabeledTrajectory, error) {
	labels := AssignLabels(collection.Coordinates(), flows)

	labeled, err := models.LabelCollection(collection, labels)
	if err != nil {
		return nil, nil, err
	}
	SortByMaxLabel(labeled)

	return labels, labeled, nil
}
