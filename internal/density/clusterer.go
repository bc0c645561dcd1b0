package density

import (
	"context"
	"math"
	"time"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// Clusterer плотностная кластеризация точек коллекции
type Clusterer struct {
	eps        float64
	minSamples int
	logger     *utils.Logger
}

// NewClusterer создает кластеризатор; eps и minSamples должны быть положительными
func NewClusterer(eps float64, minSamples int, logger *utils.Logger) (*Clusterer, error) {
	if math.IsNaN(eps) || eps <= 0 {
		return nil, models.NewInvalidParameterError("eps", eps, "must be positive")
	}
	if minSamples < 1 {
		return nil, models.NewInvalidParameterError("min_samples", minSamples, "must be at least 1")
	}
	return &Clusterer{eps: eps, minSamples: minSamples, logger: logger}, nil
}

// Cluster размечает каждую точку размером ее кластера (NoiseLabel для шума).
// Метки возвращаются в порядке потока точек, траектории в исходном порядке.
func (c *Clusterer) Cluster(ctx context.Context, collection *models.TrajectoryCollection) ([]int, []models.LabeledTrajectory, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	coords := collection.Coordinates()

	raw := DBSCAN(coords, c.eps, c.minSamples)
	labels := RemapToSizes(raw)

	labeled, err := models.LabelCollection(collection, labels)
	if err != nil {
		return nil, nil, err
	}

	noise := 0
	clusters := make(map[int]struct{})
	for _, l := range raw {
		if l == models.NoiseLabel {
			noise++
			continue
		}
		clusters[l] = struct{}{}
	}

	c.logger.WithFields(map[string]interface{}{
		"points":      len(coords),
		"clusters":    len(clusters),
		"noise":       noise,
		"eps":         c.eps,
		"min_samples": c.minSamples,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Density clustering completed")

	return labels, labeled, nil
}
