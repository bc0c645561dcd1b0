package flow

import (
	"github.com/flybeeper/trajflow/internal/geo"
	"github.com/flybeeper/trajflow/internal/models"
)

// geohashPrecision точность geohash идентификатора кластера (~5 м)
const geohashPrecision = 9

// StopClustering результат кластеризации опорных точек
type StopClustering struct {
	Clusters []models.StopCluster
	// Sequences последовательность кластеров каждой траектории
	Sequences [][]int
}

// ClusterSignificantPoints объединяет опорные точки в кластеры остановок.
// Точка присоединяется к ближайшему кластеру, центр которого не дальше
// maxDistance метров, иначе образует новый кластер. Центр кластера
// пересчитывается как среднее поглощенных точек.
func ClusterSignificantPoints(points [][]SignificantPoint, maxDistance float64) *StopClustering {
	result := &StopClustering{
		Clusters:  []models.StopCluster{},
		Sequences: make([][]int, len(points)),
	}

	coords := make([][2]float64, 0)
	for _, traj := range points {
		for _, sp := range traj {
			coords = append(coords, [2]float64{sp.Position.Longitude, sp.Position.Latitude})
		}
	}
	if len(coords) == 0 {
		return result
	}

	bounds := geo.BoundsOf(coords)
	// запас на погрешность пересчета центров
	bounds.MinX -= 1e-6
	bounds.MinY -= 1e-6
	bounds.MaxX += 1e-6
	bounds.MaxY += 1e-6
	index := geo.NewQuadTree(bounds)

	for t, traj := range points {
		sequence := make([]int, 0, len(traj))
		for _, sp := range traj {
			id := nearestCluster(index, result.Clusters, sp.Position, maxDistance)
			if id < 0 {
				id = len(result.Clusters)
				result.Clusters = append(result.Clusters, models.StopCluster{
					ID:       id,
					Centroid: sp.Position,
					N:        1,
				})
				index.Insert(geo.Item{ID: id, X: sp.Position.Longitude, Y: sp.Position.Latitude})
			} else {
				c := &result.Clusters[id]
				c.N++
				n := float64(c.N)
				c.Centroid.Longitude += (sp.Position.Longitude - c.Centroid.Longitude) / n
				c.Centroid.Latitude += (sp.Position.Latitude - c.Centroid.Latitude) / n
				index.Update(geo.Item{ID: id, X: c.Centroid.Longitude, Y: c.Centroid.Latitude})
			}
			sequence = append(sequence, id)
		}
		result.Sequences[t] = sequence
	}

	for i := range result.Clusters {
		result.Clusters[i].Geohash = result.Clusters[i].Centroid.Geohash(geohashPrecision)
	}

	return result
}

// nearestCluster возвращает ближайший кластер в радиусе или -1.
// При равных расстояниях выбирается меньший идентификатор.
func nearestCluster(index *geo.QuadTree, clusters []models.StopCluster, p models.GeoPoint, maxDistance float64) int {
	best := -1
	bestDistance := 0.0
	// кандидаты упорядочены по идентификатору
	for _, obj := range index.QueryRadiusMeters(p.Longitude, p.Latitude, maxDistance) {
		d := p.DistanceMetersTo(clusters[obj.GetID()].Centroid)
		if best < 0 || d < bestDistance {
			best = obj.GetID()
			bestDistance = d
		}
	}
	return best
}
