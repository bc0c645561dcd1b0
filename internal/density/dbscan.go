package density

import (
	"github.com/flybeeper/trajflow/internal/geo"
	"github.com/flybeeper/trajflow/internal/models"
)

// DBSCAN кластеризует точки по плотности на плоскости (евклидово расстояние
// в единицах координат). Окрестность точки включает саму точку.
// Возвращает метки: models.NoiseLabel для шума, 0..k-1 для кластеров
// в порядке обнаружения.
func DBSCAN(coords [][2]float64, eps float64, minSamples int) []int {
	n := len(coords)
	result := make([]int, n)
	if n == 0 {
		return result
	}

	labels := make([]int, n) // 0 не посещена, -1 шум, >0 кластер
	queued := make([]bool, n)
	index := geo.NewPointIndex(coords)
	clusterID := 0

	regionQuery := func(i int) []int {
		objs := index.QueryRadius(coords[i][0], coords[i][1], eps)
		ids := make([]int, len(objs))
		for k, obj := range objs {
			ids[k] = obj.GetID()
		}
		return ids
	}

	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}

		neighbors := regionQuery(i)
		if len(neighbors) < minSamples {
			labels[i] = -1
			continue
		}

		clusterID++
		labels[i] = clusterID
		queued[i] = true
		queue := make([]int, 0, len(neighbors))
		for _, idx := range neighbors {
			if !queued[idx] {
				queued[idx] = true
				queue = append(queue, idx)
			}
		}

		for j := 0; j < len(queue); j++ {
			idx := queue[j]

			if labels[idx] == -1 {
				// шум становится граничной точкой
				labels[idx] = clusterID
			}
			if labels[idx] != 0 {
				continue
			}

			labels[idx] = clusterID
			expansion := regionQuery(idx)
			if len(expansion) >= minSamples {
				for _, next := range expansion {
					if !queued[next] && labels[next] <= 0 {
						queued[next] = true
						queue = append(queue, next)
					}
				}
			}
		}
	}

	for i, l := range labels {
		if l <= 0 {
			result[i] = models.NoiseLabel
		} else {
			result[i] = l - 1
		}
	}
	return result
}

// RemapToSizes заменяет метку кластера его размером, шум остается шумом
func RemapToSizes(labels []int) []int {
	sizes := make(map[int]int)
	for _, l := range labels {
		if l != models.NoiseLabel {
			sizes[l]++
		}
	}

	result := make([]int, len(labels))
	for i, l := range labels {
		if l == models.NoiseLabel {
			result[i] = models.NoiseLabel
			continue
		}
		result[i] = sizes[l]
	}
	return result
}
