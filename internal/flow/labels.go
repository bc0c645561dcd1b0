package flow

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/flybeeper/trajflow/internal/models"
)

// NearestFlow индекс потока, ближайшего к точке; при равенстве меньший индекс.
// -1 если потоков нет.
func NearestFlow(p orb.Point, flows []models.Flow) int {
	best := -1
	bestDistance := 0.0
	for i := range flows {
		d := planar.DistanceFrom(flows[i].Geometry, p)
		if best < 0 || d < bestDistance {
			best = i
			bestDistance = d
		}
	}
	return best
}

// AssignLabels размечает точки весом ближайшего потока.
// Без потоков все точки получают NoiseLabel.
func AssignLabels(coords [][2]float64, flows []models.Flow) []int {
	labels := make([]int, len(coords))
	for i, c := range coords {
		nearest := NearestFlow(orb.Point{c[0], c[1]}, flows)
		if nearest < 0 {
			labels[i] = models.NoiseLabel
			continue
		}
		labels[i] = flows[nearest].Weight
	}
	return labels
}

// SortByMaxLabel упорядочивает траектории по убыванию максимальной метки,
// при равенстве сохраняя исходный порядок
func SortByMaxLabel(trajectories []models.LabeledTrajectory) {
	type ranked struct {
		maxLabel   int
		trajectory models.LabeledTrajectory
	}
	items := make([]ranked, len(trajectories))
	for i := range trajectories {
		items[i] = ranked{maxLabel: trajectories[i].MaxLabel(), trajectory: trajectories[i]}
	}
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].maxLabel > items[b].maxLabel
	})
	for i := range items {
		trajectories[i] = items[i].trajectory
	}
}
