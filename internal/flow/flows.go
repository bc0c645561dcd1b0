package flow

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/flybeeper/trajflow/internal/models"
)

type edge struct {
	from, to int
}

// BuildFlows строит направленные потоки между кластерами остановок.
// Одинаковые ребра объединяются: Weight считает проходы,
// ObjWeight считает различные объекты. Порядок потоков соответствует
// порядку первого появления ребра.
func BuildFlows(trajectories []models.Trajectory, sequences [][]int, clusters []models.StopCluster) []models.Flow {
	flows := []models.Flow{}
	index := make(map[edge]int)
	entities := make(map[edge]map[string]struct{})

	for t, sequence := range sequences {
		entityID := trajectories[t].EntityID
		for _, e := range edges(sequence) {
			i, ok := index[e]
			if !ok {
				i = len(flows)
				index[e] = i
				entities[e] = make(map[string]struct{})
				flows = append(flows, models.Flow{
					Geometry: orb.LineString{pointOf(clusters[e.from]), pointOf(clusters[e.to])},
					From:     e.from,
					To:       e.to,
				})
			}
			flows[i].Weight++
			if _, seen := entities[e][entityID]; !seen {
				entities[e][entityID] = struct{}{}
				flows[i].ObjWeight++
			}
		}
	}

	return flows
}

// edges возвращает переходы между соседними различными кластерами
func edges(sequence []int) []edge {
	var result []edge
	prev := -1
	for i, id := range sequence {
		if i > 0 && id != prev {
			result = append(result, edge{from: prev, to: id})
		}
		prev = id
	}
	return result
}

func pointOf(c models.StopCluster) orb.Point {
	return orb.Point{c.Centroid.Longitude, c.Centroid.Latitude}
}

// MergeReversedFlows объединяет встречные потоки с обратной геометрией:
// вес и вес объектов обратного потока прибавляются к первому из пары,
// обратный поток удаляется. Результат упорядочен по убыванию веса,
// при равном весе сохраняется исходный порядок. Повторное применение
// результат не меняет.
func MergeReversedFlows(flows []models.Flow) []models.Flow {
	visited := make([]bool, len(flows))
	merged := make([]models.Flow, 0, len(flows))

	for i := range flows {
		if visited[i] {
			continue
		}
		visited[i] = true

		current := flows[i]
		current.Geometry = flows[i].Geometry.Clone()
		reversed := flows[i].Geometry.Clone()
		reversed.Reverse()

		for j := range flows {
			if visited[j] || j == i {
				continue
			}
			if flows[j].Geometry.Equal(reversed) {
				current.Weight += flows[j].Weight
				current.ObjWeight += flows[j].ObjWeight
				visited[j] = true
			}
		}
		merged = append(merged, current)
	}

	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].Weight > merged[b].Weight
	})

	return merged
}
