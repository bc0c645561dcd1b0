package models

import (
	"fmt"

	"github.com/paulmach/orb"
)

// NoiseLabel метка точки, не отнесенной ни к одному кластеру или потоку
const NoiseLabel = -1

// StopCluster пространственная агрегация эпизодов остановки
type StopCluster struct {
	ID       int      `json:"id"`
	Geohash  string   `json:"geohash"`
	Centroid GeoPoint `json:"centroid"`
	N        int      `json:"n"` // количество поглощенных эпизодов
}

// Flow направленное ребро между двумя кластерами остановок
type Flow struct {
	Geometry  orb.LineString `json:"geometry"`
	Weight    int            `json:"weight"`
	ObjWeight int            `json:"obj_weight"`
	From      int            `json:"from"`
	To        int            `json:"to"`
}

// LabeledPoint точка с меткой: вес потока, размер кластера или NoiseLabel
type LabeledPoint struct {
	Point
	Label int `json:"label"`
}

// LabeledTrajectory траектория с размеченными точками
type LabeledTrajectory struct {
	ID       string         `json:"id"`
	EntityID string         `json:"entity_id"`
	Points   []LabeledPoint `json:"points"`
}

// MaxLabel максимальная метка траектории (NoiseLabel для пустой)
func (t *LabeledTrajectory) MaxLabel() int {
	maxLabel := NoiseLabel
	for i, p := range t.Points {
		if i == 0 || p.Label > maxLabel {
			maxLabel = p.Label
		}
	}
	return maxLabel
}

// LabelCollection раскладывает метки потока точек обратно по траекториям.
// Количество меток должно совпадать с количеством точек коллекции.
func LabelCollection(c *TrajectoryCollection, labels []int) ([]LabeledTrajectory, error) {
	if len(labels) != c.PointCount() {
		return nil, fmt.Errorf("labels count %d does not match points count %d", len(labels), c.PointCount())
	}

	result := make([]LabeledTrajectory, 0, c.Len())
	k := 0
	for i := 0; i < c.Len(); i++ {
		t := &c.Trajectories[i]
		lt := LabeledTrajectory{
			ID:       t.ID,
			EntityID: t.EntityID,
			Points:   make([]LabeledPoint, len(t.Points)),
		}
		for j, p := range t.Points {
			lt.Points[j] = LabeledPoint{Point: p, Label: labels[k]}
			k++
		}
		result = append(result, lt)
	}
	return result, nil
}
