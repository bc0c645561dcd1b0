package models

import (
	"math"
	"time"
)

// Record сырая запись входного контракта: одна GPS точка одного объекта
type Record struct {
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
	X         float64   `json:"x"` // долгота
	Y         float64   `json:"y"` // широта
}

// Point точка траектории с производными атрибутами
type Point struct {
	Timestamp time.Time `json:"t"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Distance  float64   `json:"distance"` // накопленное расстояние от начала траектории, м
	Speed     float64   `json:"speed"`    // скорость от предыдущей точки, км/ч
}

// GeoPoint возвращает координаты точки
func (p Point) GeoPoint() GeoPoint {
	return GeoPoint{Latitude: p.Y, Longitude: p.X}
}

// Trajectory упорядоченная по времени последовательность точек одного объекта
type Trajectory struct {
	ID       string  `json:"id"`
	EntityID string  `json:"entity_id"`
	Points   []Point `json:"points"`
}

// Len количество точек
func (t *Trajectory) Len() int {
	return len(t.Points)
}

// Duration длительность траектории
func (t *Trajectory) Duration() time.Duration {
	if len(t.Points) < 2 {
		return 0
	}
	return t.Points[len(t.Points)-1].Timestamp.Sub(t.Points[0].Timestamp)
}

// Length полная длина траектории в метрах
func (t *Trajectory) Length() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	return t.Points[len(t.Points)-1].Distance
}

// TrajectoryCollection набор траекторий, построенный препроцессором.
// После построения не изменяется.
type TrajectoryCollection struct {
	Trajectories []Trajectory `json:"trajectories"`
}

// Len количество траекторий
func (c *TrajectoryCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Trajectories)
}

// PointCount общее количество точек во всех траекториях
func (c *TrajectoryCollection) PointCount() int {
	if c == nil {
		return 0
	}
	total := 0
	for i := range c.Trajectories {
		total += len(c.Trajectories[i].Points)
	}
	return total
}

// Coordinates возвращает (x, y) всех точек в порядке потока точек
func (c *TrajectoryCollection) Coordinates() [][2]float64 {
	coords := make([][2]float64, 0, c.PointCount())
	stream := c.PointStream()
	for {
		tp, ok := stream.Next()
		if !ok {
			break
		}
		coords = append(coords, [2]float64{tp.X, tp.Y})
	}
	return coords
}

// TrajectoryPoint элемент потока точек
type TrajectoryPoint struct {
	TrajectoryIndex int
	TrajectoryID    string
	EntityID        string
	Point
}

// PointStream ленивый перезапускаемый итератор по точкам коллекции
type PointStream struct {
	collection *TrajectoryCollection
	traj       int
	idx        int
}

// PointStream создает итератор, начинающийся с первой точки первой траектории
func (c *TrajectoryCollection) PointStream() *PointStream {
	return &PointStream{collection: c}
}

// Next возвращает следующую точку; false когда поток исчерпан
func (s *PointStream) Next() (TrajectoryPoint, bool) {
	if s.collection == nil {
		return TrajectoryPoint{}, false
	}
	for s.traj < len(s.collection.Trajectories) {
		t := &s.collection.Trajectories[s.traj]
		if s.idx < len(t.Points) {
			tp := TrajectoryPoint{
				TrajectoryIndex: s.traj,
				TrajectoryID:    t.ID,
				EntityID:        t.EntityID,
				Point:           t.Points[s.idx],
			}
			s.idx++
			return tp, true
		}
		s.traj++
		s.idx = 0
	}
	return TrajectoryPoint{}, false
}

// Reset возвращает итератор в начало
func (s *PointStream) Reset() {
	s.traj = 0
	s.idx = 0
}

// RecordBounds возвращает границы записей; false для пустого набора
func RecordBounds(records []Record) (Bounds, bool) {
	if len(records) == 0 {
		return Bounds{}, false
	}
	b := Bounds{
		Southwest: GeoPoint{Latitude: records[0].Y, Longitude: records[0].X},
		Northeast: GeoPoint{Latitude: records[0].Y, Longitude: records[0].X},
	}
	for _, r := range records[1:] {
		b.Southwest.Latitude = math.Min(b.Southwest.Latitude, r.Y)
		b.Southwest.Longitude = math.Min(b.Southwest.Longitude, r.X)
		b.Northeast.Latitude = math.Max(b.Northeast.Latitude, r.Y)
		b.Northeast.Longitude = math.Max(b.Northeast.Longitude, r.X)
	}
	return b, true
}
