package flow

import (
	"time"

	"github.com/flybeeper/trajflow/internal/models"
)

// StopEpisode интервал, в течение которого объект остается в радиусе maxDistance
// от первой точки интервала не меньше minStopDuration
type StopEpisode struct {
	StartIndex int
	EndIndex   int // включительно
	Start      time.Time
	End        time.Time
	Centroid   models.GeoPoint
}

// Duration длительность остановки
func (e StopEpisode) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// DetectStops находит максимальные эпизоды остановки в траектории.
// Эпизоды не пересекаются и упорядочены по времени.
func DetectStops(points []models.Point, maxDistance float64, minDuration time.Duration) []StopEpisode {
	var stops []StopEpisode

	i := 0
	for i < len(points) {
		anchor := points[i].GeoPoint()

		j := i
		for j+1 < len(points) && anchor.DistanceMetersTo(points[j+1].GeoPoint()) <= maxDistance {
			j++
		}

		if j > i && points[j].Timestamp.Sub(points[i].Timestamp) >= minDuration {
			stops = append(stops, StopEpisode{
				StartIndex: i,
				EndIndex:   j,
				Start:      points[i].Timestamp,
				End:        points[j].Timestamp,
				Centroid:   centroid(points[i : j+1]),
			})
			i = j + 1
			continue
		}
		i++
	}

	return stops
}

func centroid(points []models.Point) models.GeoPoint {
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return models.GeoPoint{Latitude: sumY / n, Longitude: sumX / n}
}

// SignificantPoint опорная точка траектории: начало, остановка или конец
type SignificantPoint struct {
	Position models.GeoPoint
	Time     time.Time
	Stop     bool
}

// SignificantPoints возвращает начало, центры остановок и конец траектории.
// Точка ближе minDistance к предыдущей опорной точке сливается с ней;
// при слиянии конечной точки с остановкой сохраняется остановка.
func SignificantPoints(points []models.Point, stops []StopEpisode, minDistance float64) []SignificantPoint {
	if len(points) == 0 {
		return nil
	}

	candidates := make([]SignificantPoint, 0, len(stops)+2)
	candidates = append(candidates, SignificantPoint{Position: points[0].GeoPoint(), Time: points[0].Timestamp})
	for _, s := range stops {
		candidates = append(candidates, SignificantPoint{Position: s.Centroid, Time: s.Start, Stop: true})
	}
	last := points[len(points)-1]
	candidates = append(candidates, SignificantPoint{Position: last.GeoPoint(), Time: last.Timestamp})

	result := make([]SignificantPoint, 0, len(candidates))
	for _, c := range candidates {
		if len(result) == 0 {
			result = append(result, c)
			continue
		}
		prev := &result[len(result)-1]
		if prev.Position.DistanceMetersTo(c.Position) <= minDistance {
			if c.Stop && !prev.Stop {
				*prev = c
			}
			continue
		}
		result = append(result, c)
	}

	return result
}
