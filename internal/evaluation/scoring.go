package evaluation

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/pool"
)

// ErrUnscorable разметку нельзя оценить: число меток вне [2, n-1]
var ErrUnscorable = errors.New("labels cannot be scored")

// Scorer подключаемая функция качества разметки
type Scorer interface {
	Score(points [][2]float64, labels []int) (models.Score, error)
}

// SilhouetteCHScorer силуэт и индекс Калински-Харабаша
type SilhouetteCHScorer struct{}

// Score вычисляет обе метрики. Шум (-1) считается обычной меткой.
func (SilhouetteCHScorer) Score(points [][2]float64, labels []int) (models.Score, error) {
	silhouette, err := Silhouette(points, labels)
	if err != nil {
		return models.Score{}, err
	}
	ch, err := CalinskiHarabasz(points, labels)
	if err != nil {
		return models.Score{}, err
	}
	return models.Score{Cohesion: silhouette, Separation: ch}, nil
}

// compactLabels переводит метки в индексы 0..k-1 в порядке появления
func compactLabels(points [][2]float64, labels []int) ([]int, []int, error) {
	if len(points) != len(labels) {
		return nil, nil, fmt.Errorf("%d labels for %d points", len(labels), len(points))
	}

	ids := make(map[int]int)
	index := make([]int, len(labels))
	var counts []int
	for i, l := range labels {
		id, ok := ids[l]
		if !ok {
			id = len(counts)
			ids[l] = id
			counts = append(counts, 0)
		}
		index[i] = id
		counts[id]++
	}

	n, k := len(points), len(counts)
	if k < 2 || k > n-1 {
		return nil, nil, fmt.Errorf("%w: %d distinct labels for %d points", ErrUnscorable, k, n)
	}
	return index, counts, nil
}

// Silhouette средний коэффициент силуэта по евклидову расстоянию.
// Точка одноэлементного кластера получает 0, как и точка с a = b = 0.
func Silhouette(points [][2]float64, labels []int) (float64, error) {
	index, counts, err := compactLabels(points, labels)
	if err != nil {
		return 0, err
	}

	n, k := len(points), len(counts)
	values := make([]float64, n)
	sumsPtr := pool.Global.GetFloat64Slice(k)
	defer pool.Global.PutFloat64Slice(sumsPtr)
	sums := *sumsPtr

	for i := 0; i < n; i++ {
		own := index[i]
		if counts[own] == 1 {
			continue
		}

		for c := range sums {
			sums[c] = 0
		}
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			sums[index[j]] += floats.Distance(points[i][:], points[j][:], 2)
		}

		a := sums[own] / float64(counts[own]-1)
		b := -1.0
		for c := 0; c < k; c++ {
			if c == own {
				continue
			}
			mean := sums[c] / float64(counts[c])
			if b < 0 || mean < b {
				b = mean
			}
		}

		denom := a
		if b > denom {
			denom = b
		}
		if denom == 0 {
			continue
		}
		values[i] = (b - a) / denom
	}

	return stat.Mean(values, nil), nil
}

// CalinskiHarabasz отношение межкластерной дисперсии к внутрикластерной.
// При нулевой внутрикластерной дисперсии возвращает 1.
func CalinskiHarabasz(points [][2]float64, labels []int) (float64, error) {
	index, counts, err := compactLabels(points, labels)
	if err != nil {
		return 0, err
	}

	n, k := len(points), len(counts)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range points {
		xs[i], ys[i] = p[0], p[1]
	}
	mean := []float64{stat.Mean(xs, nil), stat.Mean(ys, nil)}

	centroids := make([][]float64, k)
	for c := range centroids {
		centroids[c] = make([]float64, 2)
	}
	for i := range points {
		floats.Add(centroids[index[i]], points[i][:])
	}
	for c := range centroids {
		floats.Scale(1/float64(counts[c]), centroids[c])
	}

	var extra, intra float64
	for c, centroid := range centroids {
		d := floats.Distance(centroid, mean, 2)
		extra += float64(counts[c]) * d * d
	}
	for i := range points {
		d := floats.Distance(points[i][:], centroids[index[i]], 2)
		intra += d * d
	}

	if intra == 0 {
		return 1, nil
	}
	return extra * float64(n-k) / (intra * float64(k-1)), nil
}
