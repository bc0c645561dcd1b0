package evaluation

import (
	"gonum.org/v1/gonum/floats"

	"github.com/flybeeper/trajflow/internal/models"
)

// DefaultFlowGrid пары (min, max) метров из 50..400 с шагом 50, max > min
func DefaultFlowGrid() []models.Params {
	var grid []models.Params
	for minDistance := 50; minDistance <= 400; minDistance += 50 {
		for maxDistance := 50; maxDistance <= 400; maxDistance += 50 {
			if maxDistance > minDistance {
				grid = append(grid, models.FlowParams(float64(minDistance), float64(maxDistance)))
			}
		}
	}
	return grid
}

// DefaultDensityGrid 14 равномерных eps в [1e-4, 1e-3] на min_samples из {5, 10, 15, 20}
func DefaultDensityGrid() []models.Params {
	eps := make([]float64, 14)
	floats.Span(eps, 1e-4, 1e-3)

	grid := make([]models.Params, 0, len(eps)*4)
	for _, e := range eps {
		for minSamples := 5; minSamples <= 20; minSamples += 5 {
			grid = append(grid, models.DensityParams(e, minSamples))
		}
	}
	return grid
}
