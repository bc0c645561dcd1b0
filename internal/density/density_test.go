package density

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/pkg/utils"
)

var testLogger = utils.NewLogger("error", "text")

// twoGroups две плотные группы по 10 точек и 3 удаленные точки
func twoGroups() [][2]float64 {
	coords := make([][2]float64, 0, 23)
	for i := 0; i < 10; i++ {
		coords = append(coords, [2]float64{14.75 + float64(i)*0.00001, 44.97})
	}
	for i := 0; i < 10; i++ {
		coords = append(coords, [2]float64{14.80 + float64(i)*0.00001, 44.99})
	}
	coords = append(coords,
		[2]float64{14.70, 44.90},
		[2]float64{14.85, 44.90},
		[2]float64{14.70, 45.05},
	)
	return coords
}

func TestDBSCAN(t *testing.T) {
	labels := DBSCAN(twoGroups(), 0.0005, 5)
	require.Len(t, labels, 23)

	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, labels[i])
		assert.Equal(t, 1, labels[10+i])
	}
	for i := 20; i < 23; i++ {
		assert.Equal(t, models.NoiseLabel, labels[i])
	}

	t.Run("border point", func(t *testing.T) {
		coords := [][2]float64{{0, 0}, {0.5, 0}, {1, 0}, {1.5, 0}, {-1.2, 0}}
		// {0.5,0} ядро: окрестность {0,0},{0.5,0},{1,0}
		labels := DBSCAN(coords, 0.6, 3)
		assert.Equal(t, []int{0, 0, 0, 0, models.NoiseLabel}, labels)
	})

	t.Run("min samples one", func(t *testing.T) {
		labels := DBSCAN([][2]float64{{0, 0}, {10, 10}}, 0.1, 1)
		assert.Equal(t, []int{0, 1}, labels)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, DBSCAN(nil, 0.1, 5))
	})
}

func TestRemapToSizes(t *testing.T) {
	assert.Equal(t,
		[]int{3, 3, 1, -1, 3},
		RemapToSizes([]int{0, 0, 1, -1, 0}),
	)
	assert.Empty(t, RemapToSizes(nil))
}

func TestClusterer(t *testing.T) {
	coords := twoGroups()
	t0 := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	// первая траектория содержит первую группу и выброс, вторая остальное
	toPoints := func(cs [][2]float64) []models.Point {
		points := make([]models.Point, len(cs))
		for i, c := range cs {
			points[i] = models.Point{Timestamp: t0.Add(time.Duration(i) * time.Minute), X: c[0], Y: c[1]}
		}
		return points
	}
	collection := &models.TrajectoryCollection{
		Trajectories: []models.Trajectory{
			{ID: "1:1", EntityID: "1", Points: toPoints(coords[:10])},
			{ID: "2:1", EntityID: "2", Points: toPoints(coords[10:])},
		},
	}

	clusterer, err := NewClusterer(0.0005, 5, testLogger)
	require.NoError(t, err)

	labels, labeled, err := clusterer.Cluster(context.Background(), collection)
	require.NoError(t, err)

	expected := make([]int, 0, 23)
	for i := 0; i < 20; i++ {
		expected = append(expected, 10)
	}
	expected = append(expected, -1, -1, -1)
	assert.Equal(t, expected, labels)

	require.Len(t, labeled, 2)
	assert.Equal(t, "1:1", labeled[0].ID)
	assert.Equal(t, 10, labeled[0].MaxLabel())
	assert.Len(t, labeled[1].Points, 13)
	assert.Equal(t, -1, labeled[1].Points[12].Label)
}

func TestNewClustererValidation(t *testing.T) {
	_, err := NewClusterer(0, 5, testLogger)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = NewClusterer(0.001, 0, testLogger)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	var invalid *models.InvalidParameterError
	_, err = NewClusterer(-1, 5, testLogger)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "eps", invalid.Param)
}
