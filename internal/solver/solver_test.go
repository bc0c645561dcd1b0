package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/repository"
	"github.com/flybeeper/trajflow/pkg/utils"
)

var testLogger = utils.NewLogger("error", "text")

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// stopThenMove стоянка 15 минут и движение на восток с шагом около 150 м
func stopThenMove() *models.TrajectoryCollection {
	jitter := []float64{0, 0.00002, -0.00002, 0.00001, -0.00001, 0}
	points := make([]models.Point, 0, 12)
	for i, j := range jitter {
		points = append(points, models.Point{
			Timestamp: t0.Add(time.Duration(i) * 3 * time.Minute),
			X:         14.75 + j,
			Y:         44.97 - j,
		})
	}
	for i := 1; i <= 6; i++ {
		points = append(points, models.Point{
			Timestamp: t0.Add(15*time.Minute + time.Duration(i)*time.Minute),
			X:         14.75 + float64(i)*150/78700.0,
			Y:         44.97,
		})
	}
	return &models.TrajectoryCollection{
		Trajectories: []models.Trajectory{{ID: "1:1", EntityID: "1", Points: points}},
	}
}

// twoGroups две плотные группы по 10 точек и три выброса
func twoGroups() *models.TrajectoryCollection {
	var points []models.Point
	add := func(x, y float64) {
		points = append(points, models.Point{Timestamp: t0.Add(time.Duration(len(points)) * time.Minute), X: x, Y: y})
	}
	for i := 0; i < 10; i++ {
		add(14.75+float64(i)*0.00001, 44.97)
	}
	for i := 0; i < 10; i++ {
		add(14.80+float64(i)*0.00001, 44.99)
	}
	add(14.70, 44.90)
	add(14.85, 44.90)
	add(14.70, 45.05)
	return &models.TrajectoryCollection{
		Trajectories: []models.Trajectory{{ID: "1:1", EntityID: "1", Points: points}},
	}
}

func newCache(t *testing.T) (*repository.Cache, repository.Store) {
	store := repository.NewMemoryStore(32, 0)
	cache, err := repository.NewCache(store, testLogger)
	require.NoError(t, err)
	return cache, store
}

func TestTransitions(t *testing.T) {
	assert.True(t, canTransition(Unsolved, Loaded))
	assert.True(t, canTransition(Unsolved, Computing))
	assert.True(t, canTransition(Solved, Persisted))
	assert.True(t, canTransition(Persisted, Clustered))
	assert.False(t, canTransition(Persisted, Computing))
	assert.False(t, canTransition(Solved, Unsolved))
	assert.False(t, canTransition(Loaded, Computing))
	assert.Equal(t, "persisted", Persisted.String())
}

func TestFlowSolver(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)
	deps := Deps{Collection: stopThenMove(), Cache: cache, Identity: "bbox", Logger: testLogger}
	params := models.FlowParams(50, 100)

	s, err := NewFlowSolver(params, deps)
	require.NoError(t, err)
	assert.Equal(t, Unsolved, s.State())

	result, err := s.Solve(ctx)
	require.NoError(t, err)
	assert.Equal(t, Persisted, s.State())
	assert.Equal(t, params, result.Params)
	require.Len(t, result.Flows, 1)
	assert.Equal(t, 1, result.Flows[0].Weight)
	assert.Len(t, result.Clusters, 2)
	require.True(t, result.Clustered())
	require.Len(t, result.Labels, 12)
	for _, l := range result.Labels {
		assert.Equal(t, 1, l)
	}
	assert.Len(t, result.Points, 12)

	// повторный вызов возвращает тот же результат
	again, err := s.Solve(ctx)
	require.NoError(t, err)
	assert.Same(t, result, again)

	t.Run("identical params load persisted solution", func(t *testing.T) {
		loaded, err := NewFlowSolver(params, deps)
		require.NoError(t, err)

		got, err := loaded.Solve(ctx)
		require.NoError(t, err)
		assert.Equal(t, Loaded, loaded.State())
		assert.Equal(t, result.Labels, got.Labels)
		assert.Equal(t, result.Flows, got.Flows)
		assert.Equal(t, result.Clusters, got.Clusters)
	})

	t.Run("other min stop duration uses its own key", func(t *testing.T) {
		other := deps
		other.MinStopDuration = 20 * time.Minute
		s, err := NewFlowSolver(params, other)
		require.NoError(t, err)

		result, err := s.Solve(ctx)
		require.NoError(t, err)
		assert.Equal(t, Persisted, s.State())
		// стоянка короче 20 минут: только начало и конец
		require.Len(t, result.Flows, 1)
	})
}

func TestFlowSolverWithoutLabels(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)
	deps := Deps{Collection: stopThenMove(), Cache: cache, Identity: "bbox", Logger: testLogger}
	params := models.FlowParams(50, 100)

	s, err := NewFlowSolver(params, deps, WithoutLabels())
	require.NoError(t, err)

	result, err := s.Solve(ctx)
	require.NoError(t, err)
	assert.Equal(t, Persisted, s.State())
	assert.False(t, result.Clustered())
	assert.Nil(t, result.Labeled)
	assert.Len(t, result.Flows, 1)

	t.Run("loading a label-less solution clusters it", func(t *testing.T) {
		cache, _ := newCache(t)
		d := deps
		d.Cache = cache

		unlabeled, err := NewFlowSolver(params, d, WithoutLabels())
		require.NoError(t, err)
		_, err = unlabeled.Solve(ctx)
		require.NoError(t, err)

		labeled, err := NewFlowSolver(params, d)
		require.NoError(t, err)
		result, err := labeled.Solve(ctx)
		require.NoError(t, err)
		assert.Equal(t, Persisted, labeled.State())
		assert.True(t, result.Clustered())

		// разметка сохранена
		again, err := NewFlowSolver(params, d)
		require.NoError(t, err)
		_, err = again.Solve(ctx)
		require.NoError(t, err)
		assert.Equal(t, Loaded, again.State())
	})

	clustered, err := s.ClusterPoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, Persisted, s.State())
	require.True(t, clustered.Clustered())
	assert.Len(t, clustered.Labels, 12)
	require.Len(t, clustered.Labeled, 1)

	// повторная разметка ничего не меняет
	_, err = s.ClusterPoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, Persisted, s.State())

	t.Run("cluster before solve", func(t *testing.T) {
		fresh, err := NewFlowSolver(params, deps, WithoutLabels())
		require.NoError(t, err)
		_, err = fresh.ClusterPoints(ctx)
		assert.Error(t, err)
	})
}

func TestFlowSolverWithoutCache(t *testing.T) {
	s, err := NewFlowSolver(models.FlowParams(50, 100), Deps{Collection: stopThenMove(), Logger: testLogger})
	require.NoError(t, err)

	_, err = s.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Persisted, s.State())
}

func TestDensitySolver(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)
	deps := Deps{Collection: twoGroups(), Cache: cache, Identity: "bbox", Logger: testLogger}
	params := models.DensityParams(0.0005, 5)

	s, err := New(params, deps)
	require.NoError(t, err)

	result, err := s.Solve(ctx)
	require.NoError(t, err)
	assert.Equal(t, Persisted, s.State())

	expected := make([]int, 0, 23)
	for i := 0; i < 20; i++ {
		expected = append(expected, 10)
	}
	expected = append(expected, -1, -1, -1)
	assert.Equal(t, expected, result.Labels)
	assert.Empty(t, result.Flows)

	loaded, err := New(params, deps)
	require.NoError(t, err)
	got, err := loaded.Solve(ctx)
	require.NoError(t, err)
	assert.Equal(t, Loaded, loaded.State())
	assert.Equal(t, expected, got.Labels)
}

func TestInvalidParams(t *testing.T) {
	deps := Deps{Collection: stopThenMove(), Logger: testLogger}

	tests := []struct {
		name   string
		params models.Params
	}{
		{"min above max", models.FlowParams(200, 100)},
		{"zero max", models.FlowParams(0, 0)},
		{"zero eps", models.DensityParams(0, 5)},
		{"zero min samples", models.DensityParams(0.001, 0)},
		{"unknown kind", models.Params{Kind: "kmeans"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params, deps)
			assert.ErrorIs(t, err, models.ErrInvalidParameter)
		})
	}

	_, err := NewFlowSolver(models.DensityParams(0.001, 5), deps)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = New(models.FlowParams(50, 100), Deps{Logger: testLogger})
	assert.Error(t, err)
}

func TestEmptyCollection(t *testing.T) {
	deps := Deps{Collection: &models.TrajectoryCollection{}, Logger: testLogger}

	for _, params := range []models.Params{models.FlowParams(50, 100), models.DensityParams(0.001, 5)} {
		s, err := New(params, deps)
		require.NoError(t, err)
		_, err = s.Solve(context.Background())
		assert.ErrorIs(t, err, models.ErrEmptyCollection)
	}
}
