package evaluation

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/repository"
	"github.com/flybeeper/trajflow/internal/solver"
	"github.com/flybeeper/trajflow/pkg/utils"
)

var testLogger = utils.NewLogger("error", "text")

// squares две пары точек на расстоянии 10 друг от друга
var squares = [][2]float64{{0, 0}, {0, 1}, {10, 0}, {10, 1}}

func TestIsDegenerate(t *testing.T) {
	many := make([]int, 101)
	for i := range many {
		many[i] = i
	}

	tests := []struct {
		name   string
		labels []int
		want   bool
	}{
		{"single label", []int{0, 0, 0}, true},
		{"cluster and noise", []int{-1, -1, 0, 0}, true},
		{"empty", nil, true},
		{"too many labels", many, true},
		{"two clusters", []int{0, 0, 1, 1}, false},
		{"two clusters and noise", []int{-1, 0, 1}, false},
		{"exactly at limit", many[:100], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDegenerate(tt.labels, DefaultMaxDistinctLabels))
		})
	}
}

func TestSilhouette(t *testing.T) {
	s, err := Silhouette(squares, []int{0, 0, 1, 1})
	require.NoError(t, err)
	b := (10 + math.Sqrt(101)) / 2
	assert.InDelta(t, 1-1/b, s, 1e-9)

	t.Run("identical points", func(t *testing.T) {
		s, err := Silhouette([][2]float64{{0, 0}, {0, 0}, {0, 0}}, []int{0, 0, 1})
		require.NoError(t, err)
		assert.Equal(t, 0.0, s)
	})

	t.Run("singleton cluster scores zero", func(t *testing.T) {
		s, err := Silhouette([][2]float64{{0, 0}, {0, 1}, {5, 5}}, []int{0, 0, 1})
		require.NoError(t, err)
		assert.False(t, math.IsNaN(s))
		assert.Less(t, s, 1.0)
	})

	t.Run("unscorable", func(t *testing.T) {
		_, err := Silhouette(squares, []int{0, 0, 0, 0})
		assert.ErrorIs(t, err, ErrUnscorable)
		_, err = Silhouette(squares, []int{0, 1, 2, 3})
		assert.ErrorIs(t, err, ErrUnscorable)
		_, err = Silhouette(squares, []int{0, 1})
		assert.Error(t, err)
	})
}

func TestCalinskiHarabasz(t *testing.T) {
	ch, err := CalinskiHarabasz(squares, []int{0, 0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, ch, 1e-9)

	ch, err = CalinskiHarabasz([][2]float64{{0, 0}, {0, 0}, {1, 1}, {1, 1}}, []int{0, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, ch)

	_, err = CalinskiHarabasz(squares, []int{5, 5, 5, 5})
	assert.ErrorIs(t, err, ErrUnscorable)
}

func TestDefaultGrids(t *testing.T) {
	flow := DefaultFlowGrid()
	require.Len(t, flow, 28)
	assert.Equal(t, models.FlowParams(50, 100), flow[0])
	assert.Equal(t, models.FlowParams(350, 400), flow[len(flow)-1])
	for _, p := range flow {
		assert.Greater(t, p.MaxDistance, p.MinDistance)
	}

	density := DefaultDensityGrid()
	require.Len(t, density, 56)
	assert.Equal(t, models.DensityParams(1e-4, 5), density[0])
	assert.Equal(t, 20, density[len(density)-1].MinSamples)
	assert.InDelta(t, 1e-3, density[len(density)-1].Eps, 1e-12)
}

// fakeSolver возвращает заранее заданный результат
type fakeSolver struct {
	params models.Params
	result *solver.Result
	err    error
}

func (s *fakeSolver) Params() models.Params { return s.params }
func (s *fakeSolver) State() solver.State   { return solver.Unsolved }
func (s *fakeSolver) Solve(context.Context) (*solver.Result, error) {
	return s.result, s.err
}

// countingFactory размечает точки по MinDistance ячейки:
// 50 хорошая разметка, 100 вырожденная, 150 некорректные параметры, 200 пустая коллекция
func countingFactory(calls *atomic.Int64) SolverFactory {
	return func(params models.Params) (solver.Solver, error) {
		calls.Add(1)
		s := &fakeSolver{params: params}
		switch params.MinDistance {
		case 50:
			s.result = &solver.Result{Params: params, Points: squares, Labels: []int{1, 1, 2, 2}}
		case 100:
			s.result = &solver.Result{Params: params, Points: squares, Labels: []int{1, 1, 1, 1}}
		case 150:
			return nil, models.NewInvalidParameterError("min_distance", params.MinDistance, "test")
		case 200:
			s.err = models.ErrEmptyCollection
		}
		return s, nil
	}
}

var testGrid = []models.Params{
	models.FlowParams(50, 400),
	models.FlowParams(100, 400),
	models.FlowParams(150, 400),
	models.FlowParams(200, 400),
}

func newCache(t *testing.T) *repository.Cache {
	cache, err := repository.NewCache(repository.NewMemoryStore(16, 0), testLogger)
	require.NoError(t, err)
	return cache
}

func TestGridEvaluator_IndexAligned(t *testing.T) {
	var calls atomic.Int64
	var mu sync.Mutex
	var events []models.Progress

	grid := append([]models.Params(nil), testGrid...)
	e, err := NewGridEvaluator(models.FlowAggregation, countingFactory(&calls), nil, Config{
		Workers: 3,
		Progress: func(p models.Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	}, testLogger)
	require.NoError(t, err)

	result, err := e.Evaluate(context.Background(), grid, "")
	require.NoError(t, err)

	require.Len(t, result.Scores, len(grid))
	assert.Equal(t, testGrid, result.Grid)
	assert.Equal(t, testGrid, grid)
	require.NotNil(t, result.Scores[0])
	assert.InDelta(t, 200.0, result.Scores[0].Separation, 1e-9)
	assert.Nil(t, result.Scores[1])
	assert.Nil(t, result.Scores[2])
	assert.Nil(t, result.Scores[3])
	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.Loaded)

	best, params, err := result.Best()
	require.NoError(t, err)
	assert.Equal(t, 0, best)
	assert.Equal(t, testGrid[0], params)

	require.Len(t, events, len(grid))
	statuses := map[int]string{}
	for _, ev := range events {
		statuses[ev.Index] = ev.Status
		assert.Equal(t, len(grid), ev.Total)
	}
	assert.Equal(t, map[int]string{0: OutcomeScored, 1: OutcomeDegenerate, 2: OutcomeInvalid, 3: OutcomeInvalid}, statuses)
}

func TestGridEvaluator_Cache(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	key := repository.EvaluationKey("bbox", models.FlowAggregation)

	var calls atomic.Int64
	e, err := NewGridEvaluator(models.FlowAggregation, countingFactory(&calls), cache, Config{Workers: 2}, testLogger)
	require.NoError(t, err)

	first, err := e.Evaluate(ctx, testGrid, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(testGrid)), calls.Load())

	// второй запуск с тем же ключом ничего не пересчитывает
	calls.Store(0)
	second, err := e.Evaluate(ctx, testGrid, key)
	require.NoError(t, err)
	assert.Zero(t, calls.Load())
	assert.True(t, second.Loaded)
	assert.Equal(t, first.Grid, second.Grid)
	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, first.RunID, second.RunID)

	t.Run("different grid recomputes", func(t *testing.T) {
		calls.Store(0)
		result, err := e.Evaluate(ctx, testGrid[:2], key)
		require.NoError(t, err)
		assert.Equal(t, int64(2), calls.Load())
		assert.False(t, result.Loaded)
		assert.Len(t, result.Scores, 2)
	})
}

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Score(points [][2]float64, labels []int) (models.Score, error) {
	args := m.Called(points, labels)
	return args.Get(0).(models.Score), args.Error(1)
}

func TestGridEvaluator_Scorer(t *testing.T) {
	var calls atomic.Int64
	scorer := &mockScorer{}
	scorer.On("Score", squares, []int{1, 1, 2, 2}).Return(models.Score{}, errors.New("boom")).Once()

	e, err := NewGridEvaluator(models.FlowAggregation, countingFactory(&calls), nil, Config{Scorer: scorer}, testLogger)
	require.NoError(t, err)

	result, err := e.Evaluate(context.Background(), testGrid[:1], "")
	require.NoError(t, err)
	assert.Nil(t, result.Scores[0])
	scorer.AssertExpectations(t)

	_, _, err = result.Best()
	assert.ErrorIs(t, err, models.ErrAllDegenerate)
}

func TestGridEvaluator_EdgeCases(t *testing.T) {
	var calls atomic.Int64
	e, err := NewGridEvaluator(models.FlowAggregation, countingFactory(&calls), nil, Config{}, testLogger)
	require.NoError(t, err)

	t.Run("empty grid", func(t *testing.T) {
		result, err := e.Evaluate(context.Background(), nil, "")
		require.NoError(t, err)
		assert.Empty(t, result.Scores)
		_, _, err = result.Best()
		assert.ErrorIs(t, err, models.ErrAllDegenerate)
	})

	t.Run("foreign kind cell", func(t *testing.T) {
		calls.Store(0)
		result, err := e.Evaluate(context.Background(), []models.Params{models.DensityParams(0.001, 5)}, "")
		require.NoError(t, err)
		assert.Nil(t, result.Scores[0])
		assert.Zero(t, calls.Load())
	})

	t.Run("solver failure aborts", func(t *testing.T) {
		failing := func(params models.Params) (solver.Solver, error) {
			return &fakeSolver{params: params, err: errors.New("store down")}, nil
		}
		e, err := NewGridEvaluator(models.FlowAggregation, failing, nil, Config{}, testLogger)
		require.NoError(t, err)
		_, err = e.Evaluate(context.Background(), testGrid, "")
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Evaluate(ctx, testGrid, "")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("constructor validation", func(t *testing.T) {
		_, err := NewGridEvaluator("kmeans", countingFactory(&calls), nil, Config{}, testLogger)
		assert.ErrorIs(t, err, models.ErrInvalidParameter)
		_, err = NewGridEvaluator(models.FlowAggregation, nil, nil, Config{}, testLogger)
		assert.Error(t, err)
		_, err = NewGridEvaluator(models.FlowAggregation, countingFactory(&calls), nil, Config{}, nil)
		assert.Error(t, err)
	})
}

// groups плотные группы из 10 и 12 точек и три выброса
func groups() *models.TrajectoryCollection {
	t0 := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	var points []models.Point
	add := func(x, y float64) {
		points = append(points, models.Point{Timestamp: t0.Add(time.Duration(len(points)) * time.Minute), X: x, Y: y})
	}
	for i := 0; i < 10; i++ {
		add(14.75+float64(i)*0.00001, 44.97)
	}
	for i := 0; i < 12; i++ {
		add(14.80+float64(i)*0.00001, 44.99)
	}
	add(14.70, 44.90)
	add(14.85, 44.90)
	add(14.70, 45.05)
	return &models.TrajectoryCollection{
		Trajectories: []models.Trajectory{{ID: "1:1", EntityID: "1", Points: points}},
	}
}

func TestGridEvaluator_DensitySolvers(t *testing.T) {
	deps := solver.Deps{Collection: groups(), Cache: newCache(t), Identity: "bbox", Logger: testLogger}
	e, err := NewGridEvaluator(models.DensityClustering, NewSolverFactory(deps), deps.Cache, Config{Workers: 2}, testLogger)
	require.NoError(t, err)

	grid := []models.Params{
		models.DensityParams(0.0005, 5),
		models.DensityParams(0.0005, 15),
		models.DensityParams(0, 5),
	}
	result, err := e.Evaluate(context.Background(), grid, repository.EvaluationKey("bbox", models.DensityClustering))
	require.NoError(t, err)

	require.NotNil(t, result.Scores[0])
	assert.Greater(t, result.Scores[0].Cohesion, 0.0)
	assert.LessOrEqual(t, result.Scores[0].Cohesion, 1.0)
	// все точки шум
	assert.Nil(t, result.Scores[1])
	assert.Nil(t, result.Scores[2])
}
