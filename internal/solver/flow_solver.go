package solver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flybeeper/trajflow/internal/flow"
	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/repository"
)

// FlowOption настройка решателя потоков
type FlowOption func(*FlowSolver)

// WithoutLabels откладывает разметку точек: сохраняются только кластеры
// остановок и потоки, разметку выполняет ClusterPoints
func WithoutLabels() FlowOption {
	return func(s *FlowSolver) {
		s.shouldCluster = false
	}
}

// FlowSolver решатель агрегации потоков
type FlowSolver struct {
	lifecycle
	mu            sync.Mutex
	aggregator    *flow.Aggregator
	shouldCluster bool
	solution      *solution
	result        *Result
}

// NewFlowSolver создает решатель; некорректные параметры дают InvalidParameterError
func NewFlowSolver(params models.Params, deps Deps, opts ...FlowOption) (*FlowSolver, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if params.Kind != models.FlowAggregation {
		return nil, models.NewInvalidParameterError("kind", params.Kind, "flow solver requires tca parameters")
	}

	flowParams := flow.ParamsFrom(params, deps.MinStopDuration)
	aggregator, err := flow.NewAggregator(flowParams, deps.Logger)
	if err != nil {
		return nil, err
	}

	key := repository.SolutionKey(deps.Identity, params.Key())
	if flowParams.MinStopDuration != flow.DefaultMinStopDuration {
		key = fmt.Sprintf("%s_stop%s", key, flowParams.MinStopDuration)
	}

	s := &FlowSolver{
		lifecycle: lifecycle{
			state:  Unsolved,
			params: params,
			deps:   deps,
			key:    key,
			logger: deps.Logger,
		},
		aggregator:    aggregator,
		shouldCluster: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params параметры решателя
func (s *FlowSolver) Params() models.Params {
	return s.params
}

// State текущий этап жизненного цикла
func (s *FlowSolver) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Solve загружает сохраненное решение или вычисляет и сохраняет новое
func (s *FlowSolver) Solve(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != nil {
		return s.result, nil
	}

	start := time.Now()
	defer func() {
		metrics.SolverDuration.WithLabelValues(string(models.FlowAggregation)).Observe(time.Since(start).Seconds())
	}()

	cached, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		if err := s.advance(Loaded); err != nil {
			return nil, err
		}
		s.solution = cached
		if s.shouldCluster && !cached.Clustered {
			if err := s.clusterPoints(ctx); err != nil {
				return nil, err
			}
		}
		s.result = s.solution.result(s.deps.Collection.Coordinates())
		return s.result, nil
	}

	if s.deps.Collection.Len() == 0 {
		return nil, models.ErrEmptyCollection
	}

	if err := s.advance(Computing); err != nil {
		return nil, err
	}
	aggregation, err := s.aggregator.Aggregate(ctx, s.deps.Collection)
	if err != nil {
		return nil, err
	}
	if err := s.advance(Solved); err != nil {
		return nil, err
	}

	s.solution = &solution{
		Params:   s.params,
		Clusters: aggregation.Clusters,
		Flows:    aggregation.Flows,
	}

	if s.shouldCluster {
		if err := s.label(); err != nil {
			return nil, err
		}
	}
	if err := s.persist(ctx, s.solution); err != nil {
		return nil, err
	}

	s.result = s.solution.result(s.deps.Collection.Coordinates())
	return s.result, nil
}

// ClusterPoints размечает точки решения, полученного без разметки, и
// сохраняет обновленное решение. Для уже размеченного решения ничего не делает.
func (s *FlowSolver) ClusterPoints(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solution == nil {
		return nil, fmt.Errorf("solver %s is not solved", s.params.Key())
	}
	if err := s.clusterPoints(ctx); err != nil {
		return nil, err
	}
	s.result = s.solution.result(s.deps.Collection.Coordinates())
	return s.result, nil
}

func (s *FlowSolver) clusterPoints(ctx context.Context) error {
	if s.solution.Clustered {
		return nil
	}
	if err := s.label(); err != nil {
		return err
	}
	return s.persist(ctx, s.solution)
}

func (s *FlowSolver) label() error {
	labels, labeled, err := s.aggregator.Label(s.deps.Collection, s.solution.Flows)
	if err != nil {
		return err
	}
	s.solution.Labels = labels
	s.solution.Labeled = labeled
	s.solution.Clustered = true
	return s.advance(Clustered)
}

var _ Solver = (*FlowSolver)(nil)
