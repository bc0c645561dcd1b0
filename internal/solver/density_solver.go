package solver

import (
	"context"
	"sync"
	"time"

	"github.com/flybeeper/trajflow/internal/density"
	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/repository"
)

// DensitySolver решатель плотностной кластеризации
type DensitySolver struct {
	lifecycle
	mu        sync.Mutex
	clusterer *density.Clusterer
	result    *Result
}

// NewDensitySolver создает решатель; некорректные параметры дают InvalidParameterError
func NewDensitySolver(params models.Params, deps Deps) (*DensitySolver, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if params.Kind != models.DensityClustering {
		return nil, models.NewInvalidParameterError("kind", params.Kind, "density solver requires dbscan parameters")
	}

	clusterer, err := density.NewClusterer(params.Eps, params.MinSamples, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &DensitySolver{
		lifecycle: lifecycle{
			state:  Unsolved,
			params: params,
			deps:   deps,
			key:    repository.SolutionKey(deps.Identity, params.Key()),
			logger: deps.Logger,
		},
		clusterer: clusterer,
	}, nil
}

// Params параметры решателя
func (s *DensitySolver) Params() models.Params {
	return s.params
}

// State текущий этап жизненного цикла
func (s *DensitySolver) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Solve загружает сохраненную разметку или вычисляет и сохраняет новую
func (s *DensitySolver) Solve(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != nil {
		return s.result, nil
	}

	start := time.Now()
	defer func() {
		metrics.SolverDuration.WithLabelValues(string(models.DensityClustering)).Observe(time.Since(start).Seconds())
	}()

	cached, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if cached != nil && cached.Clustered {
		if err := s.advance(Loaded); err != nil {
			return nil, err
		}
		s.result = cached.result(s.deps.Collection.Coordinates())
		return s.result, nil
	}

	if s.deps.Collection.Len() == 0 {
		return nil, models.ErrEmptyCollection
	}

	if err := s.advance(Computing); err != nil {
		return nil, err
	}
	labels, labeled, err := s.clusterer.Cluster(ctx, s.deps.Collection)
	if err != nil {
		return nil, err
	}
	if err := s.advance(Solved); err != nil {
		return nil, err
	}
	if err := s.advance(Clustered); err != nil {
		return nil, err
	}

	sol := &solution{
		Params:    s.params,
		Labels:    labels,
		Labeled:   labeled,
		Clustered: true,
	}
	if err := s.persist(ctx, sol); err != nil {
		return nil, err
	}

	s.result = sol.result(s.deps.Collection.Coordinates())
	return s.result, nil
}

var _ Solver = (*DensitySolver)(nil)
