package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/repository"
	"github.com/flybeeper/trajflow/internal/solver"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// Исходы оценки ячейки
const (
	OutcomeScored     = "scored"
	OutcomeDegenerate = "degenerate"
	OutcomeInvalid    = "invalid"
	OutcomeCached     = "cached"
)

// SolverFactory создает решатель для ячейки сетки
type SolverFactory func(params models.Params) (solver.Solver, error)

// NewSolverFactory фабрика поверх solver.New с общими зависимостями
func NewSolverFactory(deps solver.Deps) SolverFactory {
	return func(params models.Params) (solver.Solver, error) {
		return solver.New(params, deps)
	}
}

// ProgressFunc получает событие после каждой ячейки; может вызываться конкурентно
type ProgressFunc func(models.Progress)

// Config настройки перебора
type Config struct {
	Workers           int
	MaxDistinctLabels int
	Scorer            Scorer
	Progress          ProgressFunc
}

// GridEvaluator перебирает сетку параметров одного варианта решателя
type GridEvaluator struct {
	kind    models.SolverKind
	factory SolverFactory
	cache   *repository.Cache
	cfg     Config
	logger  *utils.Logger
}

// NewGridEvaluator создает оценщик; cache может быть nil
func NewGridEvaluator(kind models.SolverKind, factory SolverFactory, cache *repository.Cache, cfg Config, logger *utils.Logger) (*GridEvaluator, error) {
	if !kind.Valid() {
		return nil, models.NewInvalidParameterError("kind", kind, "unknown solver kind")
	}
	if factory == nil {
		return nil, fmt.Errorf("solver factory cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxDistinctLabels <= 0 {
		cfg.MaxDistinctLabels = DefaultMaxDistinctLabels
	}
	if cfg.Scorer == nil {
		cfg.Scorer = SilhouetteCHScorer{}
	}

	return &GridEvaluator{
		kind:    kind,
		factory: factory,
		cache:   cache,
		cfg:     cfg,
		logger:  logger.WithField("solver", string(kind)),
	}, nil
}

// Evaluate оценивает каждую ячейку сетки. Scores выровнен по индексам grid.
// Сохраненный результат с той же сеткой возвращается без вычислений.
func (e *GridEvaluator) Evaluate(ctx context.Context, grid []models.Params, cacheKey string) (*models.GridResult, error) {
	start := time.Now()
	useCache := e.cache != nil && cacheKey != ""

	if useCache {
		var cached models.GridResult
		ok, err := e.cache.Load(ctx, cacheKey, repository.KindGrid, &cached)
		if err != nil {
			return nil, err
		}
		if ok {
			if sameGrid(cached.Grid, grid) && len(cached.Scores) == len(grid) {
				cached.Loaded = true
				e.logger.WithField("cache_key", cacheKey).
					WithField("cells", len(grid)).
					Info("Grid evaluation loaded from cache")
				e.emitCached(&cached)
				return &cached, nil
			}
			e.logger.WithField("cache_key", cacheKey).
				Warn("Cached grid does not match requested grid, recomputing")
		}
	}

	runID := uuid.NewString()
	scores := make([]*models.Score, len(grid))
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, params := range grid {
		i, params := i, params
		g.Go(func() error {
			metrics.GridEvaluationsInFlight.Inc()
			defer metrics.GridEvaluationsInFlight.Dec()

			score, outcome, err := e.evaluateCell(gctx, params)
			if err != nil {
				return fmt.Errorf("grid cell %d (%s): %w", i, params, err)
			}
			scores[i] = score
			metrics.GridCellsEvaluated.WithLabelValues(string(e.kind), outcome).Inc()

			e.emit(models.Progress{
				RunID:     runID,
				Kind:      e.kind,
				Index:     i,
				Completed: int(completed.Add(1)),
				Total:     len(grid),
				Params:    params,
				Score:     score,
				Status:    outcome,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &models.GridResult{
		Kind:      e.kind,
		Grid:      append([]models.Params(nil), grid...),
		Scores:    scores,
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
	}

	if useCache {
		if err := e.cache.Save(ctx, cacheKey, repository.KindGrid, result); err != nil {
			e.logger.WithError(err).
				WithField("cache_key", cacheKey).
				Warn("Failed to persist grid evaluation")
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":      runID,
		"cells":       len(grid),
		"valid":       result.ValidCount(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Grid evaluation completed")

	return result, nil
}

// evaluateCell решает и оценивает одну ячейку. Некорректные параметры и
// пустая коллекция дают nil-оценку, остальные ошибки прерывают перебор.
func (e *GridEvaluator) evaluateCell(ctx context.Context, params models.Params) (*models.Score, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	logger := e.logger.WithField("params", params.Key())
	if params.Kind != e.kind {
		logger.Warn("Grid cell has foreign solver kind")
		return nil, OutcomeInvalid, nil
	}

	s, err := e.factory(params)
	if err != nil {
		if skippable(err) {
			logger.WithError(err).Debug("Grid cell skipped")
			return nil, OutcomeInvalid, nil
		}
		return nil, "", err
	}

	result, err := s.Solve(ctx)
	if err != nil {
		if skippable(err) {
			logger.WithError(err).Debug("Grid cell skipped")
			return nil, OutcomeInvalid, nil
		}
		return nil, "", err
	}
	if !result.Clustered() {
		return nil, "", fmt.Errorf("solver %s returned unlabeled result", params.Key())
	}

	if IsDegenerate(result.Labels, e.cfg.MaxDistinctLabels) {
		logger.Debug("Degenerate labeling")
		return nil, OutcomeDegenerate, nil
	}

	score, err := e.cfg.Scorer.Score(result.Points, result.Labels)
	if err != nil {
		logger.WithError(err).Warn("Labeling could not be scored")
		return nil, OutcomeDegenerate, nil
	}

	logger.WithField("cohesion", score.Cohesion).
		WithField("separation", score.Separation).
		Debug("Grid cell scored")
	return &score, OutcomeScored, nil
}

func (e *GridEvaluator) emit(p models.Progress) {
	if e.cfg.Progress != nil {
		e.cfg.Progress(p)
	}
}

func (e *GridEvaluator) emitCached(r *models.GridResult) {
	for i, params := range r.Grid {
		metrics.GridCellsEvaluated.WithLabelValues(string(e.kind), OutcomeCached).Inc()
		e.emit(models.Progress{
			RunID:     r.RunID,
			Kind:      e.kind,
			Index:     i,
			Completed: i + 1,
			Total:     len(r.Grid),
			Params:    params,
			Score:     r.Scores[i],
			Status:    OutcomeCached,
		})
	}
}

func skippable(err error) bool {
	return errors.Is(err, models.ErrInvalidParameter) || errors.Is(err, models.ErrEmptyCollection)
}

func sameGrid(a, b []models.Params) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
