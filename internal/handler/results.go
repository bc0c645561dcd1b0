package handler

import (
	"sync"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/service"
	"github.com/flybeeper/trajflow/internal/solver"
)

// ResultSource источник результатов для API
type ResultSource interface {
	Collection() (*models.TrajectoryCollection, bool)
	Solution(kind models.SolverKind) (*solver.Result, bool)
	Evaluation(kind models.SolverKind) (*models.GridResult, bool)
	Validation() (service.ValidationMetrics, bool)
}

// Results реестр результатов конвейера, заполняется по мере вычисления
type Results struct {
	mu          sync.RWMutex
	collection  *models.TrajectoryCollection
	solutions   map[models.SolverKind]*solver.Result
	evaluations map[models.SolverKind]*models.GridResult
	validation  *service.ValidationMetrics
}

// NewResults создает пустой реестр
func NewResults() *Results {
	return &Results{
		solutions:   make(map[models.SolverKind]*solver.Result),
		evaluations: make(map[models.SolverKind]*models.GridResult),
	}
}

func (r *Results) SetCollection(c *models.TrajectoryCollection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collection = c
}

func (r *Results) SetSolution(kind models.SolverKind, result *solver.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solutions[kind] = result
}

func (r *Results) SetEvaluation(result *models.GridResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations[result.Kind] = result
}

func (r *Results) SetValidation(m service.ValidationMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validation = &m
}

// Collection предобработанная коллекция
func (r *Results) Collection() (*models.TrajectoryCollection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collection, r.collection != nil
}

// Solution итоговое решение варианта
func (r *Results) Solution(kind models.SolverKind) (*solver.Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.solutions[kind]
	return result, ok
}

// Evaluation результат перебора сетки варианта
func (r *Results) Evaluation(kind models.SolverKind) (*models.GridResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.evaluations[kind]
	return result, ok
}

// Validation счетчики валидации входных записей
func (r *Results) Validation() (service.ValidationMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.validation == nil {
		return service.ValidationMetrics{}, false
	}
	return *r.validation, true
}

var _ ResultSource = (*Results)(nil)
