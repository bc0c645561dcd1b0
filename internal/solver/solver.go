package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/repository"
	"github.com/flybeeper/trajflow/pkg/utils"
)

// State этап жизненного цикла решателя
type State int

const (
	Unsolved State = iota
	Loaded
	Computing
	Solved
	Clustered
	Persisted
)

func (s State) String() string {
	switch s {
	case Unsolved:
		return "unsolved"
	case Loaded:
		return "loaded"
	case Computing:
		return "computing"
	case Solved:
		return "solved"
	case Clustered:
		return "clustered"
	case Persisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// допустимые переходы; Persisted -> Clustered возникает только при отложенной разметке
var transitions = map[State][]State{
	Unsolved:  {Loaded, Computing},
	Loaded:    {Clustered},
	Computing: {Solved},
	Solved:    {Clustered, Persisted},
	Clustered: {Persisted},
	Persisted: {Clustered},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Result результат решателя
type Result struct {
	Params models.Params
	// Points координаты в порядке потока точек
	Points [][2]float64
	// Labels метки в порядке потока точек; nil пока точки не размечены
	Labels   []int
	Labeled  []models.LabeledTrajectory
	Clusters []models.StopCluster
	Flows    []models.Flow
}

// Clustered сообщает, размечены ли точки
func (r *Result) Clustered() bool {
	return r.Labels != nil
}

// Solver решатель кластеризации одного набора параметров
type Solver interface {
	Params() models.Params
	Solve(ctx context.Context) (*Result, error)
	State() State
}

// Deps зависимости решателей
type Deps struct {
	Collection *models.TrajectoryCollection
	// Cache может быть nil: тогда решения не сохраняются
	Cache *repository.Cache
	// Identity идентификатор входных данных для ключей кэша
	Identity        string
	Logger          *utils.Logger
	MinStopDuration time.Duration
}

func (d Deps) validate() error {
	if d.Collection == nil {
		return fmt.Errorf("trajectory collection cannot be nil")
	}
	if d.Logger == nil {
		return fmt.Errorf("logger cannot be nil")
	}
	return nil
}

// New создает решатель по виду параметров
func New(params models.Params, deps Deps) (Solver, error) {
	switch params.Kind {
	case models.FlowAggregation:
		return NewFlowSolver(params, deps)
	case models.DensityClustering:
		return NewDensitySolver(params, deps)
	default:
		return nil, models.NewInvalidParameterError("kind", params.Kind, "unknown solver kind")
	}
}

// solution сохраняемая форма решения
type solution struct {
	Params   models.Params              `json:"params"`
	Clusters []models.StopCluster       `json:"clusters,omitempty"`
	Flows    []models.Flow              `json:"flows,omitempty"`
	Labels   []int                      `json:"labels,omitempty"`
	Labeled  []models.LabeledTrajectory `json:"labeled,omitempty"`
	// Clustered отличает пустую разметку пустой коллекции от отсутствующей
	Clustered bool `json:"clustered"`
}

func (s *solution) result(points [][2]float64) *Result {
	r := &Result{
		Params:   s.Params,
		Points:   points,
		Labeled:  s.Labeled,
		Clusters: s.Clusters,
		Flows:    s.Flows,
	}
	if s.Clustered {
		r.Labels = s.Labels
		if r.Labels == nil {
			r.Labels = []int{}
		}
	}
	return r
}

// lifecycle общее состояние решателей
type lifecycle struct {
	state  State
	params models.Params
	deps   Deps
	key    string
	logger *utils.Logger
}

func (l *lifecycle) advance(to State) error {
	if !canTransition(l.state, to) {
		return fmt.Errorf("invalid solver transition %s -> %s", l.state, to)
	}
	l.logger.WithField("params", l.params.Key()).
		WithField("from", l.state.String()).
		WithField("to", to.String()).
		Debug("Solver state changed")
	l.state = to
	return nil
}

func (l *lifecycle) load(ctx context.Context) (*solution, error) {
	if l.deps.Cache == nil {
		return nil, nil
	}
	var s solution
	ok, err := l.deps.Cache.Load(ctx, l.key, repository.KindSolution, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (l *lifecycle) persist(ctx context.Context, s *solution) error {
	if l.deps.Cache != nil {
		if err := l.deps.Cache.Save(ctx, l.key, repository.KindSolution, s); err != nil {
			return err
		}
	}
	return l.advance(Persisted)
}
