package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flybeeper/trajflow/internal/config"
	"github.com/flybeeper/trajflow/internal/evaluation"
	"github.com/flybeeper/trajflow/internal/filter"
	"github.com/flybeeper/trajflow/internal/flow"
	"github.com/flybeeper/trajflow/internal/handler"
	"github.com/flybeeper/trajflow/internal/metrics"
	"github.com/flybeeper/trajflow/internal/models"
	"github.com/flybeeper/trajflow/internal/repository"
	"github.com/flybeeper/trajflow/internal/service"
	"github.com/flybeeper/trajflow/internal/solver"
	"github.com/flybeeper/trajflow/internal/source"
	"github.com/flybeeper/trajflow/pkg/utils"
)

var (
	// Version, Commit и BuildTime устанавливаются при сборке через ldflags
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	serve := flag.Bool("serve", false, "serve results over HTTP after the pipeline finishes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.NewLogger(config.LogLevel(), config.LogFormat())
	utils.SetDefaultLogger(logger)
	logger.WithField("version", Version).Info("Starting trajflow")
	metrics.SetAppInfo(Version, Commit, BuildTime)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := repository.NewStore(ctx, cfg, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize cache store")
	}
	defer store.Close()

	cache, err := repository.NewCache(store, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize cache")
	}

	results := handler.NewResults()
	hub := handler.NewProgressHub(logger)
	go hub.Run(ctx)

	var server *handler.Server
	if *serve {
		server = handler.NewServer(cfg, results, hub, store, logger)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithField("error", err).Fatal("Failed to start HTTP server")
			}
		}()
	}

	p := &pipeline{cfg: cfg, cache: cache, results: results, hub: hub, logger: logger}
	if err := p.run(ctx); err != nil {
		if server == nil {
			store.Close()
			logger.WithField("error", err).Fatal("Pipeline failed")
		}
		logger.WithField("error", err).Error("Pipeline failed, serving partial results")
	}

	if server == nil {
		return
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err).Error("Server shutdown failed")
	}
	logger.Info("Server stopped")
}

// pipeline загрузка, препроцессинг, перебор сеток и итоговые решения
type pipeline struct {
	cfg     *config.Config
	cache   *repository.Cache
	results *handler.Results
	hub     *handler.ProgressHub
	logger  *utils.Logger
}

func (p *pipeline) run(ctx context.Context) error {
	start := time.Now()

	records, err := p.loadRecords(ctx)
	if err != nil {
		return err
	}

	bounds, err := inputBounds(p.cfg.Source.BBox, records)
	if err != nil {
		return err
	}
	identity := bounds.Identity()
	p.logger = p.logger.WithField("identity", identity)
	p.logger.WithField("geohash", bounds.GeohashPrefix(5)).
		WithField("records", len(records)).
		Info("Input records loaded")

	pre, err := service.NewPreprocessor(p.cache, &filter.FilterConfig{
		SimplifyTolerance: p.cfg.Preprocess.SimplifyTolerance,
		GapThreshold:      p.cfg.Preprocess.GapThreshold,
		MinPoints:         p.cfg.Preprocess.MinPoints,
	}, p.logger)
	if err != nil {
		return err
	}

	collection, loaded, err := pre.Preprocess(ctx, records, identity)
	if err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	p.results.SetCollection(collection)
	if !loaded {
		p.results.SetValidation(pre.Validation())
	}

	flowGrid, densityGrid, err := p.grids()
	if err != nil {
		return err
	}

	deps := solver.Deps{
		Collection:      collection,
		Cache:           p.cache,
		Identity:        identity,
		Logger:          p.logger,
		MinStopDuration: p.cfg.Flow.MinStopDuration,
	}

	// ошибка одного варианта не отменяет другой
	flowErr := p.runFlow(ctx, deps, flowGrid)
	densityErr := p.runDensity(ctx, deps, densityGrid)

	p.logger.WithFields(map[string]interface{}{
		"records":      len(records),
		"trajectories": collection.Len(),
		"points":       collection.PointCount(),
		"duration_ms":  time.Since(start).Milliseconds(),
	}).Info("Pipeline finished")

	return errors.Join(flowErr, densityErr)
}

func (p *pipeline) loadRecords(ctx context.Context) ([]models.Record, error) {
	var src repository.RecordSource
	switch p.cfg.Source.Kind {
	case "csv":
		csvSource, err := source.NewCSVSource(p.cfg.Source.Path, p.logger)
		if err != nil {
			return nil, err
		}
		src = csvSource
	case "mysql":
		repo, err := repository.NewMySQLRepository(&p.cfg.MySQL, p.cfg.Cache.TTL, p.logger)
		if err != nil {
			return nil, err
		}
		defer repo.Close()
		src = repo
	default:
		return nil, fmt.Errorf("unknown source kind %q", p.cfg.Source.Kind)
	}

	records, err := src.LoadRecords(ctx, p.cfg.Source.BBox)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return records, nil
}

// inputBounds область входа для ключей кэша: заданная bbox
// или границы самих записей
func inputBounds(bbox *models.Bounds, records []models.Record) (models.Bounds, error) {
	if bbox != nil {
		return *bbox, nil
	}
	bounds, ok := models.RecordBounds(records)
	if !ok {
		return models.Bounds{}, fmt.Errorf("no input records")
	}
	return bounds, nil
}

func (p *pipeline) grids() ([]models.Params, []models.Params, error) {
	flowGrid := evaluation.DefaultFlowGrid()
	densityGrid := evaluation.DefaultDensityGrid()
	if p.cfg.Evaluation.GridFile == "" {
		return flowGrid, densityGrid, nil
	}

	file, err := config.LoadGridFile(p.cfg.Evaluation.GridFile)
	if err != nil {
		return nil, nil, err
	}
	if len(file.Flow) > 0 {
		flowGrid = file.Flow
	}
	if len(file.Density) > 0 {
		densityGrid = file.Density
	}
	p.logger.WithField("grid_file", p.cfg.Evaluation.GridFile).
		WithField("flow_cells", len(flowGrid)).
		WithField("density_cells", len(densityGrid)).
		Info("Loaded grid file")
	return flowGrid, densityGrid, nil
}

func (p *pipeline) evaluate(ctx context.Context, kind models.SolverKind, deps solver.Deps, grid []models.Params, key string) (models.Params, error) {
	evaluator, err := evaluation.NewGridEvaluator(kind, evaluation.NewSolverFactory(deps), p.cache, evaluation.Config{
		Workers:           p.cfg.Evaluation.Workers,
		MaxDistinctLabels: p.cfg.Evaluation.MaxDistinctLabels,
		Progress:          p.hub.Publish,
	}, p.logger)
	if err != nil {
		return models.Params{}, err
	}

	result, err := evaluator.Evaluate(ctx, grid, key)
	if err != nil {
		return models.Params{}, fmt.Errorf("%s grid: %w", kind, err)
	}
	p.results.SetEvaluation(result)

	index, params, err := result.Best()
	if err != nil {
		return models.Params{}, fmt.Errorf("%s grid: %w", kind, err)
	}
	p.logger.WithFields(map[string]interface{}{
		"solver":     string(kind),
		"grid_index": index,
		"params":     params.Key(),
		"cohesion":   result.Scores[index].Cohesion,
		"separation": result.Scores[index].Separation,
		"valid":      result.ValidCount(),
		"cells":      len(grid),
	}).Info("Best parameters selected")
	return params, nil
}

// runFlow лучшая ячейка пересчитывается без разметки, затем точки размечаются отдельно
func (p *pipeline) runFlow(ctx context.Context, deps solver.Deps, grid []models.Params) error {
	key := repository.EvaluationKey(deps.Identity, models.FlowAggregation)
	if stop := deps.MinStopDuration; stop > 0 && stop != flow.DefaultMinStopDuration {
		key = fmt.Sprintf("%s_stop%s", key, stop)
	}

	params, err := p.evaluate(ctx, models.FlowAggregation, deps, grid, key)
	if err != nil {
		return err
	}

	s, err := solver.NewFlowSolver(params, deps, solver.WithoutLabels())
	if err != nil {
		return err
	}
	if _, err := s.Solve(ctx); err != nil {
		return fmt.Errorf("solve %s: %w", params.Key(), err)
	}
	result, err := s.ClusterPoints(ctx)
	if err != nil {
		return fmt.Errorf("cluster %s: %w", params.Key(), err)
	}
	p.results.SetSolution(models.FlowAggregation, result)

	p.logger.WithFields(map[string]interface{}{
		"params":        params.Key(),
		"flows":         len(result.Flows),
		"stop_clusters": len(result.Clusters),
	}).Info("Flow solution ready")
	return nil
}

func (p *pipeline) runDensity(ctx context.Context, deps solver.Deps, grid []models.Params) error {
	params, err := p.evaluate(ctx, models.DensityClustering, deps, grid,
		repository.EvaluationKey(deps.Identity, models.DensityClustering))
	if err != nil {
		return err
	}

	s, err := solver.New(params, deps)
	if err != nil {
		return err
	}
	result, err := s.Solve(ctx)
	if err != nil {
		return fmt.Errorf("solve %s: %w", params.Key(), err)
	}
	p.results.SetSolution(models.DensityClustering, result)

	noise := 0
	for _, l := range result.Labels {
		if l == models.NoiseLabel {
			noise++
		}
	}
	p.logger.WithFields(map[string]interface{}{
		"params": params.Key(),
		"points": len(result.Labels),
		"noise":  noise,
	}).Info("Density solution ready")
	return nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-serve]\n\nConfiguration is read from the environment and an optional .env file.\n", os.Args[0])
		flag.PrintDefaults()
	}
}
