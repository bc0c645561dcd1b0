package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trajflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WebSocket метрики
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trajflow_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajflow_websocket_messages_out_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	WebSocketErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trajflow_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	// Метрики хранилища
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trajflow_store_operation_duration_seconds",
			Help:    "Duration of cache store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajflow_store_operation_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"backend", "operation"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajflow_cache_lookups_total",
			Help: "Total number of cache lookups by blob kind and result",
		},
		[]string{"kind", "result"}, // result: hit, miss, corrupt
	)

	// Метрики препроцессинга
	PreprocessedTrajectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trajflow_preprocessed_trajectories",
			Help: "Number of trajectories in the current collection",
		},
	)

	PreprocessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trajflow_preprocess_duration_seconds",
			Help:    "Duration of record preprocessing in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
	)

	// Метрики решателей и перебора сетки
	SolverDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trajflow_solver_duration_seconds",
			Help:    "Duration of a single solver run in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"solver"},
	)

	GridCellsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajflow_grid_cells_evaluated_total",
			Help: "Total number of evaluated grid cells by solver and outcome",
		},
		[]string{"solver", "outcome"}, // outcome: scored, degenerate, invalid
	)

	GridEvaluationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trajflow_grid_evaluations_in_flight",
			Help: "Number of grid cells being evaluated right now",
		},
	)

	// Общие метрики приложения
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trajflow_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetAppInfo устанавливает информацию о версии приложения
func SetAppInfo(version, commit, buildTime string) {
	AppInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
