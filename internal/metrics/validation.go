package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsTotal общее количество входных записей
	RecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trajflow_records_total",
		Help: "Total number of input records processed for validation",
	})

	// RecordsRejected количество отклоненных записей по причинам
	RecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trajflow_records_rejected_total",
		Help: "Number of input records rejected by validation",
	}, []string{"reason"}) // reason: entity, timestamp, coordinates

	// FilteredPoints количество точек, удаленных фильтрами препроцессинга
	FilteredPoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trajflow_filtered_points_total",
		Help: "Number of points removed by preprocessing filters",
	}, []string{"stage"}) // stage: duplicate, simplification, short_segment
)
