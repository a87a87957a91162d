package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsProcessed tracks rows by terminal outcome
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "difyrun_rows_processed_total",
			Help: "Total number of rows processed",
		},
		[]string{"outcome"},
	)

	// APICallsTotal tracks workflow API calls by result
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "difyrun_api_calls_total",
			Help: "Total number of workflow API calls",
		},
		[]string{"result"},
	)

	// RetriesTotal tracks retry attempts across all rows
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "difyrun_retries_total",
			Help: "Total number of retry attempts",
		},
	)

	// APICallLatency tracks workflow call latency
	APICallLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "difyrun_api_call_duration_seconds",
			Help:    "Workflow API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
