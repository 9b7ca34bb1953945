package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	Transactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "executor_transactions_total",
		Help: "The total number of executed transactions by mode and final status",
	}, []string{"mode", "status"})

	ExecutionTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "executor_execution_seconds",
		Help:    "Time from prepare to a terminal status",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // Start at 500ms with 10 buckets doubling in size
	}, []string{"mode"})

	SigningTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "executor_signing_seconds",
		Help:    "Time spent waiting for a signer",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"signer"})

	StatusPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "executor_status_polls_total",
		Help: "Intent status polls by observed status",
	}, []string{"status"})

	BackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "executor_backend_errors_total",
		Help: "Total number of settlement backend errors by endpoint and type",
	}, []string{"endpoint", "error_type"})

	BundlerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "executor_bundler_requests_total",
		Help: "Bundler JSON-RPC requests by chain, method and outcome",
	}, []string{"chain_id", "method", "status"})

	BatchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "executor_batch_items_total",
		Help: "Batch signing items by outcome",
	}, []string{"status"})

	CircuitOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "executor_circuit_open",
		Help: "1 while the backend circuit breaker is open",
	})
)
