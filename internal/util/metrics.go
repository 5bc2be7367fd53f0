package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PreviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_previews_total",
		Help: "Total number of transaction previews by outcome",
	}, []string{"outcome"})

	TransactionsCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transactions_committed_total",
		Help: "Total number of transactions written to the ledger",
	})

	TransactionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_failures_total",
		Help: "Total number of failed commits by failure kind",
	}, []string{"kind"})

	TransactionRevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transaction_revenue_total",
		Help: "Sum of committed transaction totals",
	})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of stock adjustments issued to the catalog",
	}, []string{"direction", "result"})

	StockOrphanedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_deductions_orphaned_total",
		Help: "Commits that left deducted stock without a ledger row",
	})

	SagaCompensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_compensations_total",
		Help: "Total number of compensation runs by result",
	}, []string{"result"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Latency of calls to collaborator services",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream", "operation"})

	UpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_errors_total",
		Help: "Total number of failed calls to collaborator services",
	}, []string{"upstream", "operation"})

	LedgerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_duration_seconds",
		Help:    "Latency of ledger store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	StatsCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_stats_cache_total",
		Help: "Dashboard stats cache lookups by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
