package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's prometheus collectors
type Metrics struct {
	ActionsTotal         *prometheus.CounterVec
	CacheFallbacksTotal  *prometheus.CounterVec
	CacheWriteFailures   *prometheus.CounterVec
	UsageWriteFailures   prometheus.Counter
	ProviderRequestTime  *prometheus.HistogramVec
	ReconciliationsTotal *prometheus.CounterVec
	IdempotentReplays    prometheus.Counter
	QuotaRejectionsTotal *prometheus.CounterVec
}

// NewMetrics registers the collectors with registerer. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_actions_total",
			Help: "Total number of document actions by action and outcome",
		}, []string{"action", "outcome"}),
		CacheFallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_cache_fallbacks_total",
			Help: "Total number of read actions answered from the document cache",
		}, []string{"action"}),
		CacheWriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_cache_write_failures_total",
			Help: "Total number of cache writes that failed after a provider success",
		}, []string{"action"}),
		UsageWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "document_usage_write_failures_total",
			Help: "Total number of created documents missing from the usage ledger",
		}),
		ProviderRequestTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signing_provider_request_duration_seconds",
			Help:    "Duration of signing provider requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		ReconciliationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_reconciliations_total",
			Help: "Total number of reconciliation jobs by result",
		}, []string{"result"}),
		IdempotentReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "document_idempotent_replays_total",
			Help: "Total number of write actions answered from a stored idempotent response",
		}),
		QuotaRejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "document_quota_rejections_total",
			Help: "Total number of document creations blocked by plan limits",
		}, []string{"reason"}),
	}
}
