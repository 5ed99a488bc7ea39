package metrics

import "github.com/prometheus/client_golang/prometheus"

// Classifier, cache, and provider Prometheus metrics.
var (
	ClassificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryd",
			Name:      "classification_total",
			Help:      "Classification outcomes by stage",
		},
		[]string{"stage", "outcome"}, // outcome: "matched" / "passed" / "fallback"
	)

	ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "queryd",
			Name:      "classification_duration_seconds",
			Help:      "End-to-end classification duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"path"}, // "full" / "fast"
	)

	CategorySnapshotRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryd",
			Name:      "category_snapshot_refresh_total",
			Help:      "Classifier category snapshot refreshes",
		},
		[]string{"result"}, // "ok" / "error"
	)

	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryd",
			Name:      "cache_requests_total",
			Help:      "Tiered cache lookups by instance and result",
		},
		[]string{"cache", "result"}, // result: "hit" / "miss" / "shared_hit"
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryd",
			Name:      "provider_requests_total",
			Help:      "Embedding and completion provider requests",
		},
		[]string{"provider", "model", "kind", "status"}, // kind: "embedding" / "completion"
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "queryd",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model", "kind"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queryd",
			Name:      "provider_tokens_total",
			Help:      "Total provider tokens consumed",
		},
		[]string{"provider", "model", "kind", "type"},
	)
)

var classifierMetricsRegistered bool

// RegisterClassifierMetrics registers Prometheus metrics. Must be called once from main.
func RegisterClassifierMetrics() {
	if classifierMetricsRegistered {
		return
	}
	prometheus.MustRegister(ClassificationTotal)
	prometheus.MustRegister(ClassificationDuration)
	prometheus.MustRegister(CategorySnapshotRefreshTotal)
	prometheus.MustRegister(CacheRequestsTotal)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(ProviderTokensTotal)
	classifierMetricsRegistered = true
}
