package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "outfit_recsys"

var (
	// EngineRequests — запросы к движку рекомендаций по режиму и исходу.
	EngineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "engine_requests_total",
		Help:      "Recommendation engine requests by mode and outcome.",
	}, []string{"mode", "outcome"})

	ModeAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mode_available",
		Help:      "1 if the recommendation mode is available, 0 if it is disabled.",
	}, []string{"mode"})

	TextCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "text_cache_requests_total",
		Help:      "Text embedding cache lookups by result (hit, shared_hit, miss).",
	}, []string{"result"})

	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_calls_total",
		Help:      "Calls to the ML inference service by method and outcome.",
	}, []string{"method", "outcome"})

	ModelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "model_call_duration_seconds",
		Help:      "Latency of ML inference calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	PipelineItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_items_total",
		Help:      "Catalog items processed by the precompute pipeline by result.",
	}, []string{"result"})
)

// SetModeAvailable выставляет gauge доступности режима.
func SetModeAvailable(mode string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	ModeAvailable.WithLabelValues(mode).Set(v)
}
