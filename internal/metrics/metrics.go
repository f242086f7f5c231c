package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quill_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	InboundEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_inbound_events_total",
			Help: "Total number of chat events received, by transport.",
		},
		[]string{"transport"},
	)

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_generations_total",
			Help: "Total number of generation calls by task kind and status.",
		},
		[]string{"task", "status"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quill_generation_duration_seconds",
			Help:    "Generation call latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
	)

	QuotaDenialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quill_quota_denials_total",
			Help: "Total number of requests rejected by the daily quota.",
		},
	)

	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quill_publish_total",
			Help: "Total number of publish attempts by status.",
		},
		[]string{"status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quill_store_operation_duration_seconds",
			Help:    "Key-value store operation latency in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"driver", "op"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		InboundEventsTotal,
		GenerationsTotal,
		GenerationDuration,
		QuotaDenialsTotal,
		PublishTotal,
		StoreOperationDuration,
	)
}
