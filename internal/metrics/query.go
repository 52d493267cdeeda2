package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query engine Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphrag",
			Name:      "queries_total",
			Help:      "Total queries by terminal outcome",
		},
		[]string{"outcome"}, // HIGH / MEDIUM / LOW / REFUSED / FAILED
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graphrag",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	RetrieverDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphrag",
			Name:      "retriever_duration_seconds",
			Help:      "Per-retriever duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"source"}, // graph / vector
	)

	RetrieverFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphrag",
			Name:      "retriever_failures_total",
			Help:      "Retriever timeouts and errors recovered as empty evidence",
		},
		[]string{"source"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphrag",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed by answer synthesis",
		},
		[]string{"model", "type"}, // type: prompt / completion
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers Prometheus query metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(RetrieverDuration)
	prometheus.MustRegister(RetrieverFailuresTotal)
	prometheus.MustRegister(LLMTokensTotal)
	queryMetricsRegistered = true
}
