package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geosearch"

// Search outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	searchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of searches by outcome",
		},
		[]string{"outcome"},
	)

	searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	retrievalResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_results",
			Help:      "Number of hits returned per retrieval source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"source"},
	)

	retrievalFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Retrieval failures by source",
		},
		[]string{"source"},
	)

	embeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	embeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	embeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model"},
	)

	embeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestDuration,
		httpRequestsTotal,
		searchRequestsTotal,
		searchDuration,
		retrievalResults,
		retrievalFailuresTotal,
		embeddingRequestsTotal,
		embeddingRequestDuration,
		embeddingTokensTotal,
		embeddingCacheTotal,
	)
}

// ObserveSearch records one finished search.
func ObserveSearch(outcome string, d time.Duration) {
	searchRequestsTotal.WithLabelValues(outcome).Inc()
	searchDuration.Observe(d.Seconds())
}

// ObserveRetrieval records the hit count of one retrieval source.
func ObserveRetrieval(source string, hits int) {
	retrievalResults.WithLabelValues(source).Observe(float64(hits))
}

// RetrievalFailed counts a failed or timed out retrieval source.
func RetrievalFailed(source string) {
	retrievalFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveEmbedding records one remote embedding call.
func ObserveEmbedding(provider, model string, d time.Duration, tokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	embeddingRequestsTotal.WithLabelValues(provider, model, status).Inc()
	if err != nil {
		return
	}
	embeddingRequestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	if tokens > 0 {
		embeddingTokensTotal.WithLabelValues(provider, model).Add(float64(tokens))
	}
}

// EmbeddingCache counts a query embedding cache lookup.
func EmbeddingCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	embeddingCacheTotal.WithLabelValues(result).Inc()
}
