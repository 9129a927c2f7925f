package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine Prometheus metrics. Registered explicitly from main (no init()).
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atrium",
			Name:      "searches_total",
			Help:      "Total number of search requests",
		},
		[]string{"status"}, // "ok" / "no_matches" / "error"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "atrium",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "atrium",
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	QueryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atrium",
			Name:      "query_cache_total",
			Help:      "Query result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	CorpusRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "atrium",
			Name:      "corpus_records",
			Help:      "Records in the active corpus by validity",
		},
		[]string{"state"}, // "valid" / "invalid"
	)

	CorpusRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "atrium",
			Name:      "corpus_refreshes_total",
			Help:      "Total number of corpus index rebuilds",
		},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers engine Prometheus metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(QueryCacheTotal)
	prometheus.MustRegister(CorpusRecords)
	prometheus.MustRegister(CorpusRefreshesTotal)
	engineMetricsRegistered = true
}
