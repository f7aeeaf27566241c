package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuoteFetches counts upstream quote lookups by outcome (ok,
	// not_found, error).
	QuoteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_quote_fetches_total",
		Help: "Quote lookups against the market-data provider by outcome",
	}, []string{"outcome"})

	// QuoteCacheHits counts price lookups served from Redis.
	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invest_quote_cache_hits_total",
		Help: "Price lookups answered from the cache",
	})

	// AdvisoryEvaluations counts advisory requests by result (rule,
	// sentiment, none).
	AdvisoryEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_advisory_evaluations_total",
		Help: "Advisory evaluations by which branch triggered",
	}, []string{"result"})

	// ValuationDuration observes how long a full portfolio pricing pass takes.
	ValuationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invest_valuation_duration_seconds",
		Help:    "Duration of portfolio valuation passes",
		Buckets: prometheus.DefBuckets,
	})

	// TableSaves counts whole-table overwrites by table name.
	TableSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invest_table_saves_total",
		Help: "Whole-table replacement saves by table",
	}, []string{"table"})
)
