package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RunsTotal            *prometheus.CounterVec
	ProviderFetchSeconds *prometheus.HistogramVec
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter
	QualityScore         prometheus.Histogram
	DispatchFailures     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichd_runs_total",
			Help: "Total enrichment runs by outcome",
		}, []string{"status"}),
		ProviderFetchSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrichd_provider_fetch_seconds",
			Help:    "Latency of provider fetches by data type",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"data_type", "outcome"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrichd_cache_hits_total",
			Help: "Cache lookups satisfied by a fresh entry",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrichd_cache_misses_total",
			Help: "Cache lookups requiring a provider fetch",
		}),
		QualityScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "enrichd_quality_score",
			Help:    "Distribution of computed quality scores",
			Buckets: []float64{10, 25, 50, 65, 75, 85, 95, 100},
		}),
		DispatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrichd_dispatch_failures_total",
			Help: "Downstream dispatch attempts that returned an error",
		}),
	}
}

func (m *Metrics) ObserveRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveFetch(dataType, outcome string, elapsed time.Duration) {
	m.ProviderFetchSeconds.WithLabelValues(dataType, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveQuality(score float64) {
	m.QualityScore.Observe(score)
}

func (m *Metrics) IncrementCacheHit()        { m.CacheHits.Inc() }
func (m *Metrics) IncrementCacheMiss()       { m.CacheMisses.Inc() }
func (m *Metrics) IncrementDispatchFailure() { m.DispatchFailures.Inc() }
