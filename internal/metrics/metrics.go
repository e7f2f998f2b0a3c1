// Package metrics exposes the service's prometheus counters.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hlstype"

// Metrics records ingestion, cache and rate limiting outcomes. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ingestions     *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	cssCache       *prometheus.CounterVec
	rateLimited    prometheus.Counter
	invalidations  prometheus.Counter
	backups        *prometheus.CounterVec
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the recorder registered with the default registry.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors with reg; tests pass their own
// registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ingestions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "archives_total",
			Help:      "Font kit archives processed, by result code",
		}, []string{"code"}),
		ingestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Time spent ingesting one archive",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		cssCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "css_cache",
			Name:      "lookups_total",
			Help:      "Combined CSS lookups, by context and result",
		}, []string{"context", "result"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Write requests rejected by the rate limiter",
		}),
		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "css_cache",
			Name:      "invalidations_total",
			Help:      "Derived CSS cache invalidations",
		}),
		backups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Backup runs, by target and result",
		}, []string{"target", "result"}),
	}
}

// RecordIngestion counts one archive with its result code ("ok" on success)
// and how long it took.
func (m *Metrics) RecordIngestion(code string, seconds float64) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(code).Inc()
	m.ingestDuration.Observe(seconds)
}

func (m *Metrics) RecordCSSLookup(context string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cssCache.WithLabelValues(context, result).Inc()
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) RecordInvalidation() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}

func (m *Metrics) RecordBackup(target string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.backups.WithLabelValues(target, result).Inc()
}
