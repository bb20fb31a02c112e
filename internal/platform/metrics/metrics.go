package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Import pipeline
	ImportRuns    *prometheus.CounterVec
	ImportGroups  *prometheus.CounterVec
	ImportOps     *prometheus.CounterVec
	ImportSeconds prometheus.Histogram

	// Search path
	SearchRequests *prometheus.CounterVec
	SearchSeconds  prometheus.Histogram
	CacheLookups   *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ImportRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "addressbase_import_runs_total",
			Help: "Total import runs by outcome",
		}, []string{"outcome"}), // outcome: "ok", "failed"

		ImportGroups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "addressbase_import_groups_total",
			Help: "Total property groups processed by disposition",
		}, []string{"disposition"}), // disposition: "translated", "skipped"

		ImportOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "addressbase_import_operations_total",
			Help: "Total index mutation operations by bulk outcome",
		}, []string{"outcome"}), // outcome: "ok", "failed"

		ImportSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "addressbase_import_duration_seconds",
			Help:    "Duration of one import run including the bulk submission",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),

		SearchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "address_search_requests_total",
			Help: "Total search requests by kind",
		}, []string{"kind"}), // kind: "postcode", "phrase", "empty"

		SearchSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "address_search_duration_seconds",
			Help:    "Duration of search requests including the index round trip",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "address_search_cache_lookups_total",
			Help: "Total search cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

// IncrementImportRun records the outcome of one import run.
func (m *Metrics) IncrementImportRun(outcome string) {
	if m != nil {
		m.ImportRuns.WithLabelValues(outcome).Inc()
	}
}

// IncrementGroups records how a batch of property groups was handled.
func (m *Metrics) IncrementGroups(disposition string, n int) {
	if m != nil {
		m.ImportGroups.WithLabelValues(disposition).Add(float64(n))
	}
}

// IncrementOps records bulk operation outcomes.
func (m *Metrics) IncrementOps(outcome string, n int) {
	if m != nil {
		m.ImportOps.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObserveImportDuration records the duration of one import run.
func (m *Metrics) ObserveImportDuration(d time.Duration) {
	if m != nil {
		m.ImportSeconds.Observe(d.Seconds())
	}
}

// IncrementSearch records one search request.
func (m *Metrics) IncrementSearch(kind string) {
	if m != nil {
		m.SearchRequests.WithLabelValues(kind).Inc()
	}
}

// ObserveSearchDuration records the duration of one search request.
func (m *Metrics) ObserveSearchDuration(d time.Duration) {
	if m != nil {
		m.SearchSeconds.Observe(d.Seconds())
	}
}

// IncrementCacheLookup records one search cache lookup.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
