package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation workflow.
type Metrics struct {
	EventsFetched   prometheus.Counter
	EventsValidated prometheus.Counter
	EventsPublished prometheus.Counter
	WorkflowRunning prometheus.Gauge
	WorkflowRuns    *prometheus.CounterVec // labels: outcome={success,error}

	// Stage metrics.
	StageDuration *prometheus.HistogramVec // labels: stage={fetch,validate,geocode,weather,categorize,merge,filter,publish}

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: domain={geocoding,categorization}, result={hit,miss}
	CacheStores  *prometheus.CounterVec // labels: domain={geocoding,categorization}, outcome={success,error}

	// Classifier metrics.
	ClassifierRequests *prometheus.CounterVec // labels: outcome={success,error,malformed}
	ClassifierDuration prometheus.Histogram
	Uncategorized      prometheus.Counter
}

// NewMetrics creates and registers all workflow metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datespot",
			Name:      "events_fetched_total",
			Help:      "Total raw events fetched from the feed.",
		}),
		EventsValidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datespot",
			Name:      "events_validated_total",
			Help:      "Total events that passed validation.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datespot",
			Name:      "events_published_total",
			Help:      "Total events included in the published schema.",
		}),
		WorkflowRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "datespot",
			Name:      "workflow_running",
			Help:      "1 while a workflow run is in progress.",
		}),
		WorkflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datespot",
			Name:      "workflow_runs_total",
			Help:      "Completed workflow runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "datespot",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each workflow stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datespot",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by domain and result.",
		}, []string{"domain", "result"}),
		CacheStores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datespot",
			Name:      "cache_stores_total",
			Help:      "Cache write-throughs by domain and outcome.",
		}, []string{"domain", "outcome"}),
		ClassifierRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datespot",
			Name:      "classifier_requests_total",
			Help:      "External classifier calls by outcome.",
		}, []string{"outcome"}),
		ClassifierDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "datespot",
			Name:      "classifier_duration_seconds",
			Help:      "External classifier call duration in seconds.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 240},
		}),
		Uncategorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datespot",
			Name:      "uncategorized_events_total",
			Help:      "Events the classifier failed to cover in a run.",
		}),
	}

	prometheus.MustRegister(
		m.EventsFetched,
		m.EventsValidated,
		m.EventsPublished,
		m.WorkflowRunning,
		m.WorkflowRuns,
		m.StageDuration,
		m.CacheLookups,
		m.CacheStores,
		m.ClassifierRequests,
		m.ClassifierDuration,
		m.Uncategorized,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		EventsFetched:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "datespot", Name: "events_fetched_total"}),
		EventsValidated:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "datespot", Name: "events_validated_total"}),
		EventsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "datespot", Name: "events_published_total"}),
		WorkflowRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "datespot", Name: "workflow_running"}),
		WorkflowRuns:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "datespot", Name: "workflow_runs_total"}, []string{"outcome"}),
		StageDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "datespot", Name: "stage_duration_seconds"}, []string{"stage"}),
		CacheLookups:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "datespot", Name: "cache_lookups_total"}, []string{"domain", "result"}),
		CacheStores:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "datespot", Name: "cache_stores_total"}, []string{"domain", "outcome"}),
		ClassifierRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "datespot", Name: "classifier_requests_total"}, []string{"outcome"}),
		ClassifierDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "datespot", Name: "classifier_duration_seconds"}),
		Uncategorized:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "datespot", Name: "uncategorized_events_total"}),
	}
}
