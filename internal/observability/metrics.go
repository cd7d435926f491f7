package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for an analysis run.
type Metrics struct {
	WindowsFetched  prometheus.Counter
	FetchErrors     prometheus.Counter
	RowsParsed      prometheus.Counter
	RowsSkipped     prometheus.Counter
	PipelineRunning prometheus.Gauge

	FetchDuration prometheus.Histogram
	RunDuration   prometheus.Histogram

	ChartsRendered  *prometheus.CounterVec // labels: chart
	EventsPublished prometheus.Counter
	TotalEnergy     prometheus.Gauge

	// Mapbox metrics.
	MapboxRequests    *prometheus.CounterVec   // labels: method={static,reverse}, outcome={success,error,empty}
	MapboxCache       *prometheus.CounterVec   // labels: method={static,reverse}, result={hit,miss}
	MapboxAPIDuration *prometheus.HistogramVec // labels: method={static,reverse}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.WindowsFetched,
		m.FetchErrors,
		m.RowsParsed,
		m.RowsSkipped,
		m.PipelineRunning,
		m.FetchDuration,
		m.RunDuration,
		m.ChartsRendered,
		m.EventsPublished,
		m.TotalEnergy,
		m.MapboxRequests,
		m.MapboxCache,
		m.MapboxAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		WindowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_energy",
			Name:      "windows_fetched_total",
			Help:      "Catalog date windows downloaded.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_energy",
			Name:      "fetch_errors_total",
			Help:      "Catalog downloads that failed.",
		}),
		RowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_energy",
			Name:      "rows_parsed_total",
			Help:      "Catalog rows parsed into events.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_energy",
			Name:      "rows_skipped_total",
			Help:      "Catalog rows skipped because a field could not be parsed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_energy",
			Name:      "pipeline_running",
			Help:      "1 while an analysis run is in progress.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_energy",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single catalog window download.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_energy",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-analyze-render run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		ChartsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_energy",
			Name:      "charts_rendered_total",
			Help:      "Charts written, by chart name.",
		}, []string{"chart"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_energy",
			Name:      "events_published_total",
			Help:      "Enriched events written to the sink topic.",
		}),
		TotalEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_energy",
			Name:      "total_energy_joules",
			Help:      "Total radiated energy of the last analysed catalog.",
		}),
		MapboxRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_energy",
			Name:      "mapbox_requests_total",
			Help:      "Mapbox API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		MapboxCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_energy",
			Name:      "mapbox_cache_total",
			Help:      "Mapbox cache lookups by method and result.",
		}, []string{"method", "result"}),
		MapboxAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quake_energy",
			Name:      "mapbox_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
	}
}
