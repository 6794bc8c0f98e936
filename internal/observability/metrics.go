package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast pipeline.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec // labels: status={PASS,FAIL}
	FindingsTotal *prometheus.CounterVec // labels: severity={ERROR,WARNING}
	RowsProcessed prometheus.Counter
	RunInFlight   prometheus.Gauge

	StageDuration   *prometheus.HistogramVec // labels: stage
	ProviderLatency prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.FindingsTotal,
		m.RowsProcessed,
		m.RunInFlight,
		m.StageDuration,
		m.ProviderLatency,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_etl",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by final status.",
		}, []string{"status"}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_etl",
			Name:      "findings_total",
			Help:      "Validation findings by severity.",
		}, []string{"severity"}),
		RowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecast_etl",
			Name:      "rows_processed_total",
			Help:      "Hourly fact rows normalized across all runs.",
		}),
		RunInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "forecast_etl",
			Name:      "run_in_flight",
			Help:      "1 while a pipeline run is executing, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forecast_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
		}, []string{"stage"}),
		ProviderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forecast_etl",
			Name:      "provider_request_duration_seconds",
			Help:      "Open-Meteo request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
