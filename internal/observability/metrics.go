package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// covariate extraction pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	BatchDuration   prometheus.Histogram

	// Catalog metrics.
	CatalogPagesFetched prometheus.Counter
	AssetsIndexed       prometheus.Gauge
	AssetsDropped       prometheus.Counter

	// Zonal-stats metrics.
	ZonalRequests        *prometheus.CounterVec // labels: outcome={success,error}
	ZonalRequestDuration prometheus.Histogram

	// Per-record metrics.
	RecordsProcessed *prometheus.CounterVec // labels: status={ok,no_matching_assets,no_successful_requests}
	RecordDuration   prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covariate_etl",
			Name:      "pipeline_running",
			Help:      "1 while a batch run is active, 0 otherwise.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covariate_etl",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete batch run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		CatalogPagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covariate_etl",
			Name:      "catalog_pages_fetched_total",
			Help:      "Total catalog item pages fetched.",
		}),
		AssetsIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covariate_etl",
			Name:      "assets_indexed",
			Help:      "Raster assets held in the time-bucket index for the current run.",
		}),
		AssetsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "covariate_etl",
			Name:      "assets_dropped_total",
			Help:      "Catalog features dropped for lacking a resolvable timestamp.",
		}),
		ZonalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covariate_etl",
			Name:      "zonal_requests_total",
			Help:      "Zonal-statistics requests by outcome.",
		}, []string{"outcome"}),
		ZonalRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covariate_etl",
			Name:      "zonal_request_duration_seconds",
			Help:      "Zonal-statistics request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covariate_etl",
			Name:      "records_processed_total",
			Help:      "Survey records processed by final covariate status.",
		}, []string{"status"}),
		RecordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covariate_etl",
			Name:      "record_duration_seconds",
			Help:      "Time to resolve, query, and aggregate one survey record.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	prometheus.MustRegister(
		m.PipelineRunning,
		m.BatchDuration,
		m.CatalogPagesFetched,
		m.AssetsIndexed,
		m.AssetsDropped,
		m.ZonalRequests,
		m.ZonalRequestDuration,
		m.RecordsProcessed,
		m.RecordDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PipelineRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "covariate_etl", Name: "pipeline_running"}),
		BatchDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "covariate_etl", Name: "batch_duration_seconds"}),
		CatalogPagesFetched:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "covariate_etl", Name: "catalog_pages_fetched_total"}),
		AssetsIndexed:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "covariate_etl", Name: "assets_indexed"}),
		AssetsDropped:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "covariate_etl", Name: "assets_dropped_total"}),
		ZonalRequests:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "covariate_etl", Name: "zonal_requests_total"}, []string{"outcome"}),
		ZonalRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "covariate_etl", Name: "zonal_request_duration_seconds"}),
		RecordsProcessed:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "covariate_etl", Name: "records_processed_total"}, []string{"status"}),
		RecordDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "covariate_etl", Name: "record_duration_seconds"}),
	}
}
