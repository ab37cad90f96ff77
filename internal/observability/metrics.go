package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// imagery pipeline.
type Metrics struct {
	// Acquisition metrics.
	AcquisitionRequests *prometheus.CounterVec // labels: sensor, outcome={success,no_data,invalid,transient,error}
	AcquisitionRetries  prometheus.Counter
	DateFallbacks       prometheus.Counter
	AcquisitionDuration prometheus.Histogram

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: stage={acquire,preprocess,extract}, result={hit,miss,stale}

	// Extraction metrics.
	ContoursTraced    prometheus.Histogram
	NoiseRejections   *prometheus.CounterVec // labels: reason={contour_ceiling,coverage}
	PolygonsExtracted prometheus.Histogram

	// Pipeline metrics.
	AnalyzeDuration  prometheus.Histogram
	ResultsPublished prometheus.Counter
	PipelineReady    prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AcquisitionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_imagery",
			Name:      "acquisition_requests_total",
			Help:      "Provider scene requests by sensor and outcome.",
		}, []string{"sensor", "outcome"}),
		AcquisitionRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_imagery",
			Name:      "acquisition_retries_total",
			Help:      "Backoff retries caused by transient provider failures.",
		}),
		DateFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_imagery",
			Name:      "date_fallbacks_total",
			Help:      "Sensor sweeps re-run against an older fallback date.",
		}),
		AcquisitionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_imagery",
			Name:      "acquisition_duration_seconds",
			Help:      "Duration of a complete acquisition including fallbacks.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_imagery",
			Name:      "cache_lookups_total",
			Help:      "Artifact cache lookups by pipeline stage and result.",
		}, []string{"stage", "result"}),
		ContoursTraced: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_imagery",
			Name:      "contours_traced",
			Help:      "Raw iso-contours traced per extraction before filtering.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		NoiseRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_imagery",
			Name:      "noise_rejections_total",
			Help:      "Extractions rejected as noise by guard reason.",
		}, []string{"reason"}),
		PolygonsExtracted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_imagery",
			Name:      "polygons_extracted",
			Help:      "Polygons returned per extraction after filtering and merging.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		AnalyzeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_imagery",
			Name:      "analyze_duration_seconds",
			Help:      "Duration of a complete acquire-preprocess-extract-score run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_imagery",
			Name:      "results_published_total",
			Help:      "Scored analysis results published to the result topic.",
		}),
		PipelineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_imagery",
			Name:      "pipeline_ready",
			Help:      "1 when the pipeline can reach its artifact store, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.AcquisitionRequests,
		m.AcquisitionRetries,
		m.DateFallbacks,
		m.AcquisitionDuration,
		m.CacheLookups,
		m.ContoursTraced,
		m.NoiseRejections,
		m.PolygonsExtracted,
		m.AnalyzeDuration,
		m.ResultsPublished,
		m.PipelineReady,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AcquisitionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_imagery", Name: "acquisition_requests_total"}, []string{"sensor", "outcome"}),
		AcquisitionRetries:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_imagery", Name: "acquisition_retries_total"}),
		DateFallbacks:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_imagery", Name: "date_fallbacks_total"}),
		AcquisitionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_imagery", Name: "acquisition_duration_seconds"}),
		CacheLookups:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_imagery", Name: "cache_lookups_total"}, []string{"stage", "result"}),
		ContoursTraced:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_imagery", Name: "contours_traced"}),
		NoiseRejections:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_imagery", Name: "noise_rejections_total"}, []string{"reason"}),
		PolygonsExtracted:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_imagery", Name: "polygons_extracted"}),
		AnalyzeDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_imagery", Name: "analyze_duration_seconds"}),
		ResultsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_imagery", Name: "results_published_total"}),
		PipelineReady:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_imagery", Name: "pipeline_ready"}),
	}
}
