// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// Instances are created once and passed explicitly; there is no
// package-level default.
type Metrics struct {
	// Extraction metrics
	RawRowsFetched    *prometheus.CounterVec
	ObservationsStored *prometheus.CounterVec
	ExtractionErrors  *prometheus.CounterVec

	// Quality gate metrics
	QualityRunsTotal   *prometheus.CounterVec
	CheckFailures      *prometheus.CounterVec
	QualityRowCount    *prometheus.GaugeVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	DatasetRows       *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
// to the registerer (the default Prometheus registry when nil).
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "crypto_vol_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RawRowsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "raw_rows_fetched_total",
			Help:      "Total number of raw rows fetched from sources",
		}, []string{"asset_id"}),
		ObservationsStored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "observations_stored_total",
			Help:      "Total number of observations stored to the archive",
		}, []string{"asset_id"}),
		ExtractionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "errors_total",
			Help:      "Total number of extraction errors",
		}, []string{"asset_id"}),

		QualityRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "runs_total",
			Help:      "Total number of quality gate runs by outcome",
		}, []string{"asset_id", "outcome"}),
		CheckFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "check_failures_total",
			Help:      "Total number of failed quality checks by check name",
		}, []string{"asset_id", "check"}),
		QualityRowCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "row_count",
			Help:      "Rows evaluated in the most recent quality gate run",
		}, []string{"asset_id"}),

		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"asset_id", "status"}),
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"asset_id"}),
		DatasetRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "dataset_rows",
			Help:      "Feature rows produced by the most recent pipeline run",
		}, []string{"asset_id"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordQualityRun records a quality gate run and its failed checks.
func (m *Metrics) RecordQualityRun(assetID string, passed bool, failedChecks []string, rowCount int) {
	outcome := "passed"
	if !passed {
		outcome = "failed"
	}
	m.QualityRunsTotal.WithLabelValues(assetID, outcome).Inc()
	m.QualityRowCount.WithLabelValues(assetID).Set(float64(rowCount))
	for _, check := range failedChecks {
		m.CheckFailures.WithLabelValues(assetID, check).Inc()
	}
}

// RecordPipelineRun records a pipeline run.
func (m *Metrics) RecordPipelineRun(assetID, status string, durationSeconds float64) {
	m.PipelineRunsTotal.WithLabelValues(assetID, status).Inc()
	m.PipelineDuration.WithLabelValues(assetID).Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
