package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "cbm_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestFiles       *prometheus.CounterVec
	ingestFileLatency *prometheus.HistogramVec
	ingestReadings    prometheus.Counter
	ingestDefects     prometheus.Counter
	ingestSkippedRows prometheus.Counter
	storeReadings     prometheus.Gauge

	queryLatency *prometheus.HistogramVec

	exportTotal *prometheus.CounterVec
)

// Init registers the collectors with the default registry. Observations
// made before Init are dropped.
func Init() {
	registerOnce.Do(func() {
		ingestFiles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_files_total",
				Help: "Total ingested files by result",
			},
			[]string{"result"},
		)
		ingestFileLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_file_latency_seconds",
				Help:    "Per-file ingestion latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ingestReadings = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_readings_total",
				Help: "Total readings produced by ingestion",
			},
		)
		ingestDefects = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_timestamp_defects_total",
				Help: "Rows whose timestamp could not be resolved",
			},
		)
		ingestSkippedRows = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_skipped_rows_total",
				Help: "Rows skipped for lacking an equipment code",
			},
		)
		storeReadings = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "store_readings",
				Help: "Readings currently held in the store",
			},
		)
		queryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "query_latency_seconds",
				Help:    "Query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"query"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total exports by kind and result",
			},
			[]string{"kind", "result"},
		)

		prometheus.MustRegister(
			ingestFiles,
			ingestFileLatency,
			ingestReadings,
			ingestDefects,
			ingestSkippedRows,
			storeReadings,
			queryLatency,
			exportTotal,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveIngestFile records one file's outcome and latency.
func ObserveIngestFile(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestFiles != nil {
		ingestFiles.WithLabelValues(result).Inc()
	}
	if ingestFileLatency != nil {
		ingestFileLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddIngestCounts adds per-file reading, defect and skipped row counts.
func AddIngestCounts(readings, defects, skipped int) {
	if ingestReadings != nil {
		ingestReadings.Add(float64(readings))
	}
	if ingestDefects != nil {
		ingestDefects.Add(float64(defects))
	}
	if ingestSkippedRows != nil {
		ingestSkippedRows.Add(float64(skipped))
	}
}

// SetStoreReadings sets the store size gauge.
func SetStoreReadings(n int) {
	if storeReadings != nil {
		storeReadings.Set(float64(n))
	}
}

// ObserveQuery records query latency since start.
func ObserveQuery(query string, start time.Time) {
	if query == "" {
		query = "unknown"
	}
	if queryLatency != nil {
		queryLatency.WithLabelValues(query).Observe(time.Since(start).Seconds())
	}
}

// IncExport counts one export attempt.
func IncExport(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(kind, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
