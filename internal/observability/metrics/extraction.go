package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExtractionMetrics contains Prometheus metrics for epoch extraction.
type ExtractionMetrics struct {
	registry *prometheus.Registry

	subjectsTotal       *prometheus.CounterVec
	subjectDuration     *prometheus.HistogramVec
	epochsTotal         *prometheus.CounterVec
	windowsDroppedTotal *prometheus.CounterVec
	artifactsTotal      *prometheus.CounterVec
	artifactBytesTotal  *prometheus.CounterVec
	artifactSize        *prometheus.HistogramVec
	errorsTotal         *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewExtractionMetrics creates and registers extraction metrics.
func NewExtractionMetrics(registry *prometheus.Registry) (*ExtractionMetrics, error) {
	m := &ExtractionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ExtractionMetrics) initMetrics() {
	m.subjectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eegprep_subjects_total",
			Help: "Total number of processed subjects",
		},
		[]string{"dataset", "status"}, // status: success, failed, excluded
	)

	m.subjectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eegprep_subject_duration_seconds",
			Help:    "Time taken to process one subject",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12), // 100ms to ~200s
		},
		[]string{"dataset"},
	)

	m.epochsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eegprep_epochs_total",
			Help: "Total number of written epochs",
		},
		[]string{"dataset", "label"},
	)

	m.windowsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eegprep_windows_dropped_total",
			Help: "Total number of events that produced no epoch",
		},
		[]string{"dataset", "reason"}, // reason: out_of_bounds, duplicate, conflict, unresolved
	)

	m.artifactsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eegprep_artifacts_total",
			Help: "Total number of written epoch artifacts",
		},
		[]string{"dataset"},
	)

	m.artifactBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eegprep_artifact_bytes_total",
			Help: "Total number of bytes written to epoch artifacts",
		},
		[]string{"dataset"},
	)

	m.artifactSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eegprep_artifact_size_bytes",
			Help:    "Size of written epoch artifacts",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount10), // 1KB to ~256MB
		},
		[]string{"dataset"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eegprep_subject_errors_total",
			Help: "Total number of subject failures by error category",
		},
		[]string{"dataset", "category"},
	)

	m.collectors = []prometheus.Collector{
		m.subjectsTotal,
		m.subjectDuration,
		m.epochsTotal,
		m.windowsDroppedTotal,
		m.artifactsTotal,
		m.artifactBytesTotal,
		m.artifactSize,
		m.errorsTotal,
	}
}

// Describe implements the Collector interface
func (m *ExtractionMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ExtractionMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordSubject implements Recorder.
func (m *ExtractionMetrics) RecordSubject(dataset, status string) {
	m.subjectsTotal.WithLabelValues(dataset, status).Inc()
}

// RecordSubjectDuration implements Recorder.
func (m *ExtractionMetrics) RecordSubjectDuration(dataset string, d time.Duration) {
	m.subjectDuration.WithLabelValues(dataset).Observe(d.Seconds())
}

// RecordEpochs implements Recorder.
func (m *ExtractionMetrics) RecordEpochs(dataset, label string, n int) {
	if n <= 0 {
		return
	}
	m.epochsTotal.WithLabelValues(dataset, label).Add(float64(n))
}

// RecordDroppedWindows implements Recorder.
func (m *ExtractionMetrics) RecordDroppedWindows(dataset, reason string, n int) {
	if n <= 0 {
		return
	}
	m.windowsDroppedTotal.WithLabelValues(dataset, reason).Add(float64(n))
}

// RecordArtifact implements Recorder.
func (m *ExtractionMetrics) RecordArtifact(dataset string, bytes int64) {
	m.artifactsTotal.WithLabelValues(dataset).Inc()
	m.artifactBytesTotal.WithLabelValues(dataset).Add(float64(bytes))
	m.artifactSize.WithLabelValues(dataset).Observe(float64(bytes))
}

// RecordError implements Recorder.
func (m *ExtractionMetrics) RecordError(dataset, category string) {
	m.errorsTotal.WithLabelValues(dataset, category).Inc()
}
