package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks.
var (
	_ Recorder = (*ExtractionMetrics)(nil)
	_ Recorder = NopRecorder{}
)

func TestExtractionMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewExtractionMetrics(registry)
	require.NoError(t, err)

	m.RecordSubject("BCI_IV_2a", StatusSuccess)
	m.RecordSubject("BCI_IV_2a", StatusSuccess)
	m.RecordSubject("BCI_IV_2a", StatusFailed)
	m.RecordEpochs("BCI_IV_2a", "left_hand", 72)
	m.RecordEpochs("BCI_IV_2a", "left_hand", 0)
	m.RecordDroppedWindows("BCI_IV_2a", ReasonOutOfBounds, 2)
	m.RecordDroppedWindows("BCI_IV_2a", ReasonConflict, -1)
	m.RecordArtifact("BCI_IV_2a", 4096)
	m.RecordArtifact("BCI_IV_2a", 1024)
	m.RecordError("BCI_IV_2a", "read")
	m.RecordSubjectDuration("BCI_IV_2a", 1500*time.Millisecond)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.subjectsTotal.WithLabelValues("BCI_IV_2a", StatusSuccess)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.subjectsTotal.WithLabelValues("BCI_IV_2a", StatusFailed)), 0)
	assert.InDelta(t, 72.0, testutil.ToFloat64(m.epochsTotal.WithLabelValues("BCI_IV_2a", "left_hand")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.windowsDroppedTotal.WithLabelValues("BCI_IV_2a", ReasonOutOfBounds)), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.artifactsTotal.WithLabelValues("BCI_IV_2a")), 0)
	assert.InDelta(t, 5120.0, testutil.ToFloat64(m.artifactBytesTotal.WithLabelValues("BCI_IV_2a")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("BCI_IV_2a", "read")), 0)

	// non-positive counts leave no series behind
	assert.Equal(t, 1, testutil.CollectAndCount(m.windowsDroppedTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.epochsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.subjectDuration))
}

func TestNewExtractionMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewExtractionMetrics(registry)
	require.NoError(t, err)

	_, err = NewExtractionMetrics(registry)
	assert.Error(t, err)
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestArtifactSizeHistogram(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewExtractionMetrics(registry)
	require.NoError(t, err)

	m.RecordArtifact("Physionet", 2048)
	m.RecordArtifact("Physionet", 3<<20)

	families, err := registry.Gather()
	require.NoError(t, err)

	family := findFamily(families, "eegprep_artifact_size_bytes")
	require.NotNil(t, family)
	assert.Equal(t, dto.MetricType_HISTOGRAM, family.GetType())
	require.Len(t, family.GetMetric(), 1)

	metric := family.GetMetric()[0]
	require.Len(t, metric.GetLabel(), 1)
	assert.Equal(t, "dataset", metric.GetLabel()[0].GetName())
	assert.Equal(t, "Physionet", metric.GetLabel()[0].GetValue())
	assert.Equal(t, uint64(2), metric.GetHistogram().GetSampleCount())
	assert.InDelta(t, float64(2048+3<<20), metric.GetHistogram().GetSampleSum(), 0)

	// 2 KiB falls in the 4 KiB bucket, 3 MiB does not
	for _, b := range metric.GetHistogram().GetBucket() {
		if b.GetUpperBound() == 4096 {
			assert.Equal(t, uint64(1), b.GetCumulativeCount())
		}
	}
}
