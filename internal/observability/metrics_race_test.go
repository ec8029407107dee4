package observability

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegprep/eegprep/internal/observability/metrics"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// without causing race conditions
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for range numGoroutines {
		go func() {
			defer wg.Done()

			m, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}
			if m.registry == nil || m.Extraction == nil {
				t.Error("metrics not initialized")
				return
			}
			m.Extraction.RecordSubject("Physionet", metrics.StatusSuccess)
		}()
	}

	wg.Wait()
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Extraction.RecordSubject("BCI_III_3a", metrics.StatusSuccess)
	m.Extraction.RecordEpochs("BCI_III_3a", "right_hand", 45)

	path := filepath.Join(t.TempDir(), "textfile", "eegprep.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `eegprep_subjects_total{dataset="BCI_III_3a",status="success"} 1`)
	assert.Contains(t, string(data), `eegprep_epochs_total{dataset="BCI_III_3a",label="right_hand"} 45`)
}
