package manifest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegprep/eegprep/internal/logger"
)

func TestPath(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	assert.Equal(t, filepath.Join(out, "Physionet.manifest.db"), Path(out, "Physionet"))
}

func TestRecordAndList(t *testing.T) {
	t.Parallel()

	path := Path(t.TempDir(), "BCI_IV_2a")
	store, err := Open(path, logger.NewSlogLogger(nil, logger.LogLevelInfo, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	assert.Equal(t, path, store.Path())

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := &Run{
		ID:         uuid.NewString(),
		Dataset:    "BCI_IV_2a",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Workers:    1,
		Seed:       42,
		Subjects:   2,
		Succeeded:  1,
		Failed:     1,
		Epochs:     144,
		Results: []SubjectResult{
			{Subject: "S01", Status: "success", Artifacts: "PA01T.epo", Epochs: 144, Bytes: 1 << 20},
			{Subject: "S02", Status: "failed", ErrorCategory: "read", Error: "truncated data"},
		},
	}
	require.NoError(t, store.Record(first))

	second := &Run{ID: uuid.NewString(), Dataset: "BCI_IV_2a", StartedAt: started.Add(time.Hour)}
	require.NoError(t, store.Record(second))

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)

	require.Len(t, runs[0].Results, 2)
	assert.Equal(t, "S01", runs[0].Results[0].Subject)
	assert.Equal(t, first.ID, runs[0].Results[0].RunID)
	assert.Equal(t, "read", runs[0].Results[1].ErrorCategory)
	assert.Empty(t, runs[1].Results)

	// a duplicate id is rejected
	assert.Error(t, store.Record(&Run{ID: first.ID, Dataset: "BCI_IV_2a"}))
}

func TestReopen(t *testing.T) {
	t.Parallel()

	path := Path(t.TempDir(), "Physionet")
	log := logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)

	store, err := Open(path, log)
	require.NoError(t, err)
	require.NoError(t, store.Record(&Run{ID: uuid.NewString(), Dataset: "Physionet"}))
	require.NoError(t, store.Close())

	store, err = Open(path, log)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
