package store

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/eegprep/eegprep/internal/epochs"
	"github.com/eegprep/eegprep/internal/errors"
)

func sampleCollection(t *testing.T) *epochs.Collection {
	t.Helper()

	c := epochs.NewCollection("BCI_IV_2a", "S01", "PA01T.epo", 4, epochs.Window{TMin: 0, TMax: 2}, []string{"EEG-C3", "EEG-C4"})
	eps := make([]epochs.Epoch, 3)
	for i := range eps {
		data := [][]float64{make([]float64, 9), make([]float64, 9)}
		for s := range 9 {
			data[0][s] = float64(i*100 + s)
			data[1][s] = -float64(i*100+s) / 3
		}
		eps[i] = epochs.Epoch{Data: data, ClassID: 7 + i%2, Onset: 40 * i}
	}
	require.NoError(t, c.AddEpochs(eps, map[epochs.Label]int{epochs.LeftHand: 7, epochs.RightHand: 8}))
	c.Normalized = true
	c.Noise = 0.01
	return c
}

func TestWriteRead(t *testing.T) {
	t.Parallel()

	c := sampleCollection(t)
	path := filepath.Join(t.TempDir(), "BCI_IV_2a", "S01", "PA01T.epo")

	n, err := Write(path, c)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), n)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	trials, channels, samples := got.Shape()
	assert.Equal(t, []int{3, 2, 9}, []int{trials, channels, samples})

	// no temporary files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "PA01T.epo", entries[0].Name())
}

func TestWriteIsDeterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.epo"), filepath.Join(dir, "b.epo")
	_, err := Write(a, sampleCollection(t))
	require.NoError(t, err)
	_, err = Write(b, sampleCollection(t))
	require.NoError(t, err)

	ra, err := os.ReadFile(a)
	require.NoError(t, err)
	rb, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
}

func TestWriteOverwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "1.epo")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	_, err := Write(path, sampleCollection(t))
	require.NoError(t, err)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
}

func TestWriteEmptyCollection(t *testing.T) {
	t.Parallel()

	c := epochs.NewCollection("BCI_III_3a", "S1", "1.epo", 250, epochs.Window{TMin: 0, TMax: 7}, []string{"C3"})
	path := filepath.Join(t.TempDir(), "1.epo")
	_, err := Write(path, c)
	require.NoError(t, err)

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1751}, h.Shape)
	assert.Equal(t, 0, h.Trials())

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestReadHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "PA01T.epo")
	_, err := Write(path, sampleCollection(t))
	require.NoError(t, err)

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, h.Version)
	assert.Equal(t, "S01", h.Subject)
	assert.Equal(t, map[string]int{"left_hand": 7, "right_hand": 8}, h.EventID)
	assert.Equal(t, []int{7, 8, 7}, h.Labels)
	assert.Equal(t, 3, h.Trials())
	assert.True(t, h.Normalized)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "missing.epo"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMissingInput))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleCollection(t)))
	valid := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("NOTEPOCH"), valid[8:]...)},
		{"truncated payload", valid[:len(valid)-8]},
		{"trailing bytes", append(append([]byte(nil), valid...), 0)},
		{"overflowing shape", rawArtifact(t, []int{1, 1, 1 << 61})},
		{"shape larger than payload", rawArtifact(t, []int{1, 1, 1 << 40})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "broken.epo")
			require.NoError(t, os.WriteFile(path, tt.data, 0o600))

			_, err := Read(path)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryRead))
		})
	}
}

// rawArtifact encodes a single-trial header with the given shape and no
// payload.
func rawArtifact(t *testing.T, shape []int) []byte {
	t.Helper()

	head, err := yaml.Marshal(&Header{
		Version:    FormatVersion,
		Dataset:    "BCI_IV_2a",
		SampleRate: 4,
		Channels:   []string{"EEG-C3"},
		Shape:      shape,
		Labels:     []int{1},
		Onsets:     []int{0},
	})
	require.NoError(t, err)

	out := append([]byte(nil), magic[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(head)))
	return append(out, head...)
}

func TestPayloadSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		shape   []int
		want    int64
		wantErr bool
	}{
		{shape: []int{3, 2, 9}, want: 3 * 2 * 9 * 8},
		{shape: []int{0, 2, 9}, want: 0},
		{shape: []int{1, 1, 1 << 61}, wantErr: true},
		{shape: []int{1 << 40, 1 << 20, 1 << 10}, wantErr: true},
		{shape: []int{1, -1, 9}, wantErr: true},
		{shape: []int{1, 2}, wantErr: true},
	}
	for _, tt := range tests {
		size, err := (&Header{Shape: tt.shape}).PayloadSize()
		if tt.wantErr {
			assert.Error(t, err, "shape %v", tt.shape)
			continue
		}
		require.NoError(t, err, "shape %v", tt.shape)
		assert.Equal(t, tt.want, size, "shape %v", tt.shape)
	}
}

func TestWriteFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "S01")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := Write(filepath.Join(blocker, "PA01T.epo"), sampleCollection(t))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryWrite))
}
