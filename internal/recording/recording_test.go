package recording

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/testutil"
)

func ramp(n int, start int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = start + int16(i)
	}
	return out
}

func TestReadGDF(t *testing.T) {
	t.Parallel()

	for _, version := range []int{1, 2} {
		t.Run(map[int]string{1: "gdf1", 2: "gdf2"}[version], func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "A01T.gdf")
			testutil.WriteGDF(t, path, testutil.GDFFixture{
				Version:    version,
				SampleRate: 4,
				Labels:     []string{"EEG-Fz", "EEG-C3", "EOG-left"},
				Unit:       "uV",
				Data:       [][]int16{ramp(8, 0), ramp(8, 100), ramp(8, -50)},
				Events: []testutil.GDFEvent{
					{Sample: 5, Type: 770},
					{Sample: 1, Type: 769},
				},
			})

			rec, err := Read(path, ReadOptions{})
			require.NoError(t, err)

			assert.Equal(t, FormatGDF, rec.Format)
			assert.InDelta(t, 4.0, rec.SampleRate, 1e-12)
			assert.Equal(t, []string{"EEG-Fz", "EEG-C3", "EOG-left"}, rec.ChannelNames())
			assert.Equal(t, 8, rec.Samples())
			assert.Equal(t, "uV", rec.Channels[0].Unit)
			assert.InDelta(t, 103e-6, rec.Data[1][3], 1e-15)
			assert.InDelta(t, -43e-6, rec.Data[2][7], 1e-15)

			// sorted by sample, positions converted to 0-based
			require.Len(t, rec.Annotations, 2)
			assert.Equal(t, Annotation{Sample: 1, Code: "769"}, rec.Annotations[0])
			assert.Equal(t, Annotation{Sample: 5, Code: "770"}, rec.Annotations[1])
		})
	}
}

func TestReadGDFPadsPartialRecord(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "1.gdf")
	testutil.WriteGDF(t, path, testutil.GDFFixture{
		SampleRate: 4,
		Labels:     []string{"C3"},
		Unit:       "uV",
		Data:       [][]int16{ramp(6, 1)},
		Events:     []testutil.GDFEvent{{Sample: 0, Type: 768}},
	})

	rec, err := Read(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, rec.Samples())
	assert.InDelta(t, 0.0, rec.Data[0][7], 1e-15)
}

func TestReadGDFEventDurations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "B0101T.gdf")
	testutil.WriteGDF(t, path, testutil.GDFFixture{
		SampleRate: 4,
		Labels:     []string{"C3"},
		Unit:       "uV",
		Data:       [][]int16{ramp(8, 0)},
		Events:     []testutil.GDFEvent{{Sample: 2, Type: 1023, Duration: 3}},
		Durations:  true,
	})

	rec, err := Read(path, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, rec.Annotations, 1)
	assert.Equal(t, Annotation{Sample: 2, Code: "1023", Duration: 3}, rec.Annotations[0])
}

func TestReadGDFWithoutEventTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "A02T.gdf")
	testutil.WriteGDF(t, path, testutil.GDFFixture{
		SampleRate: 4,
		Labels:     []string{"C3"},
		Data:       [][]int16{ramp(4, 0)},
		NoEvents:   true,
	})

	rec, err := Read(path, ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, rec.Annotations)
}

func TestReadGDFCorrupt(t *testing.T) {
	t.Parallel()

	valid := testutil.EncodeGDF(testutil.GDFFixture{
		SampleRate: 4,
		Labels:     []string{"C3", "C4"},
		Unit:       "uV",
		Data:       [][]int16{ramp(8, 0), ramp(8, 0)},
		Events:     []testutil.GDFEvent{{Sample: 1, Type: 769}, {Sample: 2, Type: 770}},
	})

	badVersion := append([]byte(nil), valid...)
	copy(badVersion[0:8], "XYZ 2.20")

	badType := append([]byte(nil), valid...)
	// type column of the first signal in a GDF 2 header
	typeOffset := 256 + 2*(16+80+6+2+8+8+8+8+68+12+4)
	badType[typeOffset] = 42

	hugeRecords := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint64(hugeRecords[236:244], 1<<60)

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", valid[:100]},
		{"huge record count", hugeRecords},
		{"not gdf", badVersion},
		{"truncated data", valid[:256*3+10]},
		{"truncated events", valid[:len(valid)-3]},
		{"unknown sample type", badType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "broken.gdf")
			require.NoError(t, os.WriteFile(path, tt.data, 0o600))

			_, err := Read(path, ReadOptions{})
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryRead), "got %v", err)
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "S01", "A01T.gdf"), ReadOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMissingInput))
}

func TestReadUnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "A01T.mat")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := Read(path, ReadOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryRead))
}

func TestReadEDF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "S001R04.edf")
	testutil.WriteEDF(t, path, testutil.EDFFixture{
		SampleRate: 4,
		Labels:     []string{"Fc5.", "C3.."},
		Unit:       "uV",
		Data: [][]float64{
			{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
			{-5, -4, -3, -2, -1, 0, 1, 2, 3, 4, 5, 6},
		},
		Annotations: []testutil.EDFAnnotation{
			{Onset: 0, Duration: 1, Text: "T0"},
			{Onset: 1.25, Duration: 1, Text: "T1"},
			{Onset: 2, Text: "T2"},
		},
	})

	rec, err := Read(path, ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, FormatEDF, rec.Format)
	assert.InDelta(t, 4.0, rec.SampleRate, 1e-12)
	assert.Equal(t, []string{"Fc5.", "C3.."}, rec.ChannelNames())
	assert.Equal(t, 12, rec.Samples())
	assert.InDelta(t, 7e-6, rec.Data[0][7], 1e-15)
	assert.InDelta(t, -5e-6, rec.Data[1][0], 1e-15)

	assert.Equal(t, []Annotation{
		{Sample: 0, Code: "T0", Duration: 4},
		{Sample: 5, Code: "T1", Duration: 4},
		{Sample: 8, Code: "T2"},
	}, rec.Annotations)
}

func TestReadEDFCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "S001R04.edf")
	testutil.WriteEDF(t, source, testutil.EDFFixture{
		SampleRate:  4,
		Labels:      []string{"C3.."},
		Unit:        "uV",
		Data:        [][]float64{{0, 1, 2, 3, 4, 5, 6, 7}},
		Annotations: []testutil.EDFAnnotation{{Onset: 0, Text: "T0"}},
	})
	valid, err := os.ReadFile(source)
	require.NoError(t, err)

	hugeRecords := append([]byte(nil), valid...)
	copy(hugeRecords[236:244], fmt.Sprintf("%-8d", 99999999))

	negativeRecords := append([]byte(nil), valid...)
	copy(negativeRecords[236:244], fmt.Sprintf("%-8d", -1))

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", valid[:100]},
		{"huge record count", hugeRecords},
		{"unknown record count", negativeRecords},
		{"truncated data", valid[:len(valid)-3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "broken.edf")
			require.NoError(t, os.WriteFile(path, tt.data, 0o600))

			_, err := Read(path, ReadOptions{})
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryRead), "got %v", err)
		})
	}
}

func TestParseTALs(t *testing.T) {
	t.Parallel()

	raw := []byte("+0\x14\x14\x00+1.5\x150.5\x14T1\x14\x00+3\x14T0\x14extra\x14\x00\x00\x00")
	anns, err := parseTALs(raw, 160)
	require.NoError(t, err)
	assert.Equal(t, []Annotation{
		{Sample: 240, Code: "T1", Duration: 80},
		{Sample: 480, Code: "T0"},
		{Sample: 480, Code: "extra"},
	}, anns)

	_, err = parseTALs([]byte("+abc\x14T1\x14\x00"), 160)
	assert.Error(t, err)
}

func TestChannelTypesAndSelection(t *testing.T) {
	t.Parallel()

	channels := []Channel{
		{Name: "EEG-Fz"}, {Name: "EEG-C3"}, {Name: "EOG-left"},
		{Name: "EEG-C4"}, {Name: "ocular"}, {Name: "EEG-Pz"},
	}
	assignChannelTypes(channels, []string{"ocular"})

	assert.Equal(t, ChannelEOG, channels[2].Type)
	assert.Equal(t, ChannelEOG, channels[4].Type)
	assert.Equal(t, "eeg", channels[0].Type.String())

	before := append([]Channel(nil), channels...)
	picks := SelectChannels(channels, []string{"EEG-C4"})

	assert.Equal(t, []int{0, 1, 5}, picks)
	assert.Equal(t, picks, SelectChannels(channels, []string{"EEG-C4"}))
	assert.Equal(t, before, channels)
}

func TestUnitScale(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1e-6, unitScale("uV"), 1e-20)
	assert.InDelta(t, 1e-6, unitScale("µV"), 1e-20)
	assert.InDelta(t, 1e-3, unitScale("mV"), 1e-20)
	assert.InDelta(t, 1.0, unitScale("V "), 1e-20)
	assert.InDelta(t, 1.0, unitScale("counts"), 1e-20)
}
