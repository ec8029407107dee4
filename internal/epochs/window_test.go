package epochs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegprep/eegprep/internal/recording"
)

// synthetic returns a recording of ch channels and n samples where sample i
// of channel c holds c*1000 + i.
func synthetic(ch, n int, fs float64) *recording.Recording {
	rec := &recording.Recording{SampleRate: fs, Data: make([][]float64, ch)}
	for c := range rec.Data {
		rec.Channels = append(rec.Channels, recording.Channel{Name: string(rune('A' + c))})
		rec.Data[c] = make([]float64, n)
		for i := range rec.Data[c] {
			rec.Data[c][i] = float64(c*1000 + i)
		}
	}
	return rec
}

func TestWindowLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		window      Window
		fs          float64
		start, stop int
		length      int
	}{
		{"motor imagery 250 Hz", Window{1, 4}, 250, 250, 1000, 751},
		{"cue onset", Window{-0.2, 0.5}, 250, -50, 125, 176},
		{"full trial", Window{0, 7}, 250, 0, 1750, 1751},
		{"short physionet", Window{1, 4}, 160, 160, 640, 481},
		{"long physionet", Window{0, 6}, 160, 0, 960, 961},
		{"rounding", Window{0, 0.7}, 250, 0, 175, 176},
		{"single sample", Window{0, 0}, 4, 0, 0, 1},
		{"fractional start", Window{0.1, 0.5}, 128, 12, 64, 53},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			start, stop := tt.window.Offsets(tt.fs)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.stop, stop)
			assert.Equal(t, tt.length, tt.window.Length(tt.fs))
		})
	}
}

func TestWindowValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Window{-0.2, 0.5}.Validate())
	assert.Error(t, Window{2, 1}.Validate())
}

func TestExtract(t *testing.T) {
	t.Parallel()

	// 4 s at 4 Hz, one event at 1 s, window [0 s, 2 s]
	rec := synthetic(2, 16, 4)
	events := []Event{{Sample: 4, Code: "769", ID: 7, Label: LeftHand}}

	out, stats := Extract(rec, events, []int{0, 1}, Window{0, 2}, DuplicatesFirst)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Data, 2)
	assert.Len(t, out[0].Data[0], 9)
	assert.InDelta(t, 4.0, out[0].Data[0][0], 0)
	assert.InDelta(t, 1012.0, out[0].Data[1][8], 0)
	assert.Equal(t, 7, out[0].ClassID)
	assert.Equal(t, 4, out[0].Onset)
	assert.Equal(t, WindowStats{Events: 1, Extracted: 1}, stats)

	// the epoch does not alias the recording
	out[0].Data[0][0] = -1
	assert.InDelta(t, 4.0, rec.Data[0][4], 0)
}

func TestExtractDropsOutOfBounds(t *testing.T) {
	t.Parallel()

	rec := synthetic(1, 16, 4)
	events := []Event{
		{Sample: 1, ID: 1, Label: LeftHand},   // starts before the recording
		{Sample: 6, ID: 1, Label: LeftHand},   // fits
		{Sample: 13, ID: 2, Label: RightHand}, // ends on the last sample
		{Sample: 14, ID: 2, Label: RightHand}, // runs past the end
	}

	out, stats := Extract(rec, events, []int{0}, Window{-0.5, 0.5}, DuplicatesFirst)
	require.Len(t, out, 2)
	for _, ep := range out {
		assert.Len(t, ep.Data[0], 5)
	}
	assert.Equal(t, []int{6, 13}, []int{out[0].Onset, out[1].Onset})
	assert.InDelta(t, 15.0, out[1].Data[0][4], 0)
	assert.Equal(t, 2, stats.OutOfBounds)
	assert.Equal(t, 2, stats.Extracted)

	// nothing fits
	out, stats = Extract(rec, []Event{{Sample: 12, ID: 1, Label: LeftHand}}, []int{0}, Window{0, 2}, DuplicatesFirst)
	assert.Empty(t, out)
	assert.Equal(t, 1, stats.Dropped())
}

func TestExtractPicksChannels(t *testing.T) {
	t.Parallel()

	rec := synthetic(4, 16, 4)
	out, _ := Extract(rec, []Event{{Sample: 2, ID: 1, Label: Rest}}, []int{0, 2}, Window{0, 1}, DuplicatesFirst)
	require.Len(t, out, 1)
	require.Len(t, out[0].Data, 2)
	assert.InDelta(t, 2002.0, out[0].Data[1][0], 0)
}

func TestExtractDuplicates(t *testing.T) {
	t.Parallel()

	rec := synthetic(1, 32, 4)
	same := []Event{
		{Sample: 4, ID: 1, Label: LeftHand},
		{Sample: 4, ID: 1, Label: LeftHand},
		{Sample: 12, ID: 2, Label: RightHand},
	}
	conflicting := []Event{
		{Sample: 4, ID: 1, Label: LeftHand},
		{Sample: 4, ID: 2, Label: RightHand},
		{Sample: 12, ID: 2, Label: RightHand},
	}

	tests := []struct {
		name      string
		events    []Event
		policy    DuplicatePolicy
		labels    []Label
		wantStats WindowStats
	}{
		{
			name: "first keeps earliest", events: conflicting, policy: DuplicatesFirst,
			labels:    []Label{LeftHand, RightHand},
			wantStats: WindowStats{Events: 3, Extracted: 2, Duplicates: 1},
		},
		{
			name: "merge collapses equal labels", events: same, policy: DuplicatesMerge,
			labels:    []Label{LeftHand, RightHand},
			wantStats: WindowStats{Events: 3, Extracted: 2, Duplicates: 1},
		},
		{
			name: "merge drops conflicting labels", events: conflicting, policy: DuplicatesMerge,
			labels:    []Label{RightHand},
			wantStats: WindowStats{Events: 3, Extracted: 1, Conflicts: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, stats := Extract(rec, tt.events, []int{0}, Window{0, 1}, tt.policy)

			got := make([]Label, len(out))
			for i, ep := range out {
				got[i] = ep.Label
			}
			assert.Equal(t, tt.labels, got)
			assert.Equal(t, tt.wantStats, stats)
		})
	}
}

func TestWindowStatsAdd(t *testing.T) {
	t.Parallel()

	var total WindowStats
	total.Add(WindowStats{Events: 3, Extracted: 2, OutOfBounds: 1})
	total.Add(WindowStats{Events: 4, Extracted: 1, Duplicates: 1, Conflicts: 2})
	assert.Equal(t, WindowStats{Events: 7, Extracted: 3, OutOfBounds: 1, Duplicates: 1, Conflicts: 2}, total)
	assert.Equal(t, 4, total.Dropped())
}
