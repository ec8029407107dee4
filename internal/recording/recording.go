// Package recording loads continuous EEG recordings and their annotation
// streams from GDF and EDF/EDF+ files into memory.
//
// A Recording is fully materialized: every channel is decoded to physical
// units (volts) up front because epoch extraction slices the whole timeline
// at random offsets.
package recording

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/eegprep/eegprep/internal/errors"
)

// Format identifies the on-disk container of a raw recording.
type Format string

const (
	FormatGDF Format = "gdf"
	FormatEDF Format = "edf"
)

// ChannelType distinguishes EEG sensors from ocular channels.
type ChannelType int

const (
	ChannelEEG ChannelType = iota
	ChannelEOG
)

func (t ChannelType) String() string {
	if t == ChannelEOG {
		return "eog"
	}
	return "eeg"
}

// Channel is the metadata of one recorded signal.
type Channel struct {
	Name string
	Type ChannelType
	Unit string // physical dimension as stored in the file
}

// Annotation is one (sample, code) tuple of the recording's event stream.
// Code is the decimal event type for GDF ("769") and the TAL text for EDF+
// ("T1").
type Annotation struct {
	Sample   int
	Code     string
	Duration int // samples, 0 when the file records none
}

// Recording is a decoded multi-channel signal plus its annotations.
// It must be treated as read-only once returned by Read.
type Recording struct {
	Path        string
	Format      Format
	SampleRate  float64
	Channels    []Channel
	Data        [][]float64 // channels x samples, volts
	Annotations []Annotation
}

// Samples returns the number of samples per channel.
func (r *Recording) Samples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// ChannelNames returns the channel labels in file order.
func (r *Recording) ChannelNames() []string {
	names := make([]string, len(r.Channels))
	for i, ch := range r.Channels {
		names[i] = ch.Name
	}
	return names
}

// ReadOptions controls decoding of one recording.
type ReadOptions struct {
	// Format forces a decoder; empty selects it from the file extension.
	Format Format
	// EOG lists channel labels recorded from ocular electrodes. Labels
	// starting with "EOG" are always typed as EOG.
	EOG []string
}

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gdf":
		return FormatGDF, nil
	case ".edf":
		return FormatEDF, nil
	default:
		return "", errors.Newf("unsupported recording extension %q", filepath.Ext(path)).
			Component("recording").
			Category(errors.CategoryRead).
			FileContext(path, 0).
			Build()
	}
}

// Read loads and decodes the recording at path. A missing file yields a
// missing-input error; anything else that prevents decoding yields a read
// error.
func Read(path string, opts ReadOptions) (*Recording, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = FormatOf(path); err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.MissingInput(err, path)
		}
		return nil, errors.ReadError(err, path)
	}

	var rec *Recording
	switch format {
	case FormatGDF:
		rec, err = decodeGDF(raw)
	case FormatEDF:
		rec, err = decodeEDF(raw)
	default:
		err = errors.Newf("unknown recording format %q", format).Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Component("recording").
			Category(errors.CategoryRead).
			FileContext(path, int64(len(raw))).
			Build()
	}

	rec.Path = path
	rec.Format = format
	assignChannelTypes(rec.Channels, opts.EOG)
	slices.SortStableFunc(rec.Annotations, func(a, b Annotation) int {
		return a.Sample - b.Sample
	})

	return rec, nil
}

func assignChannelTypes(channels []Channel, eog []string) {
	for i := range channels {
		name := channels[i].Name
		if slices.Contains(eog, name) || strings.HasPrefix(strings.ToUpper(name), "EOG") {
			channels[i].Type = ChannelEOG
		} else {
			channels[i].Type = ChannelEEG
		}
	}
}

// SelectChannels returns, in recording order, the indexes of EEG channels
// whose names are not listed in exclude.
func SelectChannels(channels []Channel, exclude []string) []int {
	picks := make([]int, 0, len(channels))
	for i, ch := range channels {
		if ch.Type != ChannelEEG || slices.Contains(exclude, ch.Name) {
			continue
		}
		picks = append(picks, i)
	}
	return picks
}

// unitScale converts a physical dimension label to a factor to volts.
// Unknown or empty dimensions are left unscaled.
func unitScale(dim string) float64 {
	switch strings.TrimSpace(dim) {
	case "V":
		return 1
	case "mV":
		return 1e-3
	case "uV", "µV", "μV":
		return 1e-6
	case "nV":
		return 1e-9
	default:
		return 1
	}
}
