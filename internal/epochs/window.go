package epochs

import (
	"fmt"
	"math"
	"slices"

	"github.com/eegprep/eegprep/internal/recording"
)

// floorTolerance absorbs binary rounding in t*fs so that, for example,
// 0.7*250 lands on sample 175 rather than 174.
const floorTolerance = 1e-9

// Window is an epoch interval in seconds relative to event onset. Both ends
// are inclusive.
type Window struct {
	TMin float64 `yaml:"tmin"`
	TMax float64 `yaml:"tmax"`
}

// Offsets returns the first and last sample offsets relative to the event.
func (w Window) Offsets(fs float64) (start, stop int) {
	return floorSamples(w.TMin * fs), floorSamples(w.TMax * fs)
}

// Length returns the number of samples in one epoch. Both ends are floored
// separately, so Length is floor(tmax*fs) - floor(tmin*fs) + 1. This equals
// floor((tmax-tmin)*fs) + 1 whenever tmin*fs is a whole number; otherwise
// the per-end rule wins and the window matches the slice Extract takes.
func (w Window) Length(fs float64) int {
	start, stop := w.Offsets(fs)
	return stop - start + 1
}

// Validate reports an inverted or non-finite window.
func (w Window) Validate() error {
	if math.IsNaN(w.TMin) || math.IsNaN(w.TMax) || math.IsInf(w.TMin, 0) || math.IsInf(w.TMax, 0) {
		return fmt.Errorf("window %s is not finite", w)
	}
	if w.TMax < w.TMin {
		return fmt.Errorf("window %s ends before it starts", w)
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("[%gs, %gs]", w.TMin, w.TMax)
}

func floorSamples(x float64) int {
	return int(math.Floor(x + floorTolerance))
}

// DuplicatePolicy decides what happens to several events at one sample.
type DuplicatePolicy string

const (
	// DuplicatesFirst keeps the first event at a sample and drops the rest.
	DuplicatesFirst DuplicatePolicy = "first"
	// DuplicatesMerge collapses events at a sample into one epoch when they
	// carry the same label. Events with different labels at one sample
	// cannot be merged and are all dropped.
	DuplicatesMerge DuplicatePolicy = "merge"
)

// Epoch is one labeled window carved from a recording.
type Epoch struct {
	Data    [][]float64 // channels x samples
	Label   Label
	ClassID int
	Onset   int // event sample in the source recording
}

// WindowStats accounts for every resolved event handed to Extract.
type WindowStats struct {
	Events      int // resolved events received
	Extracted   int
	OutOfBounds int // window outside the recording
	Duplicates  int // events collapsed into an earlier event at the same sample
	Conflicts   int // events dropped because labels at one sample disagree
}

// Add accumulates other into s.
func (s *WindowStats) Add(other WindowStats) {
	s.Events += other.Events
	s.Extracted += other.Extracted
	s.OutOfBounds += other.OutOfBounds
	s.Duplicates += other.Duplicates
	s.Conflicts += other.Conflicts
}

// Dropped returns the number of events that produced no epoch.
func (s WindowStats) Dropped() int {
	return s.OutOfBounds + s.Duplicates + s.Conflicts
}

// Extract slices one epoch per event across the picked channels. Windows
// that do not fit inside the recording are dropped, never padded or
// clipped. All returned epochs share the shape (len(picks), w.Length(fs)).
func Extract(rec *recording.Recording, events []Event, picks []int, w Window, policy DuplicatePolicy) ([]Epoch, WindowStats) {
	stats := WindowStats{Events: len(events)}

	unique, duplicates, conflicts := collapse(events, policy)
	stats.Duplicates = duplicates
	stats.Conflicts = conflicts

	startOff, stopOff := w.Offsets(rec.SampleRate)
	length := stopOff - startOff + 1
	n := rec.Samples()

	out := make([]Epoch, 0, len(unique))
	for _, ev := range unique {
		start, stop := ev.Sample+startOff, ev.Sample+stopOff
		if start < 0 || stop >= n {
			stats.OutOfBounds++
			continue
		}

		data := make([][]float64, len(picks))
		for i, ch := range picks {
			data[i] = make([]float64, length)
			copy(data[i], rec.Data[ch][start:stop+1])
		}
		out = append(out, Epoch{Data: data, Label: ev.Label, ClassID: ev.ID, Onset: ev.Sample})
	}
	stats.Extracted = len(out)

	return out, stats
}

// collapse applies the duplicate policy to events at identical samples.
func collapse(events []Event, policy DuplicatePolicy) (unique []Event, duplicates, conflicts int) {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b Event) int { return a.Sample - b.Sample })

	unique = make([]Event, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Sample == sorted[i].Sample {
			j++
		}
		group := sorted[i:j]
		i = j

		if len(group) == 1 {
			unique = append(unique, group[0])
			continue
		}

		if policy == DuplicatesMerge && !sameLabel(group) {
			conflicts += len(group)
			continue
		}
		unique = append(unique, group[0])
		duplicates += len(group) - 1
	}
	return unique, duplicates, conflicts
}

func sameLabel(group []Event) bool {
	for _, ev := range group[1:] {
		if ev.Label != group[0].Label {
			return false
		}
	}
	return true
}
