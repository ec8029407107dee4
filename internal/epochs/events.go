// Package epochs turns an annotated continuous recording into fixed-length,
// labeled trials.
//
// The flow for one recording is:
//
//	table, err := epochs.NewEventTable(rec.Annotations)
//	labels, err := policy.Resolve(table, log)
//	events, unresolved := epochs.ResolveEvents(rec.Annotations, table, labels)
//	trials, stats := epochs.Extract(rec, events, picks, window, duplicates)
//
// Class ids follow the recording's own code table: each distinct annotation
// code, sorted as a string, is numbered from 1. Those ids are what the epoch
// store writes as integer labels.
package epochs

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/logger"
	"github.com/eegprep/eegprep/internal/recording"
)

// Label is a canonical class label.
type Label string

const (
	LeftHand  Label = "left_hand"
	RightHand Label = "right_hand"
	Rest      Label = "rest"
	// None marks codes that are known but never produce an epoch.
	None Label = "none"
	// Unresolved is carried by events whose code has no label.
	Unresolved Label = "unresolved"
)

// EventTable is the code table a recording reports: every distinct
// annotation code numbered from 1 in string order.
type EventTable struct {
	codes []string
	ids   map[string]int
}

// NewEventTable builds the table for a recording's annotations. A recording
// without annotations cannot be labeled.
func NewEventTable(annotations []recording.Annotation) (*EventTable, error) {
	if len(annotations) == 0 {
		return nil, errors.LabelResolution(errors.NewStd("recording has no annotations"))
	}

	seen := make(map[string]struct{}, 16)
	for _, a := range annotations {
		seen[a.Code] = struct{}{}
	}
	codes := slices.Sorted(maps.Keys(seen))

	ids := make(map[string]int, len(codes))
	for i, code := range codes {
		ids[code] = i + 1
	}
	return &EventTable{codes: codes, ids: ids}, nil
}

// ID returns the id the table assigns to code.
func (t *EventTable) ID(code string) (int, bool) {
	id, ok := t.ids[code]
	return id, ok
}

// Codes returns the codes in id order.
func (t *EventTable) Codes() []string {
	return slices.Clone(t.codes)
}

// Map returns the table as code -> id.
func (t *EventTable) Map() map[string]int {
	return maps.Clone(t.ids)
}

func (t *EventTable) String() string {
	parts := make([]string, len(t.codes))
	for i, code := range t.codes {
		parts[i] = fmt.Sprintf("%s:%d", code, i+1)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// LabelMap maps class ids to canonical labels for one recording. It is
// immutable once built.
type LabelMap struct {
	byID map[int]Label
}

// NewLabelMap copies m into a LabelMap. Entries labeled None are dropped.
func NewLabelMap(m map[int]Label) LabelMap {
	byID := make(map[int]Label, len(m))
	for id, label := range m {
		if label == None || label == Unresolved {
			continue
		}
		byID[id] = label
	}
	return LabelMap{byID: byID}
}

// Label returns the label of a class id.
func (m LabelMap) Label(id int) (Label, bool) {
	label, ok := m.byID[id]
	return label, ok
}

// IDs returns the map inverted as label -> class id.
func (m LabelMap) IDs() map[Label]int {
	out := make(map[Label]int, len(m.byID))
	for id, label := range m.byID {
		out[label] = id
	}
	return out
}

// Len returns the number of labeled class ids.
func (m LabelMap) Len() int {
	return len(m.byID)
}

// LabelPolicy chooses the LabelMap for one recording from its code table.
type LabelPolicy interface {
	Resolve(table *EventTable, log logger.Logger) (LabelMap, error)
}

// StaticLabels maps annotation codes to labels; a label's class id is the id
// the recording's table gives its code.
type StaticLabels map[string]Label

// Resolve implements LabelPolicy.
func (s StaticLabels) Resolve(table *EventTable, log logger.Logger) (LabelMap, error) {
	byID := make(map[int]Label, len(s))
	var missing []string
	for _, code := range slices.Sorted(maps.Keys(s)) {
		label := s[code]
		if label == None {
			continue
		}
		id, ok := table.ID(code)
		if !ok {
			missing = append(missing, code)
			continue
		}
		byID[id] = label
	}

	if len(missing) > 0 {
		log.Warn("labeled codes absent from recording",
			logger.Strings("codes", missing),
			logger.String("event_table", table.String()))
	}
	return NewLabelMap(byID), nil
}

// ReportedCodeFallback handles recordings whose code table does not number
// the cue codes consistently. If the table reports exactly Expected for the
// Left and Right codes those ids are used, otherwise the Fallback ids are
// assumed. The rule is empirical and must be kept as is.
type ReportedCodeFallback struct {
	Left, Right string
	Expected    [2]int
	Fallback    [2]int
}

// Resolve implements LabelPolicy.
func (p ReportedCodeFallback) Resolve(table *EventTable, log logger.Logger) (LabelMap, error) {
	leftID, _ := table.ID(p.Left)
	rightID, _ := table.ID(p.Right)

	if leftID == p.Expected[0] && rightID == p.Expected[1] {
		log.Info("reported cue codes match expected ids",
			logger.Int("left_hand", p.Expected[0]),
			logger.Int("right_hand", p.Expected[1]))
		return NewLabelMap(map[int]Label{p.Expected[0]: LeftHand, p.Expected[1]: RightHand}), nil
	}

	log.Warn("reported cue codes differ from expected ids, using fallback ids",
		logger.Int("reported_left", leftID),
		logger.Int("reported_right", rightID),
		logger.Int("left_hand", p.Fallback[0]),
		logger.Int("right_hand", p.Fallback[1]),
		logger.String("event_table", table.String()))
	return NewLabelMap(map[int]Label{p.Fallback[0]: LeftHand, p.Fallback[1]: RightHand}), nil
}

// Event is an annotation resolved against a LabelMap.
type Event struct {
	Sample int
	Code   string
	ID     int
	Label  Label
}

// ResolveEvents labels annotations. Annotations whose class id has no label
// are dropped and counted.
func ResolveEvents(annotations []recording.Annotation, table *EventTable, labels LabelMap) ([]Event, int) {
	events := make([]Event, 0, len(annotations))
	dropped := 0
	for _, a := range annotations {
		id, ok := table.ID(a.Code)
		if !ok {
			dropped++
			continue
		}
		label, ok := labels.Label(id)
		if !ok {
			dropped++
			continue
		}
		events = append(events, Event{Sample: a.Sample, Code: a.Code, ID: id, Label: label})
	}
	return events, dropped
}
