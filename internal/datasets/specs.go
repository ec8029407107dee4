package datasets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eegprep/eegprep/internal/epochs"
	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/recording"
)

// Cue codes shared by the Graz BCI competition recordings.
//
//	276    idling, eyes open
//	277    idling, eyes closed
//	768    start of a trial
//	769    cue onset left (class 1)
//	770    cue onset right (class 2)
//	771    cue onset foot (class 3)
//	772    cue onset tongue (class 4)
//	781    BCI feedback (continuous)
//	783    cue unknown
//	1023   rejected trial
//	1072   eye movements
//	32766  start of a new run
const (
	CodeCueLeft       = "769"
	CodeCueRight      = "770"
	CodeRejectedTrial = "1023"
)

// BCI2a is BCI Competition IV dataset 2a: 22 EEG and 3 EOG channels at
// 250 Hz, one training session per subject.
func BCI2a() *Spec {
	return &Spec{
		Key:        "bci2a",
		Name:       "BCI_IV_2a",
		Format:     recording.FormatGDF,
		EOG:        []string{"EOG-left", "EOG-central", "EOG-right"},
		Labels:     epochs.StaticLabels{CodeCueLeft: epochs.LeftHand, CodeCueRight: epochs.RightHand},
		Duplicates: epochs.DuplicatesFirst,
		Planner: func(s Subject) ([]Artifact, error) {
			return []Artifact{{
				Name:   "PA" + s.Code + "T.epo",
				Runs:   []string{filepath.Join(s.Dir, "A"+s.Code+"T.gdf")},
				Window: epochs.Window{TMin: 1.0, TMax: 4.0},
			}}, nil
		},
	}
}

// BCI2b is BCI Competition IV dataset 2b: 3 bipolar EEG and 3 EOG channels
// at 250 Hz. The first two training sessions of each subject are extracted
// into separate artifacts.
//
// The code table of these recordings varies between sessions, so the class
// ids of the cues are chosen by ReportedCodeFallback.
func BCI2b() *Spec {
	return &Spec{
		Key:    "bci2b",
		Name:   "BCI_IV_2b",
		Format: recording.FormatGDF,
		EOG:    []string{"EOG:ch01", "EOG:ch02", "EOG:ch03"},
		Labels: epochs.ReportedCodeFallback{
			Left:     CodeCueLeft,
			Right:    CodeCueRight,
			Expected: [2]int{10, 11},
			Fallback: [2]int{4, 5},
		},
		Duplicates: epochs.DuplicatesFirst,
		Planner:    planBCI2b,
	}
}

const bci2bSessions = 2

func planBCI2b(s Subject) ([]Artifact, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, errors.ReadError(err, s.Dir)
	}

	var training []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "T.gdf") {
			training = append(training, e.Name())
		}
	}
	if len(training) == 0 {
		return nil, errors.MissingInput(fmt.Errorf("no training sessions in %s", s.Dir), s.Dir)
	}
	if len(training) > bci2bSessions {
		training = training[:bci2bSessions]
	}

	artifacts := make([]Artifact, len(training))
	for i, name := range training {
		artifacts[i] = Artifact{
			Name:   fmt.Sprintf("PB%s%02dT.epo", s.Code, i+1),
			Runs:   []string{filepath.Join(s.Dir, name)},
			Window: epochs.Window{TMin: -0.2, TMax: 0.5},
		}
	}
	return artifacts, nil
}

// BCI3a is BCI Competition III dataset 3a: 60 EEG channels at 250 Hz. Its
// recordings repeat cue events at the same sample, which are merged.
func BCI3a() *Spec {
	return &Spec{
		Key:    "bci3a",
		Name:   "BCI_III_3a",
		Format: recording.FormatGDF,
		Labels: epochs.StaticLabels{
			CodeCueLeft:       epochs.LeftHand,
			CodeCueRight:      epochs.RightHand,
			CodeRejectedTrial: epochs.None,
		},
		Duplicates: epochs.DuplicatesMerge,
		Planner: func(s Subject) ([]Artifact, error) {
			return []Artifact{{
				Name:   s.Code + ".epo",
				Runs:   []string{filepath.Join(s.Dir, s.Code+".gdf")},
				Window: epochs.Window{TMin: 0.0, TMax: 7.0},
			}}, nil
		},
	}
}

// Physionet motor imagery runs, in which T1 and T2 cue imagined movement of
// the left and right fist and T0 is rest.
var physionetRuns = []string{"R04", "R08", "R12"}

// Physionet is the EEG Motor Movement/Imagery dataset: 64 EEG channels at
// 160 Hz. Runs 4, 8 and 12 are concatenated into a short and a long window
// artifact, both normalized.
func Physionet() *Spec {
	return &Spec{
		Key:    "physionet",
		Name:   "Physionet",
		Format: recording.FormatEDF,
		Labels: epochs.StaticLabels{
			"T0": epochs.Rest,
			"T1": epochs.LeftHand,
			"T2": epochs.RightHand,
		},
		Duplicates: epochs.DuplicatesFirst,
		Normalize:  true,
		BinaryZero: epochs.LeftHand,
		// incomplete annotations
		SkipSubjects: []int{88, 92, 100, 104},
		Planner:      planPhysionet,
	}
}

func planPhysionet(s Subject) ([]Artifact, error) {
	runs := make([]string, len(physionetRuns))
	for i, r := range physionetRuns {
		runs[i] = filepath.Join(s.Dir, fmt.Sprintf("S%s%s.edf", s.Code, r))
	}
	return []Artifact{
		{Name: fmt.Sprintf("PA%s-3s.epo", s.Code), Runs: runs, Window: epochs.Window{TMin: 1.0, TMax: 4.0}},
		{Name: fmt.Sprintf("PA%s-6s.epo", s.Code), Runs: runs, Window: epochs.Window{TMin: 0.0, TMax: 6.0}},
	}, nil
}
