// Package datasets describes the four motor-imagery corpora the extractor
// knows about: where their raw files live, how their events are labeled and
// which artifacts each subject produces.
package datasets

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/eegprep/eegprep/internal/epochs"
	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/recording"
)

// Subject is one subject directory under a dataset root.
type Subject struct {
	ID     string // directory name, e.g. "S01"
	Code   string // ID without its leading letter, e.g. "01"
	Number int    // numeric value of Code, 0 if it has none
	Dir    string
}

// NewSubject builds a Subject for the directory dir.
func NewSubject(dir string) Subject {
	id := filepath.Base(dir)
	code := id
	if len(id) > 1 {
		code = id[1:]
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		n = 0
	}
	return Subject{ID: id, Code: code, Number: n, Dir: dir}
}

// Artifact is one epoch collection written for a subject. Its runs are read
// and windowed independently and their epochs appended in order.
type Artifact struct {
	Name   string
	Runs   []string
	Window epochs.Window
}

// Planner lists the artifacts of one subject.
type Planner func(subject Subject) ([]Artifact, error)

// Spec is the complete description of a dataset. Adding a dataset means
// adding a Spec, not code.
type Spec struct {
	Key        string // CLI name
	Name       string // directory name under the data and output roots
	Format     recording.Format
	EOG        []string
	Bads       []string
	Labels     epochs.LabelPolicy
	Duplicates epochs.DuplicatePolicy
	Normalize  bool
	// BinaryZero is the label mapped to 0 when trials are reduced to two
	// classes; empty when the dataset is already binary.
	BinaryZero epochs.Label
	// SkipSubjects lists subject numbers excluded from extraction.
	SkipSubjects []int
	Planner      Planner
}

// Plan returns the artifacts of subject.
func (s *Spec) Plan(subject Subject) ([]Artifact, error) {
	artifacts, err := s.Planner(subject)
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		if err := a.Window.Validate(); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryValidation).
				SubjectContext(s.Name, subject.ID).
				Build()
		}
	}
	return artifacts, nil
}

// Root returns the dataset's raw directory under dataRoot.
func (s *Spec) Root(dataRoot string) string {
	return filepath.Join(dataRoot, s.Name)
}

// Skipped reports whether the subject is excluded.
func (s *Spec) Skipped(subject Subject) bool {
	return subject.Number != 0 && slices.Contains(s.SkipSubjects, subject.Number)
}

// Subjects lists the subject directories of the dataset in sorted order and
// separates the excluded ones. A missing dataset root is a MissingInput
// error.
func (s *Spec) Subjects(dataRoot string) (subjects, skipped []Subject, err error) {
	root := s.Root(dataRoot)
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, errors.MissingInput(err, root)
		}
		return nil, nil, errors.ReadError(err, root)
	}

	// ReadDir sorts by name
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		subject := NewSubject(filepath.Join(root, e.Name()))
		if s.Skipped(subject) {
			skipped = append(skipped, subject)
			continue
		}
		subjects = append(subjects, subject)
	}
	return subjects, skipped, nil
}

var registry = []*Spec{BCI2a(), BCI2b(), BCI3a(), Physionet()}

// All returns every known dataset in extraction order.
func All() []*Spec {
	return slices.Clone(registry)
}

// Keys returns the CLI names of all datasets.
func Keys() []string {
	keys := make([]string, len(registry))
	for i, s := range registry {
		keys[i] = s.Key
	}
	return keys
}

// Lookup finds a dataset by key or directory name, ignoring case.
func Lookup(name string) (*Spec, error) {
	for _, s := range registry {
		if strings.EqualFold(name, s.Key) || strings.EqualFold(name, s.Name) {
			return s, nil
		}
	}
	return nil, errors.Newf("unknown dataset %q, expected one of %s", name, strings.Join(Keys(), ", ")).
		Category(errors.CategoryValidation).
		Build()
}

// String implements fmt.Stringer.
func (s *Spec) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Key)
}
