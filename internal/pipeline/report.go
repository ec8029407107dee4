package pipeline

import (
	"strings"
	"time"

	"github.com/eegprep/eegprep/internal/epochs"
	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/manifest"
)

// SubjectStatus is the outcome of one subject.
type SubjectStatus string

const (
	StatusSuccess  SubjectStatus = "success"
	StatusFailed   SubjectStatus = "failed"
	StatusExcluded SubjectStatus = "excluded"
)

// ArtifactReport describes one written artifact.
type ArtifactReport struct {
	Name   string
	Path   string
	Trials int
	Bytes  int64
	Labels map[epochs.Label]int
}

// SubjectReport describes what happened to one subject.
type SubjectReport struct {
	Subject    string
	Status     SubjectStatus
	Artifacts  []ArtifactReport
	Stats      epochs.WindowStats
	Unresolved int // annotations without a label
	Err        error
	Category   errors.ErrorCategory
	Duration   time.Duration
}

// Epochs returns the number of epochs written for the subject.
func (s *SubjectReport) Epochs() int {
	n := 0
	for _, a := range s.Artifacts {
		n += a.Trials
	}
	return n
}

// Bytes returns the size of the subject's artifacts.
func (s *SubjectReport) Bytes() int64 {
	var n int64
	for _, a := range s.Artifacts {
		n += a.Bytes
	}
	return n
}

// Report is the result of one Extractor.Run.
type Report struct {
	RunID      string
	Dataset    string
	OutputDir  string
	StartedAt  time.Time
	FinishedAt time.Time
	Workers    int
	Seed       uint64
	Subjects   []SubjectReport
	// Err is set when the dataset as a whole could not be processed.
	Err error
}

func (r *Report) count(status SubjectStatus) int {
	n := 0
	for i := range r.Subjects {
		if r.Subjects[i].Status == status {
			n++
		}
	}
	return n
}

// Succeeded returns the number of subjects whose artifacts were written.
func (r *Report) Succeeded() int { return r.count(StatusSuccess) }

// Failed returns the number of subjects skipped after an error.
func (r *Report) Failed() int { return r.count(StatusFailed) }

// Excluded returns the number of subjects on the exclusion list.
func (r *Report) Excluded() int { return r.count(StatusExcluded) }

// Epochs returns the number of epochs written in the run.
func (r *Report) Epochs() int {
	n := 0
	for i := range r.Subjects {
		n += r.Subjects[i].Epochs()
	}
	return n
}

// Bytes returns the number of artifact bytes written in the run.
func (r *Report) Bytes() int64 {
	var n int64
	for i := range r.Subjects {
		n += r.Subjects[i].Bytes()
	}
	return n
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// manifestRun converts the report into its manifest record.
func (r *Report) manifestRun() *manifest.Run {
	run := &manifest.Run{
		ID:         r.RunID,
		Dataset:    r.Dataset,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Workers:    r.Workers,
		Seed:       int64(r.Seed),
		Subjects:   len(r.Subjects),
		Succeeded:  r.Succeeded(),
		Failed:     r.Failed(),
		Excluded:   r.Excluded(),
		Epochs:     r.Epochs(),
		Bytes:      r.Bytes(),
		Results:    make([]manifest.SubjectResult, 0, len(r.Subjects)),
	}
	for i := range r.Subjects {
		s := &r.Subjects[i]
		names := make([]string, len(s.Artifacts))
		for j, a := range s.Artifacts {
			names[j] = a.Name
		}
		res := manifest.SubjectResult{
			Subject:       s.Subject,
			Status:        string(s.Status),
			Artifacts:     strings.Join(names, ","),
			Epochs:        s.Epochs(),
			Dropped:       s.Stats.Dropped(),
			Bytes:         s.Bytes(),
			ErrorCategory: string(s.Category),
			DurationMs:    s.Duration.Milliseconds(),
		}
		if s.Err != nil {
			res.Error = s.Err.Error()
		}
		run.Results = append(run.Results, res)
	}
	return run
}
