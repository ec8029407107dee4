// Package metrics provides Prometheus metrics for epoch extraction runs.
package metrics

import "time"

// Recorder is what the extraction pipeline reports to. ExtractionMetrics
// implements it; tests may substitute their own.
type Recorder interface {
	// RecordSubject counts a finished subject by outcome (see Status*).
	RecordSubject(dataset, status string)
	// RecordSubjectDuration observes the wall time spent on one subject.
	RecordSubjectDuration(dataset string, d time.Duration)
	// RecordEpochs adds n written epochs of one label.
	RecordEpochs(dataset, label string, n int)
	// RecordDroppedWindows adds n events that produced no epoch (see Reason*).
	RecordDroppedWindows(dataset, reason string, n int)
	// RecordArtifact observes one written artifact.
	RecordArtifact(dataset string, bytes int64)
	// RecordError counts a subject failure by error category.
	RecordError(dataset, category string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordSubject(string, string)               {}
func (NopRecorder) RecordSubjectDuration(string, time.Duration) {}
func (NopRecorder) RecordEpochs(string, string, int)            {}
func (NopRecorder) RecordDroppedWindows(string, string, int)    {}
func (NopRecorder) RecordArtifact(string, int64)                {}
func (NopRecorder) RecordError(string, string)                  {}
