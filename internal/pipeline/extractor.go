// Package pipeline runs epoch extraction for a dataset: it enumerates the
// dataset's subjects, turns each subject's recordings into epoch
// collections and writes them under the output root.
//
// Extraction is destructive by design. Every run deletes the dataset's
// output directory and recreates it, so a re-run never merges with or keeps
// artifacts from an earlier run.
//
// Failures are contained at subject granularity. A subject that cannot be
// read, labeled or written is logged, its output directory is removed and
// the run continues with the next subject.
package pipeline

import (
	"cmp"
	"context"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eegprep/eegprep/internal/datasets"
	"github.com/eegprep/eegprep/internal/epochs"
	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/logger"
	"github.com/eegprep/eegprep/internal/manifest"
	"github.com/eegprep/eegprep/internal/observability/metrics"
	"github.com/eegprep/eegprep/internal/recording"
	"github.com/eegprep/eegprep/internal/store"
)

// Options configures an Extractor.
type Options struct {
	DataRoot   string
	OutputRoot string
	// Workers is the number of subjects processed concurrently. 0 sizes the
	// pool from CPU count and available memory.
	Workers int
	Seed    uint64
	Noise   float64
	// Manifest records the run in <output>/<dataset>.manifest.db.
	Manifest bool
	// Reporter, when set, receives every subject failure.
	Reporter FailureReporter
}

// FailureReporter forwards subject failures to an external error tracker.
type FailureReporter interface {
	CaptureError(err error, dataset, subject string)
}

// Extractor runs one dataset.
type Extractor struct {
	spec     *datasets.Spec
	opts     Options
	log      logger.Logger
	recorder metrics.Recorder
}

// NewExtractor creates an extractor for spec. A nil recorder disables
// metrics.
func NewExtractor(spec *datasets.Spec, opts Options, log logger.Logger, recorder metrics.Recorder) *Extractor {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Extractor{
		spec:     spec,
		opts:     opts,
		log:      log.With(logger.String("dataset", spec.Name)),
		recorder: recorder,
	}
}

// OutputDir returns the directory the extractor owns.
func (e *Extractor) OutputDir() string {
	return filepath.Join(e.opts.OutputRoot, e.spec.Name)
}

// Run extracts every subject of the dataset. The returned error is non-nil
// only when the dataset as a whole could not be processed; subject failures
// are reported in the Report.
func (e *Extractor) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Dataset:   e.spec.Name,
		OutputDir: e.OutputDir(),
		StartedAt: time.Now(),
		Seed:      e.opts.Seed,
	}
	log := e.log.With(logger.String("run_id", report.RunID))

	subjects, skipped, err := e.spec.Subjects(e.opts.DataRoot)
	if err != nil {
		log.Error("no data to preprocess",
			logger.String("path", e.spec.Root(e.opts.DataRoot)),
			logger.String("category", string(errors.CategoryOf(err))),
			logger.Error(err))
		return e.finish(report, err)
	}

	outDir := e.OutputDir()
	log.Warn("removing previous output", logger.String("path", outDir))
	if err := os.RemoveAll(outDir); err != nil {
		return e.finish(report, errors.WriteError(err, outDir))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return e.finish(report, errors.WriteError(err, outDir))
	}

	for _, s := range skipped {
		log.Info("subject excluded", logger.String("subject", s.ID))
		e.recorder.RecordSubject(e.spec.Name, metrics.StatusExcluded)
		report.Subjects = append(report.Subjects, SubjectReport{Subject: s.ID, Status: StatusExcluded})
	}

	report.Workers = workerCount(e.opts.Workers, len(subjects))
	log.Info("extraction started",
		logger.Int("subjects", len(subjects)),
		logger.Int("excluded", len(skipped)),
		logger.Int("workers", report.Workers))

	results := make([]SubjectReport, len(subjects))
	var g errgroup.Group
	g.SetLimit(report.Workers)
	for i, subject := range subjects {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = e.cancelled(subject, err)
				return nil
			}
			results[i] = e.processSubject(ctx, subject, log)
			return nil
		})
	}
	_ = g.Wait()

	report.Subjects = append(report.Subjects, results...)
	slices.SortStableFunc(report.Subjects, func(a, b SubjectReport) int {
		return cmp.Compare(a.Subject, b.Subject)
	})

	var runErr error
	if err := ctx.Err(); err != nil {
		runErr = errors.New(err).
			Category(errors.CategoryCancellation).
			Context("dataset", e.spec.Name).
			Build()
	}
	return e.finish(report, runErr)
}

func (e *Extractor) finish(report *Report, err error) (*Report, error) {
	report.FinishedAt = time.Now()
	report.Err = err

	// failed before the output directory was taken over
	if err != nil && report.Workers == 0 {
		return report, err
	}

	if e.opts.Manifest {
		e.recordManifest(report)
	}

	e.log.Info("extraction finished",
		logger.String("run_id", report.RunID),
		logger.Int("succeeded", report.Succeeded()),
		logger.Int("failed", report.Failed()),
		logger.Int("excluded", report.Excluded()),
		logger.String("epochs", humanize.Comma(int64(report.Epochs()))),
		logger.String("size", humanize.Bytes(uint64(report.Bytes()))),
		logger.Duration("elapsed", report.Duration()))
	return report, err
}

func (e *Extractor) recordManifest(report *Report) {
	path := manifest.Path(e.opts.OutputRoot, e.spec.Name)
	m, err := manifest.Open(path, e.log.Module("manifest"))
	if err != nil {
		e.log.Warn("manifest unavailable", logger.Error(err))
		return
	}
	defer func() {
		if err := m.Close(); err != nil {
			e.log.Warn("failed to close manifest", logger.Error(err))
		}
	}()
	if err := m.Record(report.manifestRun()); err != nil {
		e.log.Warn("failed to record run", logger.Error(err))
	}
}

func (e *Extractor) cancelled(subject datasets.Subject, err error) SubjectReport {
	e.recorder.RecordSubject(e.spec.Name, metrics.StatusFailed)
	return SubjectReport{
		Subject:  subject.ID,
		Status:   StatusFailed,
		Err:      err,
		Category: errors.CategoryCancellation,
	}
}

// processSubject writes every artifact of one subject. Any error removes the
// subject's output directory.
func (e *Extractor) processSubject(ctx context.Context, subject datasets.Subject, runLog logger.Logger) SubjectReport {
	start := time.Now()
	log := runLog.With(logger.String("subject", subject.ID))
	rep := SubjectReport{Subject: subject.ID}
	subjectDir := filepath.Join(e.OutputDir(), subject.ID)

	log.Info("reading data", logger.String("path", subject.Dir))
	err := e.writeArtifacts(ctx, subject, subjectDir, &rep, log)
	rep.Duration = time.Since(start)
	e.recorder.RecordSubjectDuration(e.spec.Name, rep.Duration)

	if err != nil {
		if rmErr := os.RemoveAll(subjectDir); rmErr != nil {
			log.Warn("failed to remove subject output", logger.String("path", subjectDir), logger.Error(rmErr))
		}
		rep.Status = StatusFailed
		rep.Err = err
		rep.Category = errors.CategoryOf(err)
		rep.Artifacts = nil
		e.recorder.RecordSubject(e.spec.Name, metrics.StatusFailed)
		e.recorder.RecordError(e.spec.Name, string(rep.Category))
		if e.opts.Reporter != nil {
			e.opts.Reporter.CaptureError(err, e.spec.Name, subject.ID)
		}
		log.Error("subject skipped",
			logger.String("category", string(rep.Category)),
			logger.Error(err))
		return rep
	}

	rep.Status = StatusSuccess
	e.recorder.RecordSubject(e.spec.Name, metrics.StatusSuccess)
	e.recorder.RecordDroppedWindows(e.spec.Name, metrics.ReasonOutOfBounds, rep.Stats.OutOfBounds)
	e.recorder.RecordDroppedWindows(e.spec.Name, metrics.ReasonDuplicate, rep.Stats.Duplicates)
	e.recorder.RecordDroppedWindows(e.spec.Name, metrics.ReasonConflict, rep.Stats.Conflicts)
	e.recorder.RecordDroppedWindows(e.spec.Name, metrics.ReasonUnresolved, rep.Unresolved)
	for _, a := range rep.Artifacts {
		for label, n := range a.Labels {
			e.recorder.RecordEpochs(e.spec.Name, string(label), n)
		}
	}
	log.Info("subject saved",
		logger.Int("epochs", rep.Epochs()),
		logger.Int("dropped", rep.Stats.Dropped()),
		logger.String("size", humanize.Bytes(uint64(rep.Bytes()))),
		logger.Duration("elapsed", rep.Duration))
	return rep
}

func (e *Extractor) writeArtifacts(ctx context.Context, subject datasets.Subject, subjectDir string, rep *SubjectReport, log logger.Logger) error {
	artifacts, err := e.spec.Plan(subject)
	if err != nil {
		return err
	}

	// runs shared between artifacts are read once
	recordings := make(map[string]*recording.Recording)
	for _, art := range artifacts {
		coll, stats, unresolved, err := e.buildArtifact(ctx, subject, art, recordings, log)
		if err != nil {
			return err
		}
		rep.Stats.Add(stats)
		rep.Unresolved += unresolved

		if e.spec.Normalize {
			src := epochs.NewNormalSource(e.opts.Seed, epochs.StreamID(e.spec.Name, subject.ID, art.Name))
			epochs.Normalize(coll, src, e.opts.Noise)
		}
		if coll.Len() == 0 {
			log.Warn("artifact has no epochs", logger.String("artifact", art.Name))
		}

		path := filepath.Join(subjectDir, art.Name)
		n, err := store.Write(path, coll)
		if err != nil {
			return err
		}
		e.recorder.RecordArtifact(e.spec.Name, n)

		rep.Artifacts = append(rep.Artifacts, ArtifactReport{
			Name:   art.Name,
			Path:   path,
			Trials: coll.Len(),
			Bytes:  n,
			Labels: coll.LabelCounts(),
		})
		log.Debug("artifact written",
			logger.String("path", path),
			logger.Int("epochs", coll.Len()),
			logger.String("size", humanize.Bytes(uint64(n))))
	}
	return nil
}

// buildArtifact reads, labels and windows every run of an artifact and
// appends the results in run order.
func (e *Extractor) buildArtifact(ctx context.Context, subject datasets.Subject, art datasets.Artifact, cache map[string]*recording.Recording, log logger.Logger) (*epochs.Collection, epochs.WindowStats, int, error) {
	var (
		coll       *epochs.Collection
		total      epochs.WindowStats
		unresolved int
	)

	for _, path := range art.Runs {
		if err := ctx.Err(); err != nil {
			return nil, total, unresolved, errors.New(err).Category(errors.CategoryCancellation).Build()
		}

		rec, ok := cache[path]
		if !ok {
			var err error
			rec, err = recording.Read(path, recording.ReadOptions{Format: e.spec.Format, EOG: e.spec.EOG})
			if err != nil {
				return nil, total, unresolved, errors.New(err).
					SubjectContext(e.spec.Name, subject.ID).
					Build()
			}
			cache[path] = rec
		}

		table, err := epochs.NewEventTable(rec.Annotations)
		if err != nil {
			return nil, total, unresolved, errors.New(err).
				SubjectContext(e.spec.Name, subject.ID).
				Context("path", path).
				Build()
		}
		runLog := log.With(logger.String("run", filepath.Base(path)))
		runLog.Info("event ids", logger.String("event_table", table.String()))

		labels, err := e.spec.Labels.Resolve(table, runLog)
		if err != nil {
			return nil, total, unresolved, errors.New(err).
				Category(errors.CategoryLabelResolution).
				SubjectContext(e.spec.Name, subject.ID).
				Build()
		}
		events, dropped := epochs.ResolveEvents(rec.Annotations, table, labels)
		unresolved += dropped

		picks := recording.SelectChannels(rec.Channels, e.spec.Bads)
		names := make([]string, len(picks))
		for i, p := range picks {
			names[i] = rec.Channels[p].Name
		}

		extracted, stats := epochs.Extract(rec, events, picks, art.Window, e.spec.Duplicates)
		total.Add(stats)
		if stats.Dropped() > 0 {
			runLog.Debug("windows dropped",
				logger.Int("out_of_bounds", stats.OutOfBounds),
				logger.Int("duplicates", stats.Duplicates),
				logger.Int("conflicts", stats.Conflicts))
		}

		run := epochs.NewCollection(e.spec.Name, subject.ID, art.Name, rec.SampleRate, art.Window, names)
		if err := run.AddEpochs(extracted, labels.IDs()); err != nil {
			return nil, total, unresolved, errors.New(err).
				Category(errors.CategoryValidation).
				SubjectContext(e.spec.Name, subject.ID).
				Build()
		}

		if coll == nil {
			coll = run
			continue
		}
		if err := coll.Append(run); err != nil {
			return nil, total, unresolved, errors.New(err).
				Category(errors.CategoryValidation).
				SubjectContext(e.spec.Name, subject.ID).
				Context("path", path).
				Build()
		}
	}

	if coll == nil {
		return nil, total, unresolved, errors.Newf("artifact %s has no runs", art.Name).
			Category(errors.CategoryValidation).
			Build()
	}
	return coll, total, unresolved, nil
}

// RunAll runs each dataset in order. A failed dataset is logged and does not
// stop the remaining ones; the returned error joins all dataset failures.
func RunAll(ctx context.Context, specs []*datasets.Spec, opts Options, log logger.Logger, recorder metrics.Recorder) ([]*Report, error) {
	reports := make([]*Report, 0, len(specs))
	var errs []error
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := NewExtractor(spec, opts, log, recorder).Run(ctx)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}
