// Package manifest records extraction runs in a SQLite database kept beside
// each dataset's output directory. The file outlives the directory, which
// every run recreates, so it accumulates the history of all runs.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/logger"
)

// Suffix follows the dataset name in the manifest's file name.
const Suffix = ".manifest.db"

// Path returns the manifest of dataset under outputRoot,
// <outputRoot>/<dataset>.manifest.db.
func Path(outputRoot, dataset string) string {
	return filepath.Join(outputRoot, dataset+Suffix)
}

const slowQueryThreshold = 200 * time.Millisecond

// Run is one extraction of one dataset.
type Run struct {
	ID         string `gorm:"primaryKey;size:36"`
	Dataset    string `gorm:"index;size:64"`
	StartedAt  time.Time
	FinishedAt time.Time
	Workers    int
	Seed       int64 // seeds above math.MaxInt64 wrap
	Subjects   int
	Succeeded  int
	Failed     int
	Excluded   int
	Epochs     int
	Bytes      int64
	Results    []SubjectResult `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// SubjectResult is the outcome of one subject within a Run.
type SubjectResult struct {
	ID            uint   `gorm:"primaryKey"`
	RunID         string `gorm:"index;size:36"`
	Subject       string `gorm:"size:32"`
	Status        string `gorm:"size:16"`
	Artifacts     string // comma separated file names
	Epochs        int
	Dropped       int
	Bytes         int64
	ErrorCategory string `gorm:"size:32"`
	Error         string
	DurationMs    int64
}

// Store is an open manifest database.
type Store struct {
	db   *gorm.DB
	path string
	log  logger.Logger
}

// Open opens or creates the manifest at path and migrates its schema.
func Open(path string, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=ON", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.NewGormAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open manifest: %w", err)).
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	if err := db.AutoMigrate(&Run{}, &SubjectResult{}); err != nil {
		s := &Store{db: db, path: path, log: log}
		_ = s.Close()
		return nil, errors.New(fmt.Errorf("failed to migrate manifest schema: %w", err)).
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	return &Store{db: db, path: path, log: log}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record stores a run and its subject results in one transaction.
func (s *Store) Record(run *Run) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
	if err != nil {
		return errors.New(fmt.Errorf("failed to record run %s: %w", run.ID, err)).
			Category(errors.CategoryDatabase).
			Context("run_id", run.ID).
			Build()
	}
	s.log.Debug("run recorded",
		logger.String("run_id", run.ID),
		logger.Int("subjects", len(run.Results)))
	return nil
}

// Runs returns every recorded run, oldest first, with its results.
func (s *Store) Runs() ([]Run, error) {
	var runs []Run
	err := s.db.
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("subject_results.id") }).
		Order("started_at").
		Find(&runs).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to list runs: %w", err)).
			Category(errors.CategoryDatabase).
			Build()
	}
	return runs, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
