// Package observability owns the Prometheus registry of an extraction run
// and its export to a node-exporter textfile.
package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eegprep/eegprep/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry   *prometheus.Registry
	Extraction *metrics.ExtractionMetrics
}

// NewMetrics creates a new instance of Metrics with a private registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	extractionMetrics, err := metrics.NewExtractionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		Extraction: extractionMetrics,
	}, nil
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the text exposition format to path,
// for collection by the node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
