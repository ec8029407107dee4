// Package metrics provides constants used across metric definitions.
package metrics

// Subject outcome labels.
const (
	// StatusSuccess marks a subject whose artifacts were all written.
	StatusSuccess = "success"
	// StatusFailed marks a subject that was skipped after an error.
	StatusFailed = "failed"
	// StatusExcluded marks a subject on the dataset's exclusion list.
	StatusExcluded = "excluded"
)

// Dropped window reasons.
const (
	ReasonOutOfBounds = "out_of_bounds"
	ReasonDuplicate   = "duplicate"
	ReasonConflict    = "conflict"
	ReasonUnresolved  = "unresolved"
)

// Histogram bucket constants.
const (
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart1KB is the starting bucket for 1KB histograms (1KB to ~1GB range).
	BucketStart1KB = 1024.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor4 is the exponential growth factor for byte sizes.
	BucketFactor4 = 4

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)
