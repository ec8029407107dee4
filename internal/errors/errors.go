// Package errors provides categorized errors for the extraction pipeline.
//
// Every failure that crosses a package boundary is an *EnhancedError carrying
// a category. The pipeline decides skip-and-continue behaviour from the
// category alone, so callers should always build errors through New/Newf or
// one of the kind helpers (MissingInput, ReadError, LabelResolution,
// WriteError) rather than returning bare fmt errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"time"
)

// ErrorCategory represents different types of errors for grouping and
// subject-level failure accounting.
type ErrorCategory string

// CategorizedError is implemented by errors that expose a category.
type CategorizedError interface {
	error
	GetCategory() string
}

const (
	CategoryMissingInput    ErrorCategory = "missing-input"    // dataset root or subject file absent
	CategoryRead            ErrorCategory = "read"             // corrupt or unreadable recording
	CategoryLabelResolution ErrorCategory = "label-resolution" // no usable annotation table
	CategoryWrite           ErrorCategory = "write"            // persisting an epoch collection failed
	CategoryValidation      ErrorCategory = "validation"
	CategoryConfiguration   ErrorCategory = "configuration"
	CategoryDatabase        ErrorCategory = "database"
	CategoryCancellation    ErrorCategory = "cancellation"
	CategoryGeneric         ErrorCategory = "generic"
)

// ComponentUnknown is used when no component was set on the builder.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	component string         // Component where error occurred
	Category  ErrorCategory  // Error category for grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	if ee.Err == nil {
		return string(ee.Category)
	}
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, otherwise defers to the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name
func (ee *EnhancedError) GetComponent() string {
	return ee.component
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetTimestamp returns when the error occurred
func (ee *EnhancedError) GetTimestamp() time.Time {
	return ee.Timestamp
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error with enhanced context
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// FileContext records the file name and extension of the recording or
// artifact involved.
func (eb *ErrorBuilder) FileContext(filePath string, fileSize int64) *ErrorBuilder {
	if filePath != "" {
		eb.Context("file_name", filepath.Base(filePath))
		eb.Context("file_extension", strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), ".")))
	}
	if fileSize > 0 {
		eb.Context("file_size", fileSize)
	}
	return eb
}

// SubjectContext records the dataset and subject an error belongs to.
func (eb *ErrorBuilder) SubjectContext(dataset, subject string) *ErrorBuilder {
	if dataset != "" {
		eb.Context("dataset", dataset)
	}
	if subject != "" {
		eb.Context("subject", subject)
	}
	return eb
}

// Build creates the EnhancedError
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.component == "" {
		ee.component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = inheritCategory(eb.err)
	}
	return ee
}

// inheritCategory keeps the category of a wrapped EnhancedError so that
// re-wrapping with more context does not lose the failure kind.
func inheritCategory(err error) ErrorCategory {
	var enhErr *EnhancedError
	if As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}
	return CategoryGeneric
}

// Convenience functions for the pipeline's error kinds

// MissingInput creates an error for an absent dataset root or subject file.
func MissingInput(err error, path string) *EnhancedError {
	return New(err).
		Category(CategoryMissingInput).
		Context("path", path).
		Build()
}

// ReadError creates an error for a corrupt or unreadable recording.
func ReadError(err error, path string) *EnhancedError {
	return New(err).
		Category(CategoryRead).
		FileContext(path, 0).
		Build()
}

// LabelResolution creates an error for a recording without a usable
// annotation table.
func LabelResolution(err error) *EnhancedError {
	return New(err).
		Category(CategoryLabelResolution).
		Build()
}

// WriteError creates an error for a failed artifact write.
func WriteError(err error, path string) *EnhancedError {
	return New(err).
		Category(CategoryWrite).
		FileContext(path, 0).
		Build()
}

// ValidationError creates a validation error
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).
		Category(CategoryValidation).
		Build()
}

// Standard library passthrough functions

// NewStd creates a new standard error (passthrough to standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if an error is an EnhancedError with the specified category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}

// CategoryOf returns the category of the outermost EnhancedError in err's
// tree, or CategoryGeneric.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var enhancedErr *EnhancedError
	if As(err, &enhancedErr) {
		return enhancedErr.Category
	}
	return CategoryGeneric
}
