// Package errors provides a lightweight structured error type (SitepackError)
// for category-based classification in the CLI.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a sitepack error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryNetwork ErrorCategory = "network"
	CategoryGit     ErrorCategory = "git"

	// Build and processing errors
	CategoryBuild      ErrorCategory = "build"
	CategoryFilter     ErrorCategory = "filter"
	CategoryTemplate   ErrorCategory = "template"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// SitepackError is a structured error with category and context
type SitepackError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for SitepackError
type ContextFields map[string]any

func (e *SitepackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

func (e *SitepackError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *SitepackError) WithContext(key string, value any) *SitepackError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new SitepackError
func New(category ErrorCategory, severity ErrorSeverity, message string) *SitepackError {
	return &SitepackError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new SitepackError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *SitepackError {
	return &SitepackError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// As finds the outermost SitepackError in err's chain.
func As(err error) (*SitepackError, bool) {
	var se *SitepackError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCategory checks if an error chain carries a specific category
func IsCategory(err error, category ErrorCategory) bool {
	se, ok := As(err)
	return ok && se.Category == category
}

// GetCategory extracts the category from an error chain. Errors that point at
// manifest misconfiguration (anything implementing IsConfigError() bool and
// returning true) classify as CategoryConfig; unclassified errors are
// CategoryInternal.
func GetCategory(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var cfg interface{ IsConfigError() bool }
	if stdErrors.As(err, &cfg) && cfg.IsConfigError() {
		return CategoryConfig
	}
	if se, ok := As(err); ok {
		return se.Category
	}
	return CategoryInternal
}
