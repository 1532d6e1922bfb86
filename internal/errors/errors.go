package errors

import (
	"errors"
	"fmt"
)

// GeoError is the structured error type for GEOSearch.
// It provides rich context for error handling, logging, and user presentation.
type GeoError struct {
	// Code is the unique error code (e.g., "ERR_407_INVALID_FILTER").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *GeoError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GeoError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with GeoError.
func (e *GeoError) Is(target error) bool {
	if t, ok := target.(*GeoError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *GeoError) WithDetail(key, value string) *GeoError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *GeoError) WithSuggestion(suggestion string) *GeoError {
	e.Suggestion = suggestion
	return e
}

// New creates a new GeoError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *GeoError {
	return &GeoError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a GeoError from an existing error.
// The error's message becomes the GeoError message.
func Wrap(code string, err error) *GeoError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *GeoError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *GeoError {
	return New(ErrCodeFileNotFound, message, cause)
}

// DatabaseError creates a storage-related error.
func DatabaseError(message string, cause error) *GeoError {
	return New(ErrCodeDatabase, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are typically retryable.
func NetworkError(message string, cause error) *GeoError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *GeoError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *GeoError {
	return New(ErrCodeInternal, message, cause)
}

// InvalidFilter reports a malformed search filter. Searches fail with it
// before any retrieval runs.
func InvalidFilter(message string) *GeoError {
	return New(ErrCodeInvalidFilter, message, nil).
		WithSuggestion("Check the date range and minimum sample count")
}

// RetrievalFailure reports a semantic or lexical source that failed or
// timed out.
func RetrievalFailure(source string, cause error) *GeoError {
	return New(ErrCodeRetrievalFailed, source+" retrieval failed", cause).
		WithDetail("source", source)
}

// DictionaryUnavailable reports that no term dictionary is loaded.
func DictionaryUnavailable(cause error) *GeoError {
	return New(ErrCodeDictionaryUnavailable, "term dictionary unavailable", cause).
		WithSuggestion("Load a dictionary with 'geosearch mesh load' or 'geosearch mesh sample'")
}

// AssociationLookupFailure reports that entity-term associations could not
// be read.
func AssociationLookupFailure(cause error) *GeoError {
	return New(ErrCodeAssociationLookupFailed, "association lookup failed", cause)
}

// NotFound reports a missing record.
func NotFound(kind, id string) *GeoError {
	return New(ErrCodeNotFound, kind+" not found: "+id, nil).WithDetail("id", id)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain holds a GeoError with Retryable set.
func IsRetryable(err error) bool {
	var ge *GeoError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var ge *GeoError
	if errors.As(err, &ge) {
		return ge.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a GeoError.
// Returns empty string if not a GeoError.
func GetCode(err error) string {
	var ge *GeoError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// GetCategory extracts the category from a GeoError.
func GetCategory(err error) Category {
	var ge *GeoError
	if errors.As(err, &ge) {
		return ge.Category
	}
	return ""
}

// HasCode reports whether any GeoError in err's chain carries code.
func HasCode(err error, code string) bool {
	return errors.Is(err, &GeoError{Code: code})
}
