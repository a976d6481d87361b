// Package domain defines the error taxonomy shared by the graph storage layer.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a storage-layer error with a structured error code.
//
// Codes follow the format KT-<AREA>-<NNNN>. Two DomainErrors match under
// errors.Is when their codes are equal, so callers compare against the
// predefined values below regardless of details or cause.
type DomainError struct {
	Code    string // Error code (e.g., "KT-RDG-4040")
	Message string // Human-readable message
	Details string // Optional context: key, view kind, version
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether a caller may reasonably retry the operation
// that produced err. Missing, corrupt and unsupported artifacts stay fatal
// even when they surface through a failed build.
func IsRetryable(err error) bool {
	for _, fatal := range []error{ErrNotFound, ErrCorrupt, ErrUnsupportedVersion, ErrInvariantViolation} {
		if errors.Is(err, fatal) {
			return false
		}
	}
	return errors.Is(err, ErrIOFailure) || errors.Is(err, ErrBuilderFailure)
}

// ============================================================================
// RDG Errors (RDG)
// ============================================================================

var (
	// ErrNotFound indicates a named property, view or manifest section is absent.
	ErrNotFound = NewDomainError("KT-RDG-4040", "not found")

	// ErrCorrupt indicates a loaded artifact disagrees with the base topology
	// or fails its integrity checks.
	ErrCorrupt = NewDomainError("KT-RDG-4220", "corrupt storage artifact")

	// ErrUnsupportedVersion indicates a storage format version this build
	// does not understand, or a requested downgrade.
	ErrUnsupportedVersion = NewDomainError("KT-RDG-4260", "unsupported storage format version")

	// ErrInvariantViolation indicates a structural invariant was broken by
	// the caller, e.g. a duplicate property name.
	ErrInvariantViolation = NewDomainError("KT-RDG-4090", "invariant violation")
)

// ============================================================================
// Cache Errors (CACHE)
// ============================================================================

var (
	// ErrBuilderFailure indicates the builder for a cache key failed.
	ErrBuilderFailure = NewDomainError("KT-CACHE-5002", "builder failed")

	// ErrCacheClosed indicates the cache was shut down.
	ErrCacheClosed = NewDomainError("KT-CACHE-5030", "cache closed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrIOFailure indicates a blob transport or filesystem failure.
	ErrIOFailure = NewDomainError("KT-SYS-5001", "storage i/o failure")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("KT-ARG-1001", "invalid argument")
)
