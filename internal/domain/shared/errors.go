// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "plan", "progress", "gateway"
	Op      string // Operation that failed, e.g., "Resolve", "Apply"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Plan domain errors
var (
	ErrTemplateNotFound   = NewDomainError("plan", "FetchTemplate", ErrNotFound, "plan template not found")
	ErrInstanceNotFound   = NewDomainError("plan", "FindInstance", ErrNotFound, "plan instance not found")
	ErrInstanceTerminated = NewDomainError("plan", "Mutate", ErrInvalidState, "plan instance is in a terminal state")
)

// Progress domain errors
var (
	ErrLearnerNotFound = NewDomainError("progress", "Load", ErrNotFound, "no progress recorded for learner")
	ErrDuplicateEvent  = NewDomainError("progress", "Apply", ErrAlreadyProcessed, "practice event already applied")
)

// Gateway errors
var (
	ErrSubmitTimeout = NewDomainError("gateway", "Submit", ErrTimeout, "submit timed out; retry with the same event id")
	ErrGatewayClosed = NewDomainError("gateway", "Submit", ErrInvalidState, "ingestion gateway is shut down")
)

// Storage errors
var (
	// ErrTransientStorage is surfaced to callers so they can retry the
	// submission with the same event id.
	ErrTransientStorage = NewDomainError("storage", "Save", ErrServiceUnavailable, "transient storage failure")
)

// InvalidTemplate builds a validation error naming the violated field.
func InvalidTemplate(field, message string) *DomainError {
	return NewDomainError("plan", "Resolve", ErrValidation, fmt.Sprintf("invalid template: %s: %s", field, message))
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsDuplicate checks if the error marks an idempotent replay.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsTerminated checks if the error is a terminal-state rejection.
func IsTerminated(err error) bool {
	return errors.Is(err, ErrInstanceTerminated)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
