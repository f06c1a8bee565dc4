package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
)

// Lifecycle sentinels. Typed errors below unwrap to these.
var (
	ErrValidationBlocked   = errors.New("batch not ready: validation blocked")
	ErrConcurrencyConflict = errors.New("batch already claimed or emitted")
	ErrTransientEmission   = errors.New("transient emission failure")
	ErrImmutable           = errors.New("batch is immutable after emission")
	ErrRateLimited         = errors.New("reprocess rate limited")
	ErrAlreadySent         = errors.New("report already sent")
	ErrAlreadyEmitted      = errors.New("report already emitted")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrRenderRejected      = errors.New("renderer rejected snapshot")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// ValidationBlockedError reports that a batch has objectively insufficient data.
// Not retryable until new data arrives.
type ValidationBlockedError struct {
	BatchID int64
	Reasons []Reason
}

func (e *ValidationBlockedError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("batch %d: blocked", e.BatchID)
	}
	return fmt.Sprintf("batch %d: blocked: %s", e.BatchID, e.Reasons[0].Message)
}

func (e *ValidationBlockedError) Unwrap() error { return ErrValidationBlocked }

// RateLimitedError is returned when a manual reprocess falls inside the cooldown.
type RateLimitedError struct {
	BatchID    int64
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("batch %d: reprocess rate limited, retry in %s", e.BatchID, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// ImmutabilityViolationError is returned when a mutation targets an emitted batch.
type ImmutabilityViolationError struct {
	BatchID   int64
	Operation string
}

func (e *ImmutabilityViolationError) Error() string {
	return fmt.Sprintf("batch %d: %s rejected: report already emitted", e.BatchID, e.Operation)
}

func (e *ImmutabilityViolationError) Unwrap() error { return ErrImmutable }

// TransientEmissionError wraps a render/storage failure that the scheduler will retry.
type TransientEmissionError struct {
	BatchID int64
	Stage   string
	Err     error
}

func (e *TransientEmissionError) Error() string {
	return fmt.Sprintf("batch %d: %s: %v", e.BatchID, e.Stage, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *TransientEmissionError) Unwrap() []error { return []error{ErrTransientEmission, e.Err} }

// TransitionError reports an illegal status change.
type TransitionError struct {
	From BatchStatus
	To   BatchStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move batch from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
