package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error with a stable code
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// use errors.Is for classification and errors.As for details.
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrValidation          = NewDomainError("VALIDATION", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrOverSettlement      = NewDomainError("OVER_SETTLEMENT", "Allocation exceeds the outstanding amount")
	ErrUnbalancedDocument  = NewDomainError("UNBALANCED_DOCUMENT", "Document funds do not match its allocations")
	ErrInsufficientCredit  = NewDomainError("INSUFFICIENT_CREDIT", "Insufficient prepayment credit available")
	ErrAlreadyReversed     = NewDomainError("ALREADY_REVERSED", "Transaction has already been reversed")
	ErrInfrastructure      = NewDomainError("INFRASTRUCTURE", "Storage or connectivity failure")
)

// ValidationError reports malformed input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing resource
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(resource string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id.String()}
}

// ConcurrencyConflictError reports a lost optimistic update. The caller must
// re-read the resource and resubmit.
type ConcurrencyConflictError struct {
	Resource string
	ID       string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Resource, e.ID)
}

func (e *ConcurrencyConflictError) Unwrap() error { return ErrConcurrencyConflict }

// NewConcurrencyConflictError creates a ConcurrencyConflictError
func NewConcurrencyConflictError(resource string, id fmt.Stringer) *ConcurrencyConflictError {
	return &ConcurrencyConflictError{Resource: resource, ID: id.String()}
}

// InvalidStateError reports an operation that is not allowed in the current state
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NewInvalidStateError creates an InvalidStateError
func NewInvalidStateError(format string, args ...any) *InvalidStateError {
	return &InvalidStateError{Message: fmt.Sprintf(format, args...)}
}

// InfrastructureError wraps a storage or connectivity failure. It is the only
// error class that callers may retry unchanged.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInfrastructure) hold for every InfrastructureError
func (e *InfrastructureError) Is(target error) bool {
	return target == ErrInfrastructure
}

// WrapInfrastructure wraps err as an InfrastructureError. Domain errors and
// nil pass through untouched so that repositories can wrap unconditionally.
func WrapInfrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	var ie *InfrastructureError
	if errors.As(err, &ie) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

// IsRetryable reports whether err may be retried without changing the request
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInfrastructure)
}

// CodeOf returns the domain code carried by err, or "" when err is not a domain error
func CodeOf(err error) string {
	if errors.Is(err, ErrInfrastructure) {
		return ErrInfrastructure.Code
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
