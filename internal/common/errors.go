package common

import (
	"errors"
	"fmt"
)

// Sentinel errors for request/state validation. These are never retried and map
// directly onto HTTP status codes at the API boundary.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidState     = errors.New("invalid job state for operation")
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("job failure threshold exceeded")
)

// CollaboratorError wraps a failure from an external collaborator (query
// generation, search, enrichment, export). Transient failures are retried with
// backoff up to the configured budget; permanent failures are recorded against
// the specific unit of work and never retried.
type CollaboratorError struct {
	Collaborator string // "claude", "search", "enrichment", "export"
	Transient    bool
	Err          error
}

func (e *CollaboratorError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s collaborator error (%s): %v", e.Collaborator, kind, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retryable collaborator failure.
func NewTransientError(collaborator string, err error) error {
	return &CollaboratorError{Collaborator: collaborator, Transient: true, Err: err}
}

// NewPermanentError wraps err as a non-retryable collaborator failure.
func NewPermanentError(collaborator string, err error) error {
	return &CollaboratorError{Collaborator: collaborator, Transient: false, Err: err}
}

// IsTransient reports whether err is a retryable collaborator failure.
// Timeouts and unclassified collaborator errors count as transient; anything
// explicitly marked permanent does not.
func IsTransient(err error) bool {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.Transient
	}
	return false
}

// IsPermanent reports whether err is a collaborator failure that must not be retried.
func IsPermanent(err error) bool {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return !ce.Transient
	}
	return false
}
