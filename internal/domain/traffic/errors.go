package traffic

import (
	"errors"
	"fmt"
)

// TransientSessionError marks a navigation or automation failure worth
// retrying with a fresh capability instance. The capability adapter wraps
// timeouts and automation-layer errors in this type; anything else is
// treated as fatal by the orchestrator.
type TransientSessionError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *TransientSessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient session error in %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transient session error in %s", e.Op)
}

// Unwrap returns the underlying cause
func (e *TransientSessionError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as retryable
func NewTransientError(op string, err error) error {
	return &TransientSessionError{Op: op, Err: err}
}

// FatalSessionError marks an unexpected failure that aborts the session
// immediately, without retry. It never crashes sibling sessions.
type FatalSessionError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *FatalSessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal session error in %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fatal session error in %s", e.Op)
}

// Unwrap returns the underlying cause
func (e *FatalSessionError) Unwrap() error {
	return e.Err
}

// NewFatalError wraps err as non-retryable
func NewFatalError(op string, err error) error {
	return &FatalSessionError{Op: op, Err: err}
}

// IsTransient reports whether the session-level retry policy applies to err
func IsTransient(err error) bool {
	var t *TransientSessionError
	return errors.As(err, &t)
}
