// Package reconcile compares observed host state to the declared target and
// computes, then applies, the minimal set of actions needed to close the gap.
// The engine is idempotent by default (matching state is skipped), honors a
// uniform force-override policy, and degrades to documented fallback paths
// before failing; only a required resource with every path exhausted is
// fatal.
package reconcile

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a failure for the caller's continue-or-abort
// decision.
type ErrorClass string

const (
	// ErrorClassRecoverable marks a failure of one path that leaves other
	// paths viable: a transient network error, an unreachable repository, a
	// missing optional tool. The caller logs it and continues.
	ErrorClassRecoverable ErrorClass = "recoverable"

	// ErrorClassPermanent marks a failure with no remaining path. For a
	// required resource this aborts the run.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Error codes.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeUnsupported   = "UNSUPPORTED_ENVIRONMENT"
	ErrCodeExhausted     = "FALLBACKS_EXHAUSTED"
	ErrCodeCommandFailed = "COMMAND_FAILED"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ReconcileError is a classified error carrying resource context, so every
// failure is attributable to the exact step that produced it.
type ReconcileError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the managed resource that caused the error.
	Resource string `json:"resource,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ReconcileError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Resource != "" {
		msg = fmt.Sprintf("[%s] %s (resource=%s)", e.Class, e.Message, e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// Is matches errors by class and code.
func (e *ReconcileError) Is(target error) bool {
	t, ok := target.(*ReconcileError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewRecoverableError creates a recoverable error.
func NewRecoverableError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassRecoverable, Message: message, Err: err}
}

// NewPermanentError creates a permanent error.
func NewPermanentError(message string, err error) *ReconcileError {
	return &ReconcileError{Class: ErrorClassPermanent, Message: message, Err: err}
}

// WithResource adds resource context to the error.
func (e *ReconcileError) WithResource(resource string) *ReconcileError {
	e.Resource = resource
	return e
}

// WithCode adds an error code to the error.
func (e *ReconcileError) WithCode(code string) *ReconcileError {
	e.Code = code
	return e
}

// IsRecoverable reports whether the error is classified recoverable.
func IsRecoverable(err error) bool {
	var e *ReconcileError
	if errors.As(err, &e) {
		return e.Class == ErrorClassRecoverable
	}
	return false
}

// IsPermanent reports whether the error is classified permanent.
func IsPermanent(err error) bool {
	var e *ReconcileError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}
