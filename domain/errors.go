package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrFileNotFound      = errors.New("file not found")
	ErrCancelled         = errors.New("conversion cancelled")
)

// ValidationError rejects a request before any pipeline stage runs.
type ValidationError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err, e.Input, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Input)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps one of the validation sentinels.
func NewValidationError(sentinel error, input, reason string) *ValidationError {
	return &ValidationError{Input: input, Reason: reason, Err: sentinel}
}

// ConversionError reports a failure of the underlying converter.
type ConversionError struct {
	Op  string
	Err error
}

func (e *ConversionError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *ConversionError) Unwrap() error { return e.Err }

// ExternalToolError reports a missing or failing external program together
// with the steps a user can take instead.
type ExternalToolError struct {
	Tool        string
	Reason      string
	Remediation []string
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Tool, e.Reason)
	if len(e.Remediation) == 0 {
		return msg
	}
	msg += ". Options:"
	for i, r := range e.Remediation {
		msg += fmt.Sprintf(" %d) %s", i+1, r)
	}
	return msg
}

// ClassifyError maps a pipeline error to its terminal status.
func ClassifyError(err error) Status {
	switch {
	case err == nil:
		return StatusCompleted
	case errors.Is(err, ErrCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}
