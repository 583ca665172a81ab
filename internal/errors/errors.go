// Package errors provides structured error types for personaforge.
// CLIError carries a category, message, usage and remediation steps for display;
// the domain types in domain.go carry the pipeline's error taxonomy.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies an error for display purposes.
type ErrorCategory int

const (
	// Argument indicates bad command-line input or persona input.
	Argument ErrorCategory = iota
	// Configuration indicates an invalid or unreadable config file.
	Configuration
	// Prerequisite indicates a missing precondition (persona not built yet, store missing).
	Prerequisite
	// Runtime indicates a failure while executing (storage, rendering).
	Runtime
)

// String returns the display heading for the category.
func (c ErrorCategory) String() string {
	switch c {
	case Argument:
		return "Argument Error"
	case Configuration:
		return "Configuration Error"
	case Prerequisite:
		return "Prerequisite Error"
	case Runtime:
		return "Runtime Error"
	default:
		return "Error"
	}
}

// CLIError is a user-facing error with remediation guidance.
type CLIError struct {
	Category    ErrorCategory
	Message     string
	Usage       string
	Remediation []string
	cause       error
}

func (e *CLIError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *CLIError) Unwrap() error {
	return e.cause
}

// NewArgumentError creates an Argument error with optional remediation steps.
func NewArgumentError(message string, remediation ...string) *CLIError {
	return &CLIError{Category: Argument, Message: message, Remediation: remediation}
}

// NewArgumentErrorWithUsage creates an Argument error that also shows usage.
func NewArgumentErrorWithUsage(message, usage string, remediation ...string) *CLIError {
	return &CLIError{Category: Argument, Message: message, Usage: usage, Remediation: remediation}
}

// NewConfigError creates a Configuration error.
func NewConfigError(message string, remediation ...string) *CLIError {
	return &CLIError{Category: Configuration, Message: message, Remediation: remediation}
}

// NewPrerequisiteError creates a Prerequisite error.
func NewPrerequisiteError(message string, remediation ...string) *CLIError {
	return &CLIError{Category: Prerequisite, Message: message, Remediation: remediation}
}

// NewRuntimeError creates a Runtime error.
func NewRuntimeError(message string, remediation ...string) *CLIError {
	return &CLIError{Category: Runtime, Message: message, Remediation: remediation}
}

// Wrap converts err into a CLIError of the given category, keeping its message.
// Returns nil for a nil error.
func Wrap(err error, category ErrorCategory, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{
		Category:    category,
		Message:     err.Error(),
		Remediation: remediation,
		cause:       err,
	}
}

// WrapWithMessage wraps err with an outer message ("outer: inner").
func WrapWithMessage(err error, category ErrorCategory, message string, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{
		Category:    category,
		Message:     fmt.Sprintf("%s: %s", message, err.Error()),
		Remediation: remediation,
		cause:       err,
	}
}

// IsCLIError reports whether err is (or wraps) a CLIError.
func IsCLIError(err error) bool {
	var cliErr *CLIError
	return errors.As(err, &cliErr)
}

// AsCLIError returns the CLIError in err's chain, or nil.
func AsCLIError(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	return nil
}
