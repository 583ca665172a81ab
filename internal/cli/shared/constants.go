// Package shared holds what the CLI subpackages have in common: command
// groups, exit codes, and loading the effective configuration. It imports
// no other CLI package.
package shared

import (
	"errors"
	"fmt"

	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/retry"
)

// Command group IDs for organizing help output
const (
	GroupPipeline      = "pipeline"
	GroupInspect       = "inspect"
	GroupConfiguration = "configuration"
)

// Exit codes for CLI commands
const (
	ExitSuccess = 0
	// ExitRejected means the persona failed validation; nothing was persisted.
	ExitRejected          = 1
	ExitRetryLimitReached = 2
	ExitInvalidArguments  = 3
	ExitPrerequisite      = 4
	ExitRuntime           = 5
	ExitConfiguration     = 6
)

// exitError is a custom error type that carries an exit code. The command
// has already reported the outcome, so Execute prints nothing for it.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// NewExitError creates a new exit error with the given code.
func NewExitError(code int) error {
	return &exitError{code: code}
}

// IsReported reports whether err only carries an exit code.
func IsReported(err error) bool {
	var e *exitError
	return errors.As(err, &e)
}

// ExitCode returns the exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return ExitRetryLimitReached
	}
	switch apperrors.FromDomain(err).Category {
	case apperrors.Argument:
		return ExitInvalidArguments
	case apperrors.Configuration:
		return ExitConfiguration
	case apperrors.Prerequisite:
		return ExitPrerequisite
	default:
		return ExitRuntime
	}
}
