package cli

import (
	"errors"

	"github.com/hostaudit/hostaudit/pkg/audit"
	"github.com/hostaudit/hostaudit/pkg/config"
	"github.com/hostaudit/hostaudit/pkg/defaults"
)

// UsageError marks a bad flag, argument or input file.
type UsageError struct{ Err error }

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	var usage *UsageError
	switch {
	case err == nil:
		return defaults.ExitSuccess
	case errors.As(err, &usage),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrMissingRequired),
		errors.Is(err, audit.ErrPathEscape),
		errors.Is(err, audit.ErrScriptUnavailable):
		return defaults.ExitUserError
	case errors.Is(err, audit.ErrUnauthorized):
		return defaults.ExitUnauthorized
	case errors.Is(err, audit.ErrExecutionFailed),
		errors.Is(err, audit.ErrTimeout),
		errors.Is(err, audit.ErrEmptyResult):
		return defaults.ExitExecutionError
	default:
		return defaults.ExitInternalError
	}
}
