package audit

import (
	"errors"
	"fmt"

	"github.com/hostaudit/hostaudit/pkg/artifact"
	"github.com/hostaudit/hostaudit/pkg/metrics"
)

// Error taxonomy. Every error returned by the Controller matches exactly one
// of these with errors.Is, except that a timeout also matches
// ErrExecutionFailed.
var (
	// ErrUnauthorized means the credential could not be verified. Never
	// retried.
	ErrUnauthorized = errors.New("audit: unauthorized")

	// ErrExecutionFailed means the script could not be started or exited
	// non-zero. See *ExecutionError for captured output.
	ErrExecutionFailed = errors.New("audit: execution failed")

	// ErrTimeout means the script ran past its wall-clock bound and its
	// process group was killed.
	ErrTimeout = errors.New("audit: execution timed out")

	// ErrEmptyResult means the script exited 0 but left no usable output.
	ErrEmptyResult = errors.New("audit: empty result")

	// ErrRunNotFound means the run id is unknown, expired or already served.
	ErrRunNotFound = errors.New("audit: run not found")

	// ErrScriptUnavailable means preflight could not find a runnable script.
	ErrScriptUnavailable = errors.New("audit: inspection script unavailable")

	// ErrPathEscape is re-exported from the artifact store.
	ErrPathEscape = artifact.ErrPathEscape

	// ErrArtifactIO is re-exported from the artifact store.
	ErrArtifactIO = artifact.ErrArtifactIO
)

// ExecutionError carries what the script printed when it failed.
type ExecutionError struct {
	Stdout    []byte
	Stderr    []byte
	ExitCode  int
	TimedOut  bool
	Truncated bool // captured output hit the capture cap
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%v: %v", ErrTimeout, e.Err)
	}
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%v (exit %d): %v", ErrExecutionFailed, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%v: %v", ErrExecutionFailed, e.Err)
}

// Unwrap lets errors.Is match ErrExecutionFailed, ErrTimeout when timed out,
// and the underlying cause.
func (e *ExecutionError) Unwrap() []error {
	errs := []error{ErrExecutionFailed}
	if e.TimedOut {
		errs = append(errs, ErrTimeout)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Outcome maps an error from the Controller to a stable metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeParsed
	case errors.Is(err, ErrUnauthorized):
		return metrics.OutcomeUnauthorized
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, ErrExecutionFailed):
		return metrics.OutcomeExecutionFailed
	case errors.Is(err, ErrEmptyResult):
		return metrics.OutcomeEmptyResult
	case errors.Is(err, ErrArtifactIO), errors.Is(err, ErrPathEscape):
		return metrics.OutcomeArtifactIO
	default:
		return metrics.OutcomeError
	}
}
