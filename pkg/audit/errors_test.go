package audit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hostaudit/hostaudit/pkg/artifact"
	"github.com/hostaudit/hostaudit/pkg/metrics"
)

func TestExecutionErrorMatching(t *testing.T) {
	cause := errors.New("status 2")
	failed := &ExecutionError{ExitCode: 2, Err: cause}
	assert.ErrorIs(t, failed, ErrExecutionFailed)
	assert.ErrorIs(t, failed, cause)
	assert.False(t, errors.Is(failed, ErrTimeout))
	assert.Contains(t, failed.Error(), "exit 2")

	timedOut := &ExecutionError{ExitCode: -1, TimedOut: true, Err: cause}
	assert.ErrorIs(t, timedOut, ErrTimeout)
	assert.ErrorIs(t, timedOut, ErrExecutionFailed)
	assert.Contains(t, timedOut.Error(), "timed out")

	wrapped := fmt.Errorf("outer: %w", timedOut)
	var target *ExecutionError
	assert.ErrorAs(t, wrapped, &target)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, metrics.OutcomeParsed},
		{fmt.Errorf("%w: bad", ErrUnauthorized), metrics.OutcomeUnauthorized},
		{&ExecutionError{TimedOut: true}, metrics.OutcomeTimeout},
		{&ExecutionError{ExitCode: 1}, metrics.OutcomeExecutionFailed},
		{fmt.Errorf("%w: blank", ErrEmptyResult), metrics.OutcomeEmptyResult},
		{fmt.Errorf("%w: disk", artifact.ErrArtifactIO), metrics.OutcomeArtifactIO},
		{artifact.ErrPathEscape, metrics.OutcomeArtifactIO},
		{errors.New("other"), metrics.OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "err %v", tt.err)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "collecting", StatusCollecting.String())
	assert.Equal(t, "parsed", StatusParsed.String())
	assert.Equal(t, "failed", StatusFailed.String())
	text, _ := StatusParsed.MarshalText()
	assert.Equal(t, "parsed", string(text))
}

func TestReexportedErrors(t *testing.T) {
	assert.Same(t, artifact.ErrPathEscape, ErrPathEscape)
	assert.Same(t, artifact.ErrArtifactIO, ErrArtifactIO)
}
