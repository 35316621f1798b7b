package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hostaudit/hostaudit/pkg/audit"
	"github.com/hostaudit/hostaudit/pkg/config"
	"github.com/hostaudit/hostaudit/pkg/defaults"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, defaults.ExitSuccess},
		{"usage", &UsageError{Err: errors.New("bad flag")}, defaults.ExitUserError},
		{"config", fmt.Errorf("load: %w", config.ErrInvalidConfig), defaults.ExitUserError},
		{"missing", fmt.Errorf("%w: x", config.ErrMissingRequired), defaults.ExitUserError},
		{"script", fmt.Errorf("%w: gone", audit.ErrScriptUnavailable), defaults.ExitUserError},
		{"escape", audit.ErrPathEscape, defaults.ExitUserError},
		{"unauthorized", fmt.Errorf("%w: no", audit.ErrUnauthorized), defaults.ExitUnauthorized},
		{"exec", &audit.ExecutionError{ExitCode: 2, Err: errors.New("exit 2")}, defaults.ExitExecutionError},
		{"timeout", &audit.ExecutionError{TimedOut: true, Err: errors.New("killed")}, defaults.ExitExecutionError},
		{"empty", audit.ErrEmptyResult, defaults.ExitExecutionError},
		{"other", errors.New("boom"), defaults.ExitInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestUsageErrorUnwraps(t *testing.T) {
	inner := errors.New("inner")
	err := fmt.Errorf("wrap: %w", &UsageError{Err: inner})
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "wrap: inner", err.Error())
}
