// Package procexec runs a single external program to completion with a hard
// wall-clock bound. The child runs in its own process group, and whatever is
// left of that group when Run returns is killed, so no privileged
// grandchildren outlive the call.
package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/duration"
	"github.com/hostaudit/hostaudit/pkg/iohelper"
)

// Sentinel errors. Callers should use errors.Is() to check for these.
var (
	// ErrStart indicates the program could not be started at all.
	ErrStart = errors.New("procexec: start failed")

	// ErrTimeout indicates the wall-clock bound fired and the group was killed.
	ErrTimeout = errors.New("procexec: timed out")

	// ErrExit indicates the program ran and exited non-zero.
	ErrExit = errors.New("procexec: non-zero exit")

	// ErrCancelled indicates the caller's context was cancelled mid-run.
	ErrCancelled = errors.New("procexec: cancelled")
)

// Command describes one invocation.
type Command struct {
	Path string
	Args []string
	Env  []string // nil inherits the parent environment
	Dir  string

	// Stdin is written to the child's standard input once. The caller owns
	// the slice and should zero it after Run returns when it is secret.
	Stdin []byte

	Timeout    time.Duration // zero means no bound beyond ctx
	KillGrace  time.Duration // time between SIGTERM and SIGKILL of the group
	MaxCapture int64         // per-stream cap on captured stdout/stderr
}

// Result is what the run produced. It is returned even when err != nil.
type Result struct {
	Stdout    []byte
	Stderr    []byte
	ExitCode  int
	Duration  time.Duration
	TimedOut  bool
	Truncated bool
}

// Run executes c and blocks until the program exits, the timeout fires, or
// ctx is cancelled.
func Run(ctx context.Context, c Command) (*Result, error) {
	if c.MaxCapture <= 0 {
		c.MaxCapture = defaults.MaxCaptureBytes
	}
	if c.KillGrace <= 0 {
		c.KillGrace = duration.KillGrace
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	stdout := iohelper.NewLimitedBuffer(c.MaxCapture)
	stderr := iohelper.NewLimitedBuffer(c.MaxCapture)

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return terminateGroup(cmd.Process) }
	cmd.WaitDelay = c.KillGrace

	start := time.Now()
	runErr := cmd.Run()

	res := &Result{
		Duration: time.Since(start),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if cmd.Process != nil {
		// The group belongs to this call. Anything still in it ignored
		// SIGTERM or was left running in the background by the leader.
		killGroup(cmd.Process)
	}

	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	res.Truncated = stdout.Truncated() || stderr.Truncated()

	switch {
	case runErr == nil:
		return res, nil
	case errors.Is(runErr, exec.ErrWaitDelay) && ctx.Err() == nil &&
		cmd.ProcessState != nil && cmd.ProcessState.Success():
		// Exited 0 while a background child still held stdout/stderr.
		// The exit status is what counts; capture stopped at WaitDelay.
		res.Truncated = true
		return res, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		return res, fmt.Errorf("%w after %v", ErrTimeout, c.Timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return res, fmt.Errorf("%w: %v", ErrCancelled, runErr)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return res, fmt.Errorf("%w: status %d", ErrExit, exitErr.ExitCode())
	}
	if cmd.ProcessState == nil {
		return res, fmt.Errorf("%w: %s: %v", ErrStart, c.Path, runErr)
	}
	return res, fmt.Errorf("%w: %v", ErrExit, runErr)
}
