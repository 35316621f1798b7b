// Package privilege proves that a caller may elevate, without persisting the
// secret that proves it.
package privilege

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hostaudit/hostaudit/pkg/duration"
	"github.com/hostaudit/hostaudit/pkg/logging"
	"github.com/hostaudit/hostaudit/pkg/procexec"
)

var (
	// ErrInvalidCredential means the OS rejected the credential.
	ErrInvalidCredential = errors.New("privilege: invalid credential")

	// ErrNotPrivileged means direct mode is configured but the process is
	// not running with an effective uid of 0.
	ErrNotPrivileged = errors.New("privilege: process is not privileged")

	// ErrProbeFailed means the check itself could not be carried out.
	ErrProbeFailed = errors.New("privilege: probe failed")
)

// Verifier checks a credential against the OS. Implementations keep no cache:
// every call re-proves privilege.
type Verifier interface {
	Verify(ctx context.Context, cred *Credential) (bool, error)
}

// SudoVerifier runs `sudo -S -k -p "" -- true`, feeding the credential on
// stdin. -k discards any cached sudo timestamp so the credential itself is
// what gets checked.
type SudoVerifier struct {
	SudoPath string
	Logger   *slog.Logger
}

// SudoArgs returns the flags used for every sudo invocation: read the
// password from stdin, ignore cached credentials, print no prompt.
func SudoArgs(command ...string) []string {
	return append([]string{"-S", "-k", "-p", "", "--"}, command...)
}

// Verify implements Verifier.
func (v *SudoVerifier) Verify(ctx context.Context, cred *Credential) (bool, error) {
	logger := logging.OrDefault(v.Logger)

	var res *procexec.Result
	var runErr error
	err := cred.Reveal(func(secret []byte) error {
		input := InputFor(secret)
		defer Zero(input)

		res, runErr = procexec.Run(ctx, procexec.Command{
			Path:    v.SudoPath,
			Args:    SudoArgs("true"),
			Stdin:   input,
			Timeout: duration.VerifyTimeout,
		})
		return nil
	})
	if err != nil {
		return false, err
	}

	switch {
	case runErr == nil:
		return true, nil
	case errors.Is(runErr, procexec.ErrExit):
		logger.Info("privilege probe rejected credential", slog.Int("exit_code", res.ExitCode))
		return false, ErrInvalidCredential
	default:
		logger.Warn("privilege probe could not run", slog.String("error", runErr.Error()))
		return false, fmt.Errorf("%w: %v", ErrProbeFailed, runErr)
	}
}

// EffectiveUIDVerifier is used in direct mode: the process must already be
// root and the credential, if any, is ignored.
type EffectiveUIDVerifier struct {
	geteuid func() int
}

// Verify implements Verifier.
func (v *EffectiveUIDVerifier) Verify(_ context.Context, cred *Credential) (bool, error) {
	cred.Wipe()
	geteuid := os.Geteuid
	if v.geteuid != nil {
		geteuid = v.geteuid
	}
	if geteuid() != 0 {
		return false, ErrNotPrivileged
	}
	return true, nil
}

// InputFor returns secret followed by a newline, the form sudo -S expects.
// The caller must zero the result.
func InputFor(secret []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(secret) + 1)
	buf.Write(secret)
	buf.WriteByte('\n')
	return buf.Bytes()
}
