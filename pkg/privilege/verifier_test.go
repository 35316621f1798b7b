//go:build unix

package privilege

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSudo accepts exactly "correct horse" on stdin and records its argv.
func fakeSudo(t *testing.T) (path, argvFile string) {
	t.Helper()
	dir := t.TempDir()
	argvFile = filepath.Join(dir, "argv")
	path = filepath.Join(dir, "sudo")
	body := "#!/bin/sh\n" +
		`printf '%s\n' "$@" > ` + argvFile + "\n" +
		"read pw\n" +
		`[ "$pw" = "correct horse" ]` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o700))
	return path, argvFile
}

func TestSudoVerifier_Accepts(t *testing.T) {
	sudo, argvFile := fakeSudo(t)
	v := &SudoVerifier{SudoPath: sudo}
	cred := NewCredential([]byte("correct horse"))

	ok, err := v.Verify(context.Background(), cred)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, cred.Consumed(), "verification must leave the credential usable for the spawn")

	argv, err := os.ReadFile(argvFile)
	require.NoError(t, err)
	assert.Equal(t, "-S\n-k\n-p\n\n--\ntrue\n", string(argv))
}

func TestSudoVerifier_Rejects(t *testing.T) {
	sudo, _ := fakeSudo(t)
	v := &SudoVerifier{SudoPath: sudo}

	ok, err := v.Verify(context.Background(), NewCredential([]byte("wrong")))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSudoVerifier_MissingBinary(t *testing.T) {
	v := &SudoVerifier{SudoPath: filepath.Join(t.TempDir(), "no-sudo")}

	ok, err := v.Verify(context.Background(), NewCredential([]byte("x")))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestSudoVerifier_ConsumedCredential(t *testing.T) {
	sudo, argvFile := fakeSudo(t)
	cred := NewCredential([]byte("correct horse"))
	cred.Wipe()

	ok, err := (&SudoVerifier{SudoPath: sudo}).Verify(context.Background(), cred)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCredentialConsumed)
	assert.NoFileExists(t, argvFile, "probe must not run without a live credential")
}

func TestEffectiveUIDVerifier(t *testing.T) {
	root := &EffectiveUIDVerifier{geteuid: func() int { return 0 }}
	ok, err := root.Verify(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	user := &EffectiveUIDVerifier{geteuid: func() int { return 1000 }}
	cred := NewCredential([]byte("ignored"))
	ok, err = user.Verify(context.Background(), cred)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotPrivileged)
	assert.True(t, cred.Consumed(), "direct mode discards any supplied credential")
}

func TestSudoArgs(t *testing.T) {
	assert.Equal(t, []string{"-S", "-k", "-p", "", "--", "/opt/a.sh", "Y"}, SudoArgs("/opt/a.sh", "Y"))
}
