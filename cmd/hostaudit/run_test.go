//go:build unix

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostaudit/hostaudit/pkg/cli"
	"github.com/hostaudit/hostaudit/pkg/defaults"
)

const password = "correct horse"

func writeExec(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}

// fakeSudo accepts only password and then execs everything after "--".
func fakeSudo(t *testing.T) string {
	return writeExec(t, "sudo", fmt.Sprintf(`read -r pw
[ "$pw" = %q ] || { echo "Sorry, try again." >&2; exit 1; }
while [ "$1" != "--" ]; do shift; done
shift
exec "$@"`, password))
}

func auditScript(t *testing.T) string {
	return writeExec(t, "audit.sh", fmt.Sprintf("[ \"$1\" = \"Y\" ] || exit 9\ncat > \"$2\" <<'EOF'\n%sEOF", sample))
}

func sudoArgs(t *testing.T, root string, extra ...string) []string {
	return append([]string{
		"--mode", "sudo",
		"--sudo", fakeSudo(t),
		"--script", auditScript(t),
		"--output-root", root,
		"run", "--banner=false",
	}, extra...)
}

func TestRun_SudoJSON(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")

	out, stderr, err := execute(t, password+"\n", sudoArgs(t, root, "--json")...)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, `"success": true`)
	assert.Contains(t, out, `"1": "Linux host 6.1.0"`)
	assert.Contains(t, out, `"runId"`)
	assert.NotContains(t, out+stderr, password, "credential never echoed")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "artifacts are discarded after the run")
}

func TestRun_SudoPDF(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")
	pdf := filepath.Join(t.TempDir(), "report.pdf")

	out, stderr, err := execute(t, password+"\n", sudoArgs(t, root, "--pdf", pdf)...)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "Parsed")
	assert.Contains(t, out, "2. Users")

	raw, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.NoError(t, pdfapi.Validate(bytes.NewReader(raw), nil))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_WrongPassword(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")

	_, stderr, err := execute(t, "hunter2\n", sudoArgs(t, root)...)
	require.Error(t, err)
	assert.Equal(t, defaults.ExitUnauthorized, cli.ExitCode(err))
	assert.NotContains(t, stderr, "hunter2")
}

func TestRun_EmptyPassword(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")
	_, _, err := execute(t, "", sudoArgs(t, root)...)
	assert.Error(t, err)
}

func TestRun_ScriptFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")
	failing := writeExec(t, "fail.sh", "echo kaboom >&2\nexit 4")

	_, stderr, err := execute(t, password+"\n",
		"--mode", "sudo", "--sudo", fakeSudo(t), "--script", failing, "--output-root", root,
		"run", "--banner=false")
	require.Error(t, err)
	assert.Equal(t, defaults.ExitExecutionError, cli.ExitCode(err))
	assert.Contains(t, stderr, "kaboom")
}

func TestRun_MissingScript(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")

	_, _, err := execute(t, password+"\n",
		"--mode", "sudo", "--sudo", fakeSudo(t),
		"--script", filepath.Join(t.TempDir(), "nope.sh"), "--output-root", root,
		"run", "--banner=false")
	assert.Equal(t, defaults.ExitUserError, cli.ExitCode(err))
}

func TestRun_DirectMode(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")

	_, _, err := execute(t, "",
		"--mode", "direct", "--script", auditScript(t), "--output-root", root,
		"run", "--banner=false", "--json")
	if os.Geteuid() == 0 {
		assert.NoError(t, err)
	} else {
		assert.Equal(t, defaults.ExitUnauthorized, cli.ExitCode(err))
	}
}
