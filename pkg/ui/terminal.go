package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"golang.org/x/term"
)

var (
	unicodeOnce sync.Once
	unicodeOK   bool
)

// ErrNoCredential is returned when the prompt reads an empty secret.
var ErrNoCredential = errors.New("ui: empty credential")

// UnicodeTerminal reports whether stderr can render Unicode glyphs. Returns
// false when output is piped, TERM is "dumb", or on Windows outside Windows
// Terminal.
func UnicodeTerminal() bool {
	unicodeOnce.Do(func() {
		if os.Getenv("TERM") == "dumb" {
			return
		}
		if !term.IsTerminal(int(os.Stderr.Fd())) {
			return
		}
		if runtime.GOOS == "windows" {
			unicodeOK = os.Getenv("WT_SESSION") != ""
			return
		}
		unicodeOK = true
	})
	return unicodeOK
}

// Icon returns unicode when the terminal supports it, ascii otherwise.
func Icon(unicode, ascii string) string {
	if UnicodeTerminal() {
		return unicode
	}
	return ascii
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// ReadSecret prompts on out and reads one line from in. On a terminal echo
// is disabled; otherwise the first line of in is used, so the secret can be
// piped. The caller owns and must clear the returned slice.
func ReadSecret(in io.Reader, out io.Writer, prompt string) ([]byte, error) {
	if f, ok := in.(*os.File); ok && IsTerminal(f) {
		fmt.Fprint(out, prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return nil, fmt.Errorf("ui: read credential: %w", err)
		}
		if len(secret) == 0 {
			return nil, ErrNoCredential
		}
		return secret, nil
	}
	return readLine(in)
}

// readLine returns the first line of r without its line terminator.
func readLine(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadSlice('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ui: read credential: %w", err)
	}
	n := len(line)
	for n > 0 && (line[n-1] == '\n' || line[n-1] == '\r') {
		n--
	}
	if n == 0 {
		return nil, ErrNoCredential
	}
	secret := make([]byte, n)
	copy(secret, line[:n])
	clear(line)
	return secret, nil
}
