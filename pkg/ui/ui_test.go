package ui

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hostaudit/hostaudit/pkg/sections"
)

func TestStatusLabel(t *testing.T) {
	tests := map[string]string{
		"parsed":           "Parsed",
		"execution_failed": "Execution Failed",
		"empty_result":     "Empty Result",
		"":                 "Unknown",
	}
	for in, want := range tests {
		if got := StatusLabel(in); got != want {
			t.Errorf("StatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetNoColor(t *testing.T) {
	SetNoColor(true)
	if !IsNoColor() {
		t.Fatal("IsNoColor should be true after SetNoColor(true)")
	}
	var buf bytes.Buffer
	PrintDivider(&buf)
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("divider contains ANSI escapes with color disabled: %q", buf.String())
	}
}

func TestPrintBanner(t *testing.T) {
	SetNoColor(true)
	var buf bytes.Buffer
	PrintBanner(&buf)
	if !strings.Contains(buf.String(), "v1.") {
		t.Errorf("banner missing version: %q", buf.String())
	}
}

func TestPrintSections(t *testing.T) {
	SetNoColor(true)
	set := sections.ParseString("1. Kernel\nLinux 6.1\n###\n2. Empty\n###\n3. Users\nroot\n###\n")

	var buf bytes.Buffer
	PrintSections(&buf, set)
	out := buf.String()

	for _, want := range []string{"1. Kernel", "Linux 6.1", "2. Empty", "(no output)", "3. Users", "root"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "1. Kernel") > strings.Index(out, "3. Users") {
		t.Error("sections printed out of order")
	}
}

func TestPrintSections_Empty(t *testing.T) {
	SetNoColor(true)
	var buf bytes.Buffer
	PrintSections(&buf, nil)
	if !strings.Contains(buf.String(), "No sections.") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPrintSummary(t *testing.T) {
	SetNoColor(true)
	var buf bytes.Buffer
	PrintSummary(&buf, Summary{
		RunID:     "run-1",
		Hostname:  "web01",
		Timestamp: time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Sections:  4,
		Outcome:   "parsed",
	})
	out := buf.String()
	for _, want := range []string{"Parsed", "run-1", "web01", "2024-03-09T14:30:00Z", "1.5s", "4"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestReadSecret_Piped(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		err   error
	}{
		{"newline", "s3cret\n", "s3cret", nil},
		{"crlf", "s3cret\r\n", "s3cret", nil},
		{"no newline", "s3cret", "s3cret", nil},
		{"only first line", "first\nsecond\n", "first", nil},
		{"spaces kept", " pass word \n", " pass word ", nil},
		{"empty", "", "", ErrNoCredential},
		{"blank line", "\n", "", ErrNoCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "in")
			if err := os.WriteFile(p, []byte(tt.input), 0o600); err != nil {
				t.Fatal(err)
			}
			f, err := os.Open(p)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			var prompt bytes.Buffer
			got, err := ReadSecret(f, &prompt, "Password: ")
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if string(got) != tt.want {
				t.Errorf("secret = %q, want %q", got, tt.want)
			}
			if prompt.Len() != 0 {
				t.Errorf("non-terminal input should not be prompted, got %q", prompt.String())
			}
		})
	}
}

func TestIconFallsBackWhenPiped(t *testing.T) {
	// Test stderr is normally a pipe.
	if UnicodeTerminal() {
		t.Skip("stderr is a terminal")
	}
	if got := Icon("▸", ">"); got != ">" {
		t.Errorf("Icon = %q, want ascii fallback", got)
	}
}
