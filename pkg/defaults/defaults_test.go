package defaults_test

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/hostaudit/hostaudit/pkg/defaults"
)

// TestVersionConsistency checks the version format and that no other source
// file hardcodes it.
func TestVersionConsistency(t *testing.T) {
	semverPattern := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9]+)?$`)
	if !semverPattern.MatchString(defaults.Version) {
		t.Errorf("defaults.Version (%s) is not valid semver", defaults.Version)
	}

	root := findProjectRoot(t)
	quoted := `"` + defaults.Version + `"`
	var violations []string
	for _, dir := range []string{"pkg", "cmd"} {
		_ = filepath.Walk(filepath.Join(root, dir), func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			if strings.HasSuffix(path, "_test.go") || strings.HasSuffix(path, "defaults.go") {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			if strings.Contains(string(content), quoted) {
				rel, _ := filepath.Rel(root, path)
				violations = append(violations, rel)
			}
			return nil
		})
	}
	if len(violations) > 0 {
		t.Errorf("hardcoded version %s found; use defaults.Version:\n  %s",
			quoted, strings.Join(violations, "\n  "))
	}
}

func TestReportFilenameTemplate(t *testing.T) {
	tmpl, err := template.New("f").Funcs(sprig.TxtFuncMap()).Parse(defaults.ReportFilename)
	if err != nil {
		t.Fatalf("ReportFilename does not parse: %v", err)
	}

	// GeneratedAt is rendered in UTC whatever the location.
	at := time.Date(2024, 3, 9, 15, 30, 5, 0, time.FixedZone("CET", 3600))
	render := func(host string) string {
		var buf bytes.Buffer
		data := struct {
			RunID       string
			Hostname    string
			GeneratedAt time.Time
		}{"run-1", host, at}
		if err := tmpl.Execute(&buf, data); err != nil {
			t.Fatalf("execute: %v", err)
		}
		return buf.String()
	}

	if got, want := render("web01"), "audit-web01-20240309-143005.pdf"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := render(""), "audit-host-20240309-143005.pdf"; got != want {
		t.Errorf("empty hostname: got %q, want %q", got, want)
	}
}

func TestExitCodesDistinct(t *testing.T) {
	codes := map[int]string{}
	for name, code := range map[string]int{
		"success":      defaults.ExitSuccess,
		"unauthorized": defaults.ExitUnauthorized,
		"user":         defaults.ExitUserError,
		"execution":    defaults.ExitExecutionError,
		"internal":     defaults.ExitInternalError,
	} {
		if other, dup := codes[code]; dup {
			t.Errorf("exit code %d used by both %s and %s", code, name, other)
		}
		codes[code] = name
	}
	if defaults.ExitSuccess != 0 {
		t.Error("ExitSuccess must be 0")
	}
}

func TestScriptArgsNotShared(t *testing.T) {
	a := defaults.ScriptArgs()
	a[0] = "N"
	if got := defaults.ScriptArgs()[0]; got != "Y" {
		t.Errorf("ScriptArgs returned a shared slice: %q", got)
	}
}

func TestDelimiterContract(t *testing.T) {
	if defaults.DelimiterMinRun < 1 || defaults.DelimiterWidth < defaults.DelimiterMinRun {
		t.Errorf("delimiter width %d must be >= min run %d >= 1",
			defaults.DelimiterWidth, defaults.DelimiterMinRun)
	}
}

func TestSizeLimitsOrdered(t *testing.T) {
	if defaults.MaxRequestBodyBytes >= defaults.MaxCaptureBytes {
		t.Error("request body cap should be far below the capture cap")
	}
	if defaults.MaxCaptureBytes > defaults.MaxRawOutputBytes {
		t.Error("capture cap should not exceed the raw output cap")
	}
}

func TestUserAgent(t *testing.T) {
	if got, want := defaults.UserAgent(), "hostaudit/"+defaults.Version; got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}
