package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hostaudit/hostaudit/pkg/sections"
)

var titleCaser = cases.Title(language.English)

// StatusLabel turns a metric-style outcome ("execution_failed") into a
// display label ("Execution Failed").
func StatusLabel(outcome string) string {
	if outcome == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(outcome, "_", " "))
}

// Summary describes one run for display.
type Summary struct {
	RunID     string
	Hostname  string
	Timestamp time.Time
	Duration  time.Duration
	Sections  int
	Outcome   string
}

// PrintSummary writes the run header block.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, TitleStyle.Render("Linux System Audit"))
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render(label), ValueStyle.Render(value))
	}
	row("Status", StatusStyle(s.Outcome).Render(StatusLabel(s.Outcome)))
	row("Run ID", s.RunID)
	row("Hostname", s.Hostname)
	if !s.Timestamp.IsZero() {
		row("Started", s.Timestamp.UTC().Format(time.RFC3339))
	}
	if s.Duration > 0 {
		row("Duration", s.Duration.Round(time.Millisecond).String())
	}
	row("Sections", fmt.Sprint(s.Sections))
}

// PrintSections writes every section of set in order, each as a styled
// header followed by its indented content.
func PrintSections(w io.Writer, set *sections.Set) {
	if set.Len() == 0 {
		fmt.Fprintln(w, HelpStyle.Render("No sections."))
		return
	}
	for _, sec := range set.Sections() {
		fmt.Fprintln(w, SectionStyle.Render(fmt.Sprintf("%s %d. %s", Icon("▸", ">"), sec.ID, sec.Title)))
		PrintDivider(w)
		if sec.Content == "" {
			fmt.Fprintln(w, ContentStyle.Render(HelpStyle.Render("(no output)")))
			continue
		}
		fmt.Fprintln(w, ContentStyle.Render(sec.Content))
	}
}
