package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/Velocidex/ordereddict"
	"github.com/spf13/cobra"

	"github.com/hostaudit/hostaudit/pkg/audit"
	"github.com/hostaudit/hostaudit/pkg/config"
	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/jsonutil"
	"github.com/hostaudit/hostaudit/pkg/privilege"
	"github.com/hostaudit/hostaudit/pkg/ui"
)

func newRunCmd(a *app) *cobra.Command {
	var pdfPath string
	var asJSON, banner bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one audit and print its sections",
		Long: `Run the inspection script once and print the parsed sections.

In sudo mode the password is prompted for without echo, or read from the
first line of stdin when it is not a terminal. With --pdf the report is
written to the given path; either way no artifact is left under the
output root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if banner && !asJSON {
				ui.PrintBanner(cmd.ErrOrStderr())
			}

			var cred *privilege.Credential
			if a.cfg.Pipeline.Mode == config.ModeSudo {
				secret, err := ui.ReadSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "[sudo] password: ")
				if err != nil {
					return err
				}
				cred = privilege.NewCredential(secret)
				privilege.Zero(secret)
			}

			p, err := a.newPipeline(ctx, nil)
			if err != nil {
				return err
			}
			defer p.Close(ctx)

			run, err := p.ctrl.RunAudit(ctx, cred)
			if err != nil {
				var execErr *audit.ExecutionError
				if errors.As(err, &execErr) && len(execErr.Stderr) > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "script stderr:\n%s\n", execErr.Stderr)
				}
				return err
			}

			if asJSON {
				if err := writeRunJSON(out, run); err != nil {
					return err
				}
			} else {
				ui.PrintSummary(out, ui.Summary{
					RunID:     run.ID,
					Hostname:  run.Metadata.Hostname,
					Timestamp: run.Metadata.Timestamp,
					Duration:  run.Metadata.Duration,
					Sections:  run.Sections.Len(),
					Outcome:   audit.Outcome(nil),
				})
				ui.PrintSections(out, run.Sections)
			}

			if pdfPath == "" {
				return p.ctrl.Discard(run.ID)
			}
			n, err := saveReport(cmd, p.ctrl, run.ID, pdfPath)
			if err != nil {
				return err
			}
			a.logger.Info("report written", slog.String("path", pdfPath), slog.Int64("bytes", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Write the PDF report to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sections as JSON")
	cmd.Flags().BoolVar(&banner, "banner", true, "Print the banner to stderr")
	return cmd
}

// saveReport streams the run's report into path.
func saveReport(cmd *cobra.Command, ctrl *audit.Controller, runID, path string) (int64, error) {
	rep, err := ctrl.FetchReport(cmd.Context(), runID)
	if err != nil {
		return 0, err
	}
	defer rep.Close()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaults.FilePerm)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := io.Copy(f, rep)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

// writeRunJSON prints the same shape POST /api/audit returns.
func writeRunJSON(w io.Writer, run *audit.Run) error {
	results := ordereddict.NewDict()
	for _, sec := range run.Sections.Sections() {
		results.Set(strconv.Itoa(sec.ID), sec.Content)
	}
	meta := ordereddict.NewDict().
		Set("timestamp", run.Metadata.Timestamp).
		Set("hostname", run.Metadata.Hostname).
		Set("duration", run.Metadata.DurationSeconds()).
		Set("runId", run.ID)
	data, err := jsonutil.MarshalIndent(ordereddict.NewDict().
		Set("success", true).
		Set("results", results).
		Set("metadata", meta), "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
