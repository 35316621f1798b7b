package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostaudit/hostaudit/pkg/cli"
	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/report"
	"github.com/hostaudit/hostaudit/pkg/sections"
)

func newRenderCmd(a *app) *cobra.Command {
	var output, hostname, runID string

	cmd := &cobra.Command{
		Use:   "render <file|-> -o report.pdf",
		Short: "Render saved inspection-script output to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return &cli.UsageError{Err: fmt.Errorf("--output is required")}
			}
			in, done, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			set, err := sections.Parse(in)
			if err != nil {
				return err
			}
			if hostname == "" {
				hostname, _ = os.Hostname()
			}

			f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaults.FilePerm)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			r := report.New(report.Config{Title: a.cfg.Report.Title, Author: a.cfg.Report.Author})
			err = r.Render(f, set, report.Metadata{
				RunID:       runID,
				Hostname:    hostname,
				GeneratedAt: time.Now(),
			})
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				return fmt.Errorf("render %s: %w", output, err)
			}
			a.logger.Info("report written",
				slog.String("path", output),
				slog.Int("sections", set.Len()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "PDF output path (required)")
	cmd.Flags().StringVar(&hostname, "hostname", "", "Hostname shown in the report (default: this host)")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id shown in the report")
	return cmd
}
