package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hostaudit/hostaudit/pkg/duration"
	"github.com/hostaudit/hostaudit/pkg/metrics"
	"github.com/hostaudit/hostaudit/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var listen, metricsPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit HTTP API",
		Long: `Serve POST /api/audit and GET /api/report for the web front-end.

Stale artifacts left by an earlier process are swept and the inspection
script is checked before the listener opens. SIGINT/SIGTERM drains in-flight
requests and deletes every unfetched run's artifacts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.cfg.Server
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listen
			}
			if cmd.Flags().Changed("metrics-path") {
				cfg.MetricsPath = metricsPath
			}

			rec, err := metrics.New()
			if err != nil {
				return err
			}
			p, err := a.newPipeline(ctx, rec)
			if err != nil {
				return err
			}
			defer p.Close(ctx)

			if n, err := p.ctrl.Store().Sweep(duration.StaleArtifact); err != nil {
				a.logger.Warn("stale artifact sweep failed", slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.Info("swept stale artifacts", slog.Int("removed", n))
			}

			srv, err := server.New(p.ctrl, server.Options{
				ListenAddr:     cfg.ListenAddr,
				MaxConnections: cfg.MaxConnections,
				AuditRate:      cfg.AuditRate,
				AuditBurst:     cfg.AuditBurst,
				MetricsPath:    cfg.MetricsPath,
				ReportFilename: cfg.ReportFilename,
				Metrics:        rec,
				Logger:         a.logger,
			})
			if err != nil {
				return err
			}
			a.logger.Info("starting",
				slog.String("mode", string(a.cfg.Pipeline.Mode)),
				slog.String("output_root", p.ctrl.Store().Root()),
				slog.Bool("tracing", p.tracing.Enabled()))
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config, :3001)")
	cmd.Flags().StringVar(&metricsPath, "metrics-path", "", "Metrics path; empty string disables")
	return cmd
}
