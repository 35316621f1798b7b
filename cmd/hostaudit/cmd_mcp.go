package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hostaudit/hostaudit/pkg/audit"
	"github.com/hostaudit/hostaudit/pkg/config"
	"github.com/hostaudit/hostaudit/pkg/mcpserver"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

parse_audit_output is always available. run_audit is offered only in direct
mode when the inspection script passes preflight; the MCP surface never
accepts a credential.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var ctrl *audit.Controller
			if a.cfg.Pipeline.Mode == config.ModeDirect {
				p, err := a.newPipeline(ctx, nil)
				if err != nil {
					a.logger.Warn("run_audit disabled", slog.String("error", err.Error()))
				} else {
					defer p.Close(ctx)
					ctrl = p.ctrl
				}
			}

			srv := mcpserver.New(&mcpserver.Config{Controller: ctrl, Logger: a.logger})
			return srv.RunStdio(ctx)
		},
	}
}
