package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hostaudit/hostaudit/pkg/audit"
	"github.com/hostaudit/hostaudit/pkg/config"
	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/jsonutil"
	"github.com/hostaudit/hostaudit/pkg/logging"
)

// The MCP SDK defines LoggingLevel as a raw string type without exported
// constants.
const (
	logInfo    mcp.LoggingLevel = "info"
	logWarning mcp.LoggingLevel = "warning"
)

// Config holds MCP server configuration.
type Config struct {
	// Controller enables run_audit when it is in direct mode. Nil leaves
	// only the offline tools.
	Controller *audit.Controller

	Logger *slog.Logger
}

// Server wraps the MCP server with the audit tools.
type Server struct {
	mcp    *mcp.Server
	ctrl   *audit.Controller
	logger *slog.Logger
}

// MCPServer returns the underlying MCP server for direct access (e.g., testing).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// New creates an MCP server with all tools and resources registered.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Server{
		ctrl:   cfg.Controller,
		logger: logging.OrDefault(cfg.Logger).With(slog.String("component", "mcp")),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    defaults.ToolName,
			Title:   "Host Audit MCP Server",
			Version: defaults.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	s.registerResources()
	return s
}

// auditEnabled reports whether run_audit can be offered. Sudo mode needs a
// credential, which this surface never accepts.
func (s *Server) auditEnabled() bool {
	return s.ctrl != nil && s.ctrl.Mode() == config.ModeDirect
}

// RunStdio runs the MCP server over stdio transport until ctx is done or the
// client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("stdio transport started", slog.Bool("run_audit", s.auditEnabled()))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

const serverInstructions = `Host Audit inspects a Linux host with a privileged audit script and returns the output as numbered sections.

TOOLS:
• parse_audit_output: parse raw audit text you already have into ordered sections. No side effects.
• run_audit: run the audit on this host and return its sections. Only present when the server runs privileged in direct mode.

Sections are opened by a line "<number>. <title>" and closed by a line of '#' characters. Results keep script order.`

// ---------------------------------------------------------------------------
// Helpers: result builders
// ---------------------------------------------------------------------------

// logToSession sends a structured log message to the MCP client.
func logToSession(ctx context.Context, req *mcp.CallToolRequest, level mcp.LoggingLevel, data any) {
	if req.Session == nil {
		return
	}
	// Best-effort: log delivery is advisory.
	_ = req.Session.Log(ctx, &mcp.LoggingMessageParams{
		Level:  level,
		Logger: defaults.ToolName,
		Data:   data,
	})
}

// textResult creates a CallToolResult with a single text content block.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// jsonResult marshals v to indented JSON and wraps it in a CallToolResult.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := jsonutil.MarshalIndent(v, "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult creates an IsError CallToolResult so the model can see the
// error and self-correct rather than raising a protocol-level exception.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// boolPtr returns a pointer to b. Used for optional bool fields in the SDK.
func boolPtr(b bool) *bool { return &b }

// parseArgs unmarshals the raw JSON arguments from a tool call into dst.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := jsonutil.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}
