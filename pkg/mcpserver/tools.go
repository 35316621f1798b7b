package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hostaudit/hostaudit/pkg/audit"
	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/sections"
)

// registerTools adds every tool this configuration supports.
func (s *Server) registerTools() {
	s.addParseTool()
	if s.auditEnabled() {
		s.addRunAuditTool()
	}
}

// sectionsResult is shared by both tools. Results maps id to content in
// script order; Sections carries titles too.
type sectionsResult struct {
	Count    int                `json:"count"`
	Results  *ordereddict.Dict  `json:"results"`
	Sections []sections.Section `json:"sections"`
}

func newSectionsResult(set *sections.Set) sectionsResult {
	results := ordereddict.NewDict()
	list := set.Sections()
	for _, sec := range list {
		results.Set(strconv.Itoa(sec.ID), sec.Content)
	}
	if list == nil {
		list = []sections.Section{}
	}
	return sectionsResult{Count: set.Len(), Results: results, Sections: list}
}

// ═══════════════════════════════════════════════════════════════════════════
// parse_audit_output: offline section parsing
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addParseTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "parse_audit_output",
			Title: "Parse Audit Output",
			Description: `Parse raw audit-script text into numbered sections WITHOUT running anything.

USE THIS TOOL WHEN:
• The user pastes or attaches output of the audit script
• You want section-by-section structure from a saved audit text file

Headers look like "3. Listening Ports" and a section ends at a line of '#' characters. Text outside a section is ignored.

Returns: count, results (section id → content, in script order), sections (id, title, content).`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{
						"type":        "string",
						"description": "Raw audit output text.",
					},
				},
				"required": []string{"text"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Parse Audit Output",
			},
		},
		s.handleParse,
	)
}

type parseArgsInput struct {
	Text string `json:"text"`
}

func (s *Server) handleParse(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args parseArgsInput
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	if strings.TrimSpace(args.Text) == "" {
		return errorResult("text is required: pass the raw audit output"), nil
	}
	if int64(len(args.Text)) > defaults.MaxRawOutputBytes {
		return errorResult(fmt.Sprintf("text exceeds %d bytes", defaults.MaxRawOutputBytes)), nil
	}

	set := sections.ParseString(args.Text)
	if set.Len() == 0 {
		return errorResult(`no sections found: expected headers like "1. Title" closed by a line of '#'`), nil
	}
	return jsonResult(newSectionsResult(set))
}

// ═══════════════════════════════════════════════════════════════════════════
// run_audit: run the inspection script on this host (direct mode only)
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addRunAuditTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "run_audit",
			Title: "Run Host Audit",
			Description: `Run the privileged audit script on THIS host and return its sections.

The script inspects kernel, users, services, network and filesystem state. It can take several minutes and runs at most one bounded execution per call. Nothing is modified on the host.

Returns: run_id, metadata (timestamp, hostname, duration in seconds), count, results, sections. Artifacts are deleted before the tool returns.`,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: false,
				OpenWorldHint:  boolPtr(false),
				Title:          "Run Host Audit",
			},
		},
		s.handleRunAudit,
	)
}

type runMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Hostname  string    `json:"hostname"`
	Duration  float64   `json:"duration"`
}

type runAuditResult struct {
	RunID    string             `json:"run_id"`
	Metadata runMetadata        `json:"metadata"`
	Count    int                `json:"count"`
	Results  *ordereddict.Dict  `json:"results"`
	Sections []sections.Section `json:"sections"`
}

func (s *Server) handleRunAudit(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logToSession(ctx, req, logInfo, "audit started")

	run, err := s.ctrl.RunAudit(ctx, nil)
	if err != nil {
		logToSession(ctx, req, logWarning, audit.Outcome(err))
		return errorResult(describe(err)), nil
	}
	// There is no report download over MCP, so the run's artifacts go now.
	if err := s.ctrl.Discard(run.ID); err != nil {
		s.logger.Warn("discard failed", slog.String("run_id", run.ID), slog.String("error", err.Error()))
	}

	logToSession(ctx, req, logInfo, fmt.Sprintf("audit finished: %d sections", run.Sections.Len()))
	res := newSectionsResult(run.Sections)
	return jsonResult(runAuditResult{
		RunID: run.ID,
		Metadata: runMetadata{
			Timestamp: run.Metadata.Timestamp,
			Hostname:  run.Metadata.Hostname,
			Duration:  run.Metadata.DurationSeconds(),
		},
		Count:    res.Count,
		Results:  res.Results,
		Sections: res.Sections,
	})
}

// describe turns a controller error into a message the model can act on.
func describe(err error) string {
	var execErr *audit.ExecutionError
	switch {
	case errors.Is(err, audit.ErrUnauthorized):
		return "unauthorized: the server process is not privileged"
	case errors.As(err, &execErr):
		msg := err.Error()
		if len(execErr.Stderr) > 0 {
			msg += "\nstderr:\n" + string(execErr.Stderr)
		}
		return msg
	case errors.Is(err, audit.ErrEmptyResult):
		return "the audit script produced no sections"
	default:
		return err.Error()
	}
}
