package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/jsonutil"
)

const versionURI = "hostaudit://version"

// registerResources adds the read-only resources.
func (s *Server) registerResources() {
	s.addVersionResource()
}

func (s *Server) addVersionResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         versionURI,
			Name:        "Host Audit Version",
			Description: "Server version, mode and tool inventory.",
			MIMEType:    "application/json",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			tools := []string{"parse_audit_output"}
			mode := "offline"
			if s.auditEnabled() {
				tools = append(tools, "run_audit")
				mode = string(s.ctrl.Mode())
			}
			data, err := jsonutil.MarshalIndent(map[string]any{
				"name":    defaults.ToolName,
				"version": defaults.Version,
				"mode":    mode,
				"tools":   tools,
			}, "  ")
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: versionURI, MIMEType: "application/json", Text: string(data)},
				},
			}, nil
		},
	)
}
