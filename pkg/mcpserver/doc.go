// Package mcpserver exposes the audit pipeline as a Model Context Protocol
// (MCP) server so AI assistants can parse audit output and, on a host where
// the process already runs privileged, trigger an audit.
//
// # Tools
//
//   - parse_audit_output: parse raw inspection-script text into ordered
//     sections. Pure and local.
//   - run_audit: run the inspection script and return its sections. Only
//     registered when a controller in direct mode is supplied; the MCP
//     surface never accepts a credential.
//
// # Transports
//
// Only stdio is supported. Each client maps to a single process, so tools
// run synchronously.
//
// # Usage
//
//	srv := mcpserver.New(&mcpserver.Config{Controller: ctrl})
//	err := srv.RunStdio(ctx)
package mcpserver
