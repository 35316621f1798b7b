// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for runtime configuration defaults.
//
// Usage:
//
//	cfg.MaxConnections = defaults.MaxConnections
//	w.Header().Set("Content-Type", defaults.ContentTypePDF)
//
// DO NOT use hardcoded values like `MaxConnections: 64` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current hostaudit version
const Version = "1.3.0"

// ToolName is used for service names, user agents and MCP implementation info.
const ToolName = "hostaudit"

// ============================================================================
// INSPECTION SCRIPT CONTRACT
// ============================================================================
//
// The inspection script writes plain text whose sections are separated by a
// delimiter line and opened by "<int>. <title>" headers.
// ============================================================================

const (
	// DelimiterChar is the character a section terminator line is made of.
	DelimiterChar = '#'

	// DelimiterMinRun is the shortest run of DelimiterChar accepted as a terminator (3)
	DelimiterMinRun = 3

	// DelimiterWidth is the width used when re-emitting delimiter lines (47)
	DelimiterWidth = 47

	// ScriptPath is the default location of the inspection script
	ScriptPath = "./scripts/LinuxAudit.sh"

	// OutputRoot is the default artifact directory
	OutputRoot = "./outputs"

	// SudoPath is the default privilege-elevation binary
	SudoPath = "sudo"
)

// ScriptArgs returns the leading arguments passed before the output path.
// The stock script expects a non-interactive "Y" confirmation.
func ScriptArgs() []string {
	return []string{"Y"}
}

// ============================================================================
// SIZE LIMITS
// ============================================================================

const (
	// MaxCaptureBytes caps captured stdout/stderr of a subprocess (1MB)
	MaxCaptureBytes int64 = 1024 * 1024

	// MaxRawOutputBytes caps the raw audit text read back from disk (64MB)
	MaxRawOutputBytes int64 = 64 * 1024 * 1024

	// MaxRequestBodyBytes caps JSON request bodies on the HTTP surface (8KB)
	MaxRequestBodyBytes int64 = 8 * 1024
)

// ============================================================================
// FILESYSTEM PERMISSIONS
// ============================================================================

const (
	// DirPerm is used for the output root
	DirPerm = 0o750

	// FilePerm is used for every artifact
	FilePerm = 0o600
)

// ============================================================================
// SERVER SETTINGS
// ============================================================================

const (
	// ListenAddr matches the port the original web front-end expects
	ListenAddr = ":3001"

	// MaxConnections caps concurrently accepted HTTP connections (64)
	MaxConnections = 64

	// AuditRatePerSecond is the sustained rate of POST /api/audit (1)
	AuditRatePerSecond = 1.0

	// AuditBurst is the burst size of POST /api/audit (2)
	AuditBurst = 2

	// MetricsPath is where Prometheus metrics are served
	MetricsPath = "/metrics"

	// ReportFilename is the download filename template (text/template + sprig)
	ReportFilename = `audit-{{ .Hostname | default "host" }}-{{ dateInZone "20060102-150405" .GeneratedAt "UTC" }}.pdf`
)

// ============================================================================
// HTTP CONTENT TYPES
// ============================================================================

const (
	// ContentTypeJSON is application/json
	ContentTypeJSON = "application/json"

	// ContentTypePDF is application/pdf
	ContentTypePDF = "application/pdf"

	// ContentTypePlain is text/plain
	ContentTypePlain = "text/plain; charset=utf-8"
)

// UserAgent returns the identification string used in logs and MCP metadata.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", ToolName, Version)
}
