// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.ScriptTimeout)
//	srv.ReadHeaderTimeout = duration.HTTPReadHeader
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// SUBPROCESS BOUNDS
// ============================================================================
//
// Use these for the privileged inspection script and the privilege probe.
// ============================================================================

const (
	// ScriptTimeout is the hard wall-clock bound on one audit run (5min)
	ScriptTimeout = 5 * time.Minute

	// VerifyTimeout bounds the side-effect-free privilege probe (30s)
	VerifyTimeout = 30 * time.Second

	// KillGrace is how long a terminated process group gets before SIGKILL (5s)
	KillGrace = 5 * time.Second
)

// ============================================================================
// HTTP SERVER TIMEOUTS
// ============================================================================
//
// The write timeout must exceed ScriptTimeout because POST /api/audit blocks
// until the script finishes.
// ============================================================================

const (
	// HTTPReadHeader bounds reading request headers (10s)
	HTTPReadHeader = 10 * time.Second

	// HTTPRead bounds reading a full request (30s)
	HTTPRead = 30 * time.Second

	// HTTPWrite bounds writing a response, including a full audit run (6min)
	HTTPWrite = 6 * time.Minute

	// HTTPIdle is the keep-alive idle timeout (2min)
	HTTPIdle = 2 * time.Minute

	// ShutdownGrace bounds graceful server shutdown (30s)
	ShutdownGrace = 30 * time.Second
)

// ============================================================================
// RUN LIFECYCLE
// ============================================================================

const (
	// RunTTL is how long a parsed run waits for its report to be fetched (30min)
	RunTTL = 30 * time.Minute

	// StaleArtifact is the age after which leftover artifacts are swept (1h)
	StaleArtifact = 1 * time.Hour
)

// ============================================================================
// TELEMETRY
// ============================================================================

const (
	// TelemetryConnect bounds establishing the OTLP exporter (10s)
	TelemetryConnect = 10 * time.Second

	// TelemetryShutdown bounds flushing spans on exit (5s)
	TelemetryShutdown = 5 * time.Second
)
