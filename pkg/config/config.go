// Package config holds the pipeline, server and telemetry settings. Values
// come from Default(), an optional YAML file, and finally CLI flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/duration"
	"gopkg.in/yaml.v3"
)

// Mode selects how the inspection script obtains privileges.
type Mode string

const (
	// ModeSudo verifies a caller-supplied credential and elevates through sudo.
	ModeSudo Mode = "sudo"

	// ModeDirect runs the script as the current (already privileged) user
	// and accepts no credential.
	ModeDirect Mode = "direct"
)

// Config holds all runtime configuration.
type Config struct {
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Server    ServerConfig    `yaml:"server"`
	Report    ReportConfig    `yaml:"report"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// PipelineConfig is everything the audit controller needs. It is passed
// explicitly at construction; nothing in the pipeline reads globals.
type PipelineConfig struct {
	OutputRoot string        `yaml:"output_root"`
	ScriptPath string        `yaml:"script_path"`
	ScriptArgs []string      `yaml:"script_args"` // placed before the output path
	Timeout    time.Duration `yaml:"timeout"`
	Mode       Mode          `yaml:"mode"`
	SudoPath   string        `yaml:"sudo_path"`
	RunTTL     time.Duration `yaml:"run_ttl"` // unfetched runs expire after this
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddr     string  `yaml:"listen_addr"`
	MaxConnections int     `yaml:"max_connections"`
	AuditRate      float64 `yaml:"audit_rate"` // POST /api/audit per second
	AuditBurst     int     `yaml:"audit_burst"`
	MetricsPath    string  `yaml:"metrics_path"` // empty disables /metrics
	ReportFilename string  `yaml:"report_filename"`
}

// ReportConfig sets PDF labels. Empty fields keep the renderer defaults.
type ReportConfig struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

// TelemetryConfig configures OTLP trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// LogConfig configures the slog default handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns a configuration mirroring the stock deployment.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			OutputRoot: defaults.OutputRoot,
			ScriptPath: defaults.ScriptPath,
			ScriptArgs: defaults.ScriptArgs(),
			Timeout:    duration.ScriptTimeout,
			Mode:       ModeSudo,
			SudoPath:   defaults.SudoPath,
			RunTTL:     duration.RunTTL,
		},
		Server: ServerConfig{
			ListenAddr:     defaults.ListenAddr,
			MaxConnections: defaults.MaxConnections,
			AuditRate:      defaults.AuditRatePerSecond,
			AuditBurst:     defaults.AuditBurst,
			MetricsPath:    defaults.MetricsPath,
			ReportFilename: defaults.ReportFilename,
		},
		Report: ReportConfig{
			Author: defaults.ToolName,
		},
		Telemetry: TelemetryConfig{
			ServiceName: defaults.ToolName,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load returns Default() overlaid with the YAML file at path. An empty path
// skips the file. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks required fields and bounds.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.OutputRoot == "" {
		return fmt.Errorf("%w: pipeline.output_root", ErrMissingRequired)
	}
	if p.ScriptPath == "" {
		return fmt.Errorf("%w: pipeline.script_path", ErrMissingRequired)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%w: pipeline.timeout must be positive (got %v)", ErrInvalidConfig, p.Timeout)
	}
	switch p.Mode {
	case ModeSudo:
		if p.SudoPath == "" {
			return fmt.Errorf("%w: pipeline.sudo_path", ErrMissingRequired)
		}
	case ModeDirect:
	default:
		return fmt.Errorf("%w: pipeline.mode %q (want sudo or direct)", ErrInvalidConfig, p.Mode)
	}
	if p.RunTTL <= 0 {
		return fmt.Errorf("%w: pipeline.run_ttl must be positive (got %v)", ErrInvalidConfig, p.RunTTL)
	}

	s := c.Server
	if s.ListenAddr == "" {
		return fmt.Errorf("%w: server.listen_addr", ErrMissingRequired)
	}
	if s.MaxConnections <= 0 {
		return fmt.Errorf("%w: server.max_connections must be positive", ErrInvalidConfig)
	}
	if s.AuditRate <= 0 || s.AuditBurst < 1 {
		return fmt.Errorf("%w: server.audit_rate/audit_burst must be positive", ErrInvalidConfig)
	}
	if s.ReportFilename == "" {
		return fmt.Errorf("%w: server.report_filename", ErrMissingRequired)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (want text or json)", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}
