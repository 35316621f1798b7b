package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostaudit.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestConfigDefaults verifies default values are set correctly
func TestConfigDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}

	if cfg.Pipeline.Timeout != 300*time.Second {
		t.Errorf("Timeout default: got %v, want 300s", cfg.Pipeline.Timeout)
	}
	if cfg.Pipeline.Mode != ModeSudo {
		t.Errorf("Mode default: got %q, want sudo", cfg.Pipeline.Mode)
	}
	if len(cfg.Pipeline.ScriptArgs) != 1 || cfg.Pipeline.ScriptArgs[0] != "Y" {
		t.Errorf("ScriptArgs default: got %v, want [Y]", cfg.Pipeline.ScriptArgs)
	}
	if cfg.Server.ListenAddr != ":3001" {
		t.Errorf("ListenAddr default: got %q, want :3001", cfg.Server.ListenAddr)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format default: got %q, want text", cfg.Log.Format)
	}
}

// TestDefaultScriptArgsNotShared verifies callers cannot mutate each other's defaults
func TestDefaultScriptArgsNotShared(t *testing.T) {
	a := Default()
	a.Pipeline.ScriptArgs[0] = "N"
	if b := Default(); b.Pipeline.ScriptArgs[0] != "Y" {
		t.Errorf("Default() leaked a shared ScriptArgs slice: %v", b.Pipeline.ScriptArgs)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  output_root: /var/lib/hostaudit
  script_path: /opt/audit/run.sh
  script_args: []
  timeout: 90s
  mode: direct
server:
  listen_addr: 127.0.0.1:9000
report:
  title: Weekly Audit
log:
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pipeline.OutputRoot != "/var/lib/hostaudit" {
		t.Errorf("OutputRoot: got %q", cfg.Pipeline.OutputRoot)
	}
	if cfg.Pipeline.Timeout != 90*time.Second {
		t.Errorf("Timeout: got %v, want 90s", cfg.Pipeline.Timeout)
	}
	if cfg.Pipeline.Mode != ModeDirect {
		t.Errorf("Mode: got %q, want direct", cfg.Pipeline.Mode)
	}
	if len(cfg.Pipeline.ScriptArgs) != 0 {
		t.Errorf("ScriptArgs: got %v, want empty", cfg.Pipeline.ScriptArgs)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Report.Title != "Weekly Audit" {
		t.Errorf("Report.Title: got %q", cfg.Report.Title)
	}
	// untouched keys keep their defaults
	if cfg.Report.Author != "hostaudit" {
		t.Errorf("Report.Author: got %q, want default", cfg.Report.Author)
	}
	if cfg.Server.MaxConnections != 64 {
		t.Errorf("MaxConnections: got %d, want default 64", cfg.Server.MaxConnections)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load(empty) failed: %v", err)
	}
	if cfg.Pipeline.ScriptPath != "./scripts/LinuxAudit.sh" {
		t.Errorf("ScriptPath: got %q", cfg.Pipeline.ScriptPath)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "pipeline:\n  scriptpath: oops\n"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want os.ErrNotExist, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing output root", func(c *Config) { c.Pipeline.OutputRoot = "" }, ErrMissingRequired},
		{"missing script", func(c *Config) { c.Pipeline.ScriptPath = "" }, ErrMissingRequired},
		{"zero timeout", func(c *Config) { c.Pipeline.Timeout = 0 }, ErrInvalidConfig},
		{"unknown mode", func(c *Config) { c.Pipeline.Mode = "su" }, ErrInvalidConfig},
		{"sudo without binary", func(c *Config) { c.Pipeline.SudoPath = "" }, ErrMissingRequired},
		{"zero ttl", func(c *Config) { c.Pipeline.RunTTL = 0 }, ErrInvalidConfig},
		{"no listen addr", func(c *Config) { c.Server.ListenAddr = "" }, ErrMissingRequired},
		{"zero connections", func(c *Config) { c.Server.MaxConnections = 0 }, ErrInvalidConfig},
		{"zero burst", func(c *Config) { c.Server.AuditBurst = 0 }, ErrInvalidConfig},
		{"no filename", func(c *Config) { c.Server.ReportFilename = "" }, ErrMissingRequired},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDirectModeIgnoresSudoPath(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Mode = ModeDirect
	cfg.Pipeline.SudoPath = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("direct mode should not require sudo_path: %v", err)
	}
}
