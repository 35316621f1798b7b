package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostaudit/hostaudit/pkg/cli"
	"github.com/hostaudit/hostaudit/pkg/config"
	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/logging"
	"github.com/hostaudit/hostaudit/pkg/ui"
)

// globalFlags are shared by every subcommand. Pipeline flags override the
// config file only when set explicitly.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool

	outputRoot string
	scriptPath string
	mode       string
	sudoPath   string
	timeout    time.Duration
}

// app is the state built by the root command before any subcommand runs.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   defaults.ToolName,
		Short: "Privileged Linux host audit with PDF reports",
		Long: `hostaudit runs an inspection script with elevated privileges, parses its
output into numbered sections and renders them into a PDF report.

Every artifact a run produces lives under the output root and is deleted
once its report has been delivered.`,
		Version:       defaults.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.flags.configPath, "config", "c", "", "YAML config file")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&a.flags.logFormat, "log-format", "", "Log format: text or json")
	f.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")
	f.StringVar(&a.flags.outputRoot, "output-root", defaults.OutputRoot, "Directory for run artifacts")
	f.StringVar(&a.flags.scriptPath, "script", defaults.ScriptPath, "Inspection script path")
	f.StringVar(&a.flags.mode, "mode", string(config.ModeSudo), "Privilege mode: sudo or direct")
	f.StringVar(&a.flags.sudoPath, "sudo", defaults.SudoPath, "sudo binary used in sudo mode")
	f.DurationVar(&a.flags.timeout, "timeout", 0, "Script timeout (default from config, 5m)")

	root.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newParseCmd(a),
		newRenderCmd(a),
		newMCPCmd(a),
	)
	return root
}

// setup loads configuration, applies flag overrides and installs logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("output-root") {
		cfg.Pipeline.OutputRoot = a.flags.outputRoot
	}
	if flags.Changed("script") {
		cfg.Pipeline.ScriptPath = a.flags.scriptPath
	}
	if flags.Changed("mode") {
		cfg.Pipeline.Mode = config.Mode(a.flags.mode)
	}
	if flags.Changed("sudo") {
		cfg.Pipeline.SudoPath = a.flags.sudoPath
	}
	if flags.Changed("timeout") {
		cfg.Pipeline.Timeout = a.flags.timeout
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		cfg.Log.Format = a.flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return &cli.UsageError{Err: err}
	}
	// stdout belongs to command output (and the MCP transport).
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())

	if a.flags.noColor || os.Getenv("NO_COLOR") != "" || !ui.IsTerminal(os.Stdout) {
		ui.SetNoColor(true)
	}

	a.cfg = cfg
	a.logger = logging.New(cmd.Name())
	return nil
}

// openInput opens path for reading; "-" is stdin.
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &cli.UsageError{Err: fmt.Errorf("open %s: %w", path, err)}
	}
	return f, func() { _ = f.Close() }, nil
}
