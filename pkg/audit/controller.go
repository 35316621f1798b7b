// Package audit orchestrates one audit run end to end: verify the caller's
// privilege, run the inspection script with a hard timeout, parse its output
// into sections, and later render and stream the PDF report before deleting
// every artifact the run produced.
//
// RunAudit and FetchReport block the calling goroutine; callers choose their
// own concurrency around them. Runs are independent of each other and own
// disjoint artifacts, so no run-level lock is held across calls.
package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hostaudit/hostaudit/pkg/artifact"
	"github.com/hostaudit/hostaudit/pkg/config"
	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/duration"
	"github.com/hostaudit/hostaudit/pkg/logging"
	"github.com/hostaudit/hostaudit/pkg/metrics"
	"github.com/hostaudit/hostaudit/pkg/privilege"
	"github.com/hostaudit/hostaudit/pkg/procexec"
	"github.com/hostaudit/hostaudit/pkg/report"
	"github.com/hostaudit/hostaudit/pkg/sections"
	"github.com/hostaudit/hostaudit/pkg/tracing"
)

// Options are the Controller's collaborators. Zero values select defaults.
type Options struct {
	// Verifier proves privilege. Defaults to a sudo verifier in sudo mode
	// and an effective-uid check in direct mode.
	Verifier privilege.Verifier

	// Renderer produces the PDF. Defaults to report.New(report.Config{}).
	Renderer *report.Renderer

	Metrics *metrics.Recorder
	Tracer  trace.Tracer
	Logger  *slog.Logger

	// Hostname and Now are overridable for tests.
	Hostname func() (string, error)
	Now      func() time.Time
}

// Controller runs audits against one PipelineConfig.
type Controller struct {
	cfg      config.PipelineConfig
	store    *artifact.Store
	verifier privilege.Verifier
	renderer *report.Renderer
	metrics  *metrics.Recorder
	tracer   trace.Tracer
	logger   *slog.Logger
	hostname func() (string, error)
	now      func() time.Time
	runs     *registry
	closed   atomic.Bool
}

// New builds a Controller. It does not touch the filesystem; call Preflight
// before serving.
func New(cfg config.PipelineConfig, opts Options) (*Controller, error) {
	if cfg.ScriptPath == "" {
		return nil, fmt.Errorf("%w: pipeline.script_path", config.ErrMissingRequired)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = duration.ScriptTimeout
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = duration.RunTTL
	}
	if cfg.Mode == "" {
		cfg.Mode = config.ModeSudo
	}
	if cfg.SudoPath == "" {
		cfg.SudoPath = defaults.SudoPath
	}
	script, err := filepath.Abs(cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("%w: script path: %v", config.ErrInvalidConfig, err)
	}
	cfg.ScriptPath = script
	cfg.ScriptArgs = append([]string(nil), cfg.ScriptArgs...)

	logger := logging.OrDefault(opts.Logger).With(slog.String("component", "audit"))
	store, err := artifact.New(cfg.OutputRoot, logger)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:      cfg,
		store:    store,
		verifier: opts.Verifier,
		renderer: opts.Renderer,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   logger,
		hostname: opts.Hostname,
		now:      opts.Now,
	}
	if c.verifier == nil {
		switch cfg.Mode {
		case config.ModeDirect:
			c.verifier = &privilege.EffectiveUIDVerifier{}
		default:
			c.verifier = &privilege.SudoVerifier{SudoPath: cfg.SudoPath, Logger: logger}
		}
	}
	if c.renderer == nil {
		c.renderer = report.New(report.Config{})
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracing.InstrumentationName)
	}
	if c.hostname == nil {
		c.hostname = os.Hostname
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.runs = newRegistry(cfg.RunTTL, c.expire)
	return c, nil
}

// Store exposes the artifact store the controller writes to.
func (c *Controller) Store() *artifact.Store { return c.store }

// Mode returns the configured deployment mode.
func (c *Controller) Mode() config.Mode { return c.cfg.Mode }

// Preflight prepares the output root and checks that the script (and sudo,
// in sudo mode) can be executed.
func (c *Controller) Preflight() error {
	if err := c.store.Init(); err != nil {
		return err
	}
	fi, err := os.Stat(c.cfg.ScriptPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScriptUnavailable, err)
	}
	if !fi.Mode().IsRegular() || fi.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s is not an executable file", ErrScriptUnavailable, filepath.Base(c.cfg.ScriptPath))
	}
	if c.cfg.Mode == config.ModeSudo {
		if _, err := exec.LookPath(c.cfg.SudoPath); err != nil {
			return fmt.Errorf("%w: %v", ErrScriptUnavailable, err)
		}
	}
	return nil
}

// RunAudit verifies cred, runs the script, and parses its output. The
// credential is wiped before RunAudit returns, whatever the outcome. On
// success the returned run is registered for FetchReport.
func (c *Controller) RunAudit(ctx context.Context, cred *privilege.Credential) (*Run, error) {
	defer cred.Wipe()

	start := c.now()
	ctx, span := c.tracer.Start(ctx, "audit.RunAudit",
		trace.WithAttributes(attribute.String("audit.mode", string(c.cfg.Mode))))
	defer span.End()

	c.metrics.RunStarted()
	run, err := c.runAudit(ctx, cred, start)
	outcome := Outcome(err)
	c.metrics.RunFinished(outcome, c.now().Sub(start))

	span.SetAttributes(attribute.String("audit.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.Warn("audit run failed", slog.String("outcome", outcome), slog.String("error", err.Error()))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("audit.run_id", run.ID),
		attribute.Int("audit.sections", run.Sections.Len()),
	)
	c.logger.Info("audit run parsed",
		slog.String("run_id", run.ID),
		slog.Int("sections", run.Sections.Len()),
		slog.Duration("duration", run.Metadata.Duration))
	return run, nil
}

func (c *Controller) runAudit(ctx context.Context, cred *privilege.Credential, start time.Time) (*Run, error) {
	ok, err := c.verify(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !ok {
		return nil, ErrUnauthorized
	}

	run := &Run{ID: uuid.NewString(), CreatedAt: start, Status: StatusPending}
	raw, err := c.store.Create(run.ID, artifact.RawText)
	if err != nil {
		return nil, err
	}
	run.raw = raw
	run.Status = StatusCollecting

	if err := c.execute(ctx, cred, raw); err != nil {
		c.fail(run)
		return nil, err
	}

	set, err := c.collect(raw)
	if err != nil {
		c.fail(run)
		return nil, err
	}

	host, herr := c.hostname()
	if herr != nil {
		host = ""
	}
	end := c.now()
	run.Sections = set
	run.Metadata = Metadata{Timestamp: end, Hostname: host, Duration: end.Sub(start)}
	run.Status = StatusParsed

	if err := c.runs.put(run); err != nil {
		c.fail(run)
		return nil, fmt.Errorf("%w: register run: %v", ErrArtifactIO, err)
	}
	return run, nil
}

func (c *Controller) verify(ctx context.Context, cred *privilege.Credential) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "audit.verify")
	defer span.End()
	if c.cfg.Mode == config.ModeSudo && cred == nil {
		return false, privilege.ErrEmptyCredential
	}
	return c.verifier.Verify(ctx, cred)
}

// execute spawns the script with raw's path as its output destination. In
// sudo mode the credential is consumed here and fed to sudo exactly once.
func (c *Controller) execute(ctx context.Context, cred *privilege.Credential, raw artifact.Handle) error {
	ctx, span := c.tracer.Start(ctx, "audit.execute")
	defer span.End()

	args := append(append([]string(nil), c.cfg.ScriptArgs...), raw.Path())
	cmd := procexec.Command{
		Path:    c.cfg.ScriptPath,
		Args:    args,
		Timeout: c.cfg.Timeout,
	}
	if c.cfg.Mode == config.ModeSudo {
		secret, err := cred.Consume()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		input := privilege.InputFor(secret)
		privilege.Zero(secret)
		defer privilege.Zero(input)

		cmd.Path = c.cfg.SudoPath
		cmd.Args = privilege.SudoArgs(append([]string{c.cfg.ScriptPath}, args...)...)
		cmd.Stdin = input
	}

	res, err := procexec.Run(ctx, cmd)
	if res != nil {
		span.SetAttributes(attribute.Int("process.exit_code", res.ExitCode))
	}
	if err == nil {
		if res.Truncated {
			c.logger.Warn("script output capture was cut short",
				slog.Int("stdout_bytes", len(res.Stdout)),
				slog.Int("stderr_bytes", len(res.Stderr)))
		}
		return nil
	}
	execErr := &ExecutionError{ExitCode: -1, Err: err}
	if res != nil {
		execErr.Stdout = res.Stdout
		execErr.Stderr = res.Stderr
		execErr.ExitCode = res.ExitCode
		execErr.TimedOut = res.TimedOut
		execErr.Truncated = res.Truncated
	}
	span.RecordError(execErr)
	return execErr
}

// collect reads the raw artifact back and parses it. Missing, blank or
// section-less output is ErrEmptyResult.
func (c *Controller) collect(raw artifact.Handle) (*sections.Set, error) {
	data, err := c.store.Read(raw, defaults.MaxRawOutputBytes)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: output file missing", ErrEmptyResult)
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: output file is empty", ErrEmptyResult)
	}
	set, err := sections.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse output: %v", ErrArtifactIO, err)
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: no sections in %d bytes of output", ErrEmptyResult, len(data))
	}
	return set, nil
}

// fail marks run failed and removes whatever it left on disk.
func (c *Controller) fail(run *Run) {
	run.Status = StatusFailed
	if run.claim() {
		c.deleteArtifacts(run, artifact.Handle{})
	}
}

// Lookup returns a registered run.
func (c *Controller) Lookup(runID string) (*Run, bool) {
	return c.runs.get(runID)
}

// Pending returns the number of runs waiting for their report.
func (c *Controller) Pending() int { return c.runs.len() }

// Discard drops a run without rendering it and deletes its artifacts.
func (c *Controller) Discard(runID string) error {
	run, ok := c.runs.get(runID)
	if !ok || !run.claim() {
		return ErrRunNotFound
	}
	c.runs.remove(runID)
	return c.deleteArtifacts(run, artifact.Handle{})
}

// Close deletes the artifacts of every outstanding run and stops expiry.
// Later calls do nothing.
func (c *Controller) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, run := range c.runs.all() {
		if !run.claim() {
			continue
		}
		if err := c.deleteArtifacts(run, artifact.Handle{}); err != nil {
			errs = append(errs, err)
		}
	}
	c.runs.close()
	return errors.Join(errs...)
}

func (c *Controller) expire(run *Run) {
	if !run.claim() {
		return
	}
	c.metrics.RunExpired()
	c.logger.Info("audit run expired before its report was fetched", slog.String("run_id", run.ID))
	_ = c.deleteArtifacts(run, artifact.Handle{})
}

// deleteArtifacts removes the run's raw output and, if set, its report.
// Failures are logged and returned but never stop the other deletion.
func (c *Controller) deleteArtifacts(run *Run, rep artifact.Handle) error {
	var errs []error
	for _, h := range []artifact.Handle{run.raw, rep} {
		if h.IsZero() {
			continue
		}
		if err := c.store.Delete(h); err != nil {
			c.logger.Warn("artifact cleanup failed",
				slog.String("run_id", run.ID),
				slog.String("artifact", h.Name()),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		c.metrics.ArtifactDeleted(h.Kind().String())
	}
	return errors.Join(errs...)
}
