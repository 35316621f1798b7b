package main

import (
	"context"
	"log/slog"

	"github.com/hostaudit/hostaudit/pkg/audit"
	"github.com/hostaudit/hostaudit/pkg/metrics"
	"github.com/hostaudit/hostaudit/pkg/report"
	"github.com/hostaudit/hostaudit/pkg/tracing"
)

// pipeline bundles a controller with the telemetry it reports to.
type pipeline struct {
	ctrl    *audit.Controller
	metrics *metrics.Recorder
	tracing *tracing.Provider
	logger  *slog.Logger
}

// newPipeline builds the controller for a.cfg and runs its preflight. rec
// may be nil.
func (a *app) newPipeline(ctx context.Context, rec *metrics.Recorder) (*pipeline, error) {
	tp, err := tracing.Setup(ctx, tracing.Options{
		Endpoint:    a.cfg.Telemetry.Endpoint,
		ServiceName: a.cfg.Telemetry.ServiceName,
		Insecure:    a.cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, err
	}

	ctrl, err := audit.New(a.cfg.Pipeline, audit.Options{
		Renderer: report.New(report.Config{Author: a.cfg.Report.Author, Title: a.cfg.Report.Title}),
		Metrics:  rec,
		Tracer:   tp.Tracer(),
		Logger:   a.logger,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	if err := ctrl.Preflight(); err != nil {
		_ = ctrl.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return &pipeline{ctrl: ctrl, metrics: rec, tracing: tp, logger: a.logger}, nil
}

// Close deletes outstanding artifacts and flushes spans.
func (p *pipeline) Close(ctx context.Context) {
	if err := p.ctrl.Close(); err != nil {
		p.logger.Warn("controller close", slog.String("error", err.Error()))
	}
	if err := p.tracing.Shutdown(context.WithoutCancel(ctx)); err != nil {
		p.logger.Warn("tracing shutdown", slog.String("error", err.Error()))
	}
}
