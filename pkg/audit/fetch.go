package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hostaudit/hostaudit/pkg/artifact"
	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/metrics"
	"github.com/hostaudit/hostaudit/pkg/report"
	"github.com/hostaudit/hostaudit/pkg/sections"
)

// Report is a rendered PDF ready to stream. Reading it to EOF, hitting a
// read error, or closing it deletes the run's artifacts, exactly once.
// Callers must always Close it.
type Report struct {
	io.ReadCloser

	Size        int64
	Checksum    string // murmur3 64-bit hash of the PDF bytes, hex
	GeneratedAt time.Time
	Run         *Run
}

// FetchReport renders the report for runID, writes it to the artifact store
// and returns a stream over it. A run can be fetched once; later calls get
// ErrRunNotFound. If rendering fails the run's artifacts are deleted.
func (c *Controller) FetchReport(ctx context.Context, runID string) (*Report, error) {
	_, span := c.tracer.Start(ctx, "audit.FetchReport")
	defer span.End()
	span.SetAttributes(attribute.String("audit.run_id", runID))

	rep, err := c.fetchReport(runID)
	if err != nil {
		outcome := metrics.ReportFailed
		if errors.Is(err, ErrRunNotFound) {
			outcome = metrics.ReportNotFound
		}
		c.metrics.ReportFetched(outcome, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	c.metrics.ReportFetched(metrics.ReportServed, rep.Size)
	span.SetAttributes(attribute.Int64("report.size", rep.Size))
	return rep, nil
}

func (c *Controller) fetchReport(runID string) (*Report, error) {
	run, ok := c.runs.get(runID)
	if !ok || !run.claim() {
		return nil, ErrRunNotFound
	}
	c.runs.remove(runID)

	set := run.Sections
	if set == nil {
		var err error
		if set, err = c.reparse(run); err != nil {
			_ = c.deleteArtifacts(run, artifact.Handle{})
			return nil, err
		}
	}

	pdfH, err := c.store.Create(run.ID, artifact.Report)
	if err != nil {
		_ = c.deleteArtifacts(run, artifact.Handle{})
		return nil, err
	}

	generated := c.now()
	meta := report.Metadata{
		RunID:       run.ID,
		Hostname:    run.Metadata.Hostname,
		GeneratedAt: generated,
		Duration:    run.Metadata.Duration,
	}
	hash := murmur3.New64()
	err = c.store.WriteFrom(pdfH, func(w io.Writer) error {
		return c.renderer.Render(io.MultiWriter(w, hash), set, meta)
	})
	if err != nil {
		_ = c.deleteArtifacts(run, pdfH)
		return nil, err
	}

	f, err := c.store.Open(pdfH)
	if err != nil {
		_ = c.deleteArtifacts(run, pdfH)
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		_ = c.deleteArtifacts(run, pdfH)
		return nil, fmt.Errorf("%w: stat report: %w", ErrArtifactIO, err)
	}

	stream := &reportStream{
		f: f,
		cleanup: func() {
			_ = c.deleteArtifacts(run, pdfH)
		},
	}
	c.logger.Info("report ready",
		slog.String("run_id", run.ID),
		slog.String("artifact", pdfH.Name()),
		slog.Int64("size", fi.Size()))

	return &Report{
		ReadCloser:  stream,
		Size:        fi.Size(),
		Checksum:    fmt.Sprintf("%016x", hash.Sum64()),
		GeneratedAt: generated,
		Run:         run,
	}, nil
}

// reparse rebuilds the section set from the raw artifact.
func (c *Controller) reparse(run *Run) (*sections.Set, error) {
	data, err := c.store.Read(run.raw, defaults.MaxRawOutputBytes)
	if err != nil {
		return nil, err
	}
	return sections.Parse(bytes.NewReader(data))
}

// reportStream deletes the run's artifacts after the last byte is read, on
// the first read error, or on Close, whichever comes first.
type reportStream struct {
	f       *os.File
	once    sync.Once
	cleanup func()
}

func (s *reportStream) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	if err != nil {
		s.finish()
	}
	return n, err
}

func (s *reportStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.f.Close()
		s.cleanup()
	})
	return err
}

func (s *reportStream) finish() { _ = s.Close() }
