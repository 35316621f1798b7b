// Package metrics records audit pipeline outcomes for Prometheus scraping.
//
// A Recorder owns a private registry (the default registry is never
// touched) and is safe for concurrent use. All methods are no-ops on a nil
// *Recorder so callers never need to check whether metrics are enabled.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hostaudit/hostaudit/pkg/defaults"
)

// Run outcomes. These are label values, keep them stable.
const (
	OutcomeParsed          = "parsed"
	OutcomeUnauthorized    = "unauthorized"
	OutcomeExecutionFailed = "execution_failed"
	OutcomeTimeout         = "timeout"
	OutcomeEmptyResult     = "empty_result"
	OutcomeArtifactIO      = "artifact_io"
	OutcomeError           = "error"
)

// Report outcomes.
const (
	ReportServed   = "served"
	ReportNotFound = "not_found"
	ReportFailed   = "failed"
)

// Recorder holds the pipeline collectors.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	runsActive       prometheus.Gauge
	runsExpired      prometheus.Counter
	reportsTotal     *prometheus.CounterVec
	reportBytes      prometheus.Histogram
	artifactsDeleted *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// New creates a Recorder with a fresh registry. Go runtime and process
// collectors are registered alongside the pipeline metrics.
func New() (*Recorder, error) {
	r := &Recorder{registry: prometheus.NewRegistry()}
	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return r, nil
}

func (r *Recorder) initMetrics() error {
	ns := defaults.ToolName

	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "audit_runs_total",
			Help:      "Audit runs by terminal outcome",
		},
		[]string{"outcome"},
	)
	r.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "audit_run_duration_seconds",
			Help:      "Wall-clock time from run request to terminal outcome",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)
	r.runsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "audit_runs_active",
		Help:      "Audit runs currently executing",
	})
	r.runsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "audit_runs_expired_total",
		Help:      "Parsed runs whose report was never fetched before expiry",
	})
	r.reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reports_total",
			Help:      "Report fetches by outcome",
		},
		[]string{"outcome"},
	)
	r.reportBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "report_size_bytes",
		Help:      "Size of rendered PDF reports",
		Buckets:   prometheus.ExponentialBuckets(4096, 4, 8),
	})
	r.artifactsDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "artifacts_deleted_total",
			Help:      "Artifacts removed from the output root, by kind",
		},
		[]string{"kind"},
	)
	r.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code",
		},
		[]string{"route", "code"},
	)

	cs := []prometheus.Collector{
		r.runsTotal,
		r.runDuration,
		r.runsActive,
		r.runsExpired,
		r.reportsTotal,
		r.reportBytes,
		r.artifactsDeleted,
		r.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := r.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in Prometheus or OpenMetrics format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RunStarted marks a run as executing.
func (r *Recorder) RunStarted() {
	if r == nil {
		return
	}
	r.runsActive.Inc()
}

// RunFinished records the outcome of a run started with RunStarted.
func (r *Recorder) RunFinished(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.runsActive.Dec()
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RunExpired counts a run dropped by the registry TTL.
func (r *Recorder) RunExpired() {
	if r == nil {
		return
	}
	r.runsExpired.Inc()
}

// ReportFetched records a report fetch. size is ignored unless served.
func (r *Recorder) ReportFetched(outcome string, size int64) {
	if r == nil {
		return
	}
	r.reportsTotal.WithLabelValues(outcome).Inc()
	if outcome == ReportServed {
		r.reportBytes.Observe(float64(size))
	}
}

// ArtifactDeleted counts an artifact removal.
func (r *Recorder) ArtifactDeleted(kind string) {
	if r == nil {
		return
	}
	r.artifactsDeleted.WithLabelValues(kind).Inc()
}

// HTTPRequest counts an API request.
func (r *Recorder) HTTPRequest(route string, code int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
