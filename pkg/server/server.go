// Package server is the thin HTTP surface over the audit controller.
//
// Routes:
//   - POST /api/audit          run an audit; body {"credential": "..."} in sudo mode
//   - GET  /api/report?ref=ID  stream the PDF for a parsed run, then delete it
//   - GET  /healthz            liveness plus pending run count
//   - GET  <metrics path>      Prometheus scrape endpoint, when enabled
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/hostaudit/hostaudit/pkg/audit"
	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/duration"
	"github.com/hostaudit/hostaudit/pkg/logging"
	"github.com/hostaudit/hostaudit/pkg/metrics"
)

// Options configures the HTTP surface. Zero values take the defaults
// package values.
type Options struct {
	ListenAddr     string
	MaxConnections int
	AuditRate      float64 // POST /api/audit requests per second
	AuditBurst     int
	MetricsPath    string // empty disables the endpoint
	ReportFilename string // text/template with sprig functions

	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Server serves the audit API.
type Server struct {
	ctrl     *audit.Controller
	opts     Options
	limiter  *rate.Limiter
	filename *template.Template
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// New validates opts and builds a Server around ctrl.
func New(ctrl *audit.Controller, opts Options) (*Server, error) {
	if ctrl == nil {
		return nil, errors.New("server: nil controller")
	}
	if opts.ListenAddr == "" {
		opts.ListenAddr = defaults.ListenAddr
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = defaults.MaxConnections
	}
	if opts.AuditRate <= 0 {
		opts.AuditRate = defaults.AuditRatePerSecond
	}
	if opts.AuditBurst <= 0 {
		opts.AuditBurst = defaults.AuditBurst
	}
	if opts.ReportFilename == "" {
		opts.ReportFilename = defaults.ReportFilename
	}
	tmpl, err := template.New("filename").Funcs(sprig.TxtFuncMap()).Parse(opts.ReportFilename)
	if err != nil {
		return nil, fmt.Errorf("server: report filename template: %w", err)
	}
	return &Server{
		ctrl:     ctrl,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.AuditRate), opts.AuditBurst),
		filename: tmpl,
		metrics:  opts.Metrics,
		logger:   logging.OrDefault(opts.Logger).With(slog.String("component", "server")),
	}, nil
}

// Handler returns the routed handler with recovery and security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/audit", s.instrument("/api/audit", http.HandlerFunc(s.handleAudit)))
	mux.Handle("/api/report", s.instrument("/api/report", http.HandlerFunc(s.handleReport)))
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.opts.MetricsPath != "" && s.metrics != nil {
		mux.Handle(s.opts.MetricsPath, s.metrics.Handler())
	}
	return s.recovery(securityHeaders(mux))
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.opts.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln, at most MaxConnections at a time, and
// shuts down gracefully when ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ln = netutil.LimitListener(ln, s.opts.MaxConnections)
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: duration.HTTPReadHeader,
		ReadTimeout:       duration.HTTPRead,
		// Must outlast the script bound: POST /api/audit blocks until the
		// run finishes.
		WriteTimeout:   duration.HTTPWrite,
		IdleTimeout:    duration.HTTPIdle,
		MaxHeaderBytes: 1 << 20,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
		defer cancel()
		s.logger.Info("shutting down gracefully")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown incomplete", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("listening", slog.String("addr", ln.Addr().String()),
		slog.Int("max_connections", s.opts.MaxConnections))
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": defaults.ToolName,
		"version": defaults.Version,
		"mode":    string(s.ctrl.Mode()),
		"pending": s.ctrl.Pending(),
	})
}

// reportName renders the download filename and strips anything that could
// break out of the Content-Disposition header.
func (s *Server) reportName(rep *audit.Report) string {
	data := struct {
		RunID       string
		Hostname    string
		GeneratedAt time.Time
	}{rep.Run.ID, rep.Run.Metadata.Hostname, rep.GeneratedAt}

	var buf bytes.Buffer
	name := ""
	if err := s.filename.Execute(&buf, data); err == nil {
		name = unsafeFilename.ReplaceAllString(strings.TrimSpace(buf.String()), "_")
	}
	if name == "" || strings.Trim(name, "._") == "" {
		name = "audit-" + rep.Run.ID + ".pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// statusWriter records the status code for request metrics.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.code == 0 {
			sw.code = http.StatusOK
		}
		s.metrics.HTTPRequest(route, sw.code)
	})
}

// recovery turns a handler panic into a 500 instead of a dropped connection.
func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic in HTTP handler",
					slog.Any("panic", err),
					slog.String("stack", string(debug.Stack())))
				writeError(w, http.StatusInternalServerError, "internal server error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
