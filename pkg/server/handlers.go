package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"

	"github.com/hostaudit/hostaudit/pkg/artifact"
	"github.com/hostaudit/hostaudit/pkg/audit"
	"github.com/hostaudit/hostaudit/pkg/defaults"
	"github.com/hostaudit/hostaudit/pkg/jsonutil"
	"github.com/hostaudit/hostaudit/pkg/privilege"
)

// auditRequest is the POST /api/audit body. Credential is required in sudo
// mode and ignored by the effective-uid check in direct mode.
type auditRequest struct {
	Credential string `json:"credential"`
}

type auditMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Hostname  string    `json:"hostname"`
	Duration  float64   `json:"duration"` // seconds
	RunID     string    `json:"runId"`
}

type auditResponse struct {
	Success bool `json:"success"`
	// Results maps section id to content in script order.
	Results *ordereddict.Dict `json:"results"`
	// Titles maps section id to its header title, same order as Results.
	Titles   *ordereddict.Dict `json:"titles"`
	Metadata auditMetadata     `json:"metadata"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate limited", "too many audit requests")
		return
	}

	var req auditRequest
	if err := jsonutil.DecodeStrict(r.Body, defaults.MaxRequestBodyBytes, &req); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			// No body: acceptable in direct mode, unauthorized in sudo mode.
		case errors.Is(err, jsonutil.ErrBodyTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
			return
		default:
			// The decoder error may quote the body, so it is not echoed.
			writeError(w, http.StatusBadRequest, "invalid request body", "expected {\"credential\": string}")
			return
		}
	}

	var cred *privilege.Credential
	if req.Credential != "" {
		b := []byte(req.Credential)
		cred = privilege.NewCredential(b)
		privilege.Zero(b)
	}

	run, err := s.ctrl.RunAudit(r.Context(), cred)
	if err != nil {
		s.writeAuditError(w, err)
		return
	}

	results := ordereddict.NewDict()
	titles := ordereddict.NewDict()
	for _, sec := range run.Sections.Sections() {
		id := strconv.Itoa(sec.ID)
		results.Set(id, sec.Content)
		titles.Set(id, sec.Title)
	}
	writeJSON(w, http.StatusOK, auditResponse{
		Success: true,
		Results: results,
		Titles:  titles,
		Metadata: auditMetadata{
			Timestamp: run.Metadata.Timestamp,
			Hostname:  run.Metadata.Hostname,
			Duration:  run.Metadata.DurationSeconds(),
			RunID:     run.ID,
		},
	})
}

func (s *Server) writeAuditError(w http.ResponseWriter, err error) {
	status, msg := classify(err)
	resp := errorResponse{Error: msg}

	var execErr *audit.ExecutionError
	if errors.As(err, &execErr) {
		if execErr.Err != nil {
			resp.Details = execErr.Err.Error()
		}
		resp.Stdout = string(execErr.Stdout)
		resp.Stderr = string(execErr.Stderr)
	} else if status != http.StatusUnauthorized {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	runID, err := s.resolveRef(r.URL.Query().Get("ref"))
	if err != nil {
		status, msg := classify(err)
		writeError(w, status, msg, err.Error())
		return
	}

	rep, err := s.ctrl.FetchReport(r.Context(), runID)
	if err != nil {
		status, msg := classify(err)
		writeError(w, status, msg, "")
		return
	}
	defer rep.Close()

	h := w.Header()
	h.Set("Content-Type", defaults.ContentTypePDF)
	h.Set("Content-Disposition", `attachment; filename="`+s.reportName(rep)+`"`)
	h.Set("Content-Length", strconv.FormatInt(rep.Size, 10))
	h.Set("ETag", `"`+rep.Checksum+`"`)
	h.Set("Last-Modified", rep.GeneratedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, rep)
	if err != nil {
		s.logger.Warn("report stream interrupted",
			slog.String("run_id", runID),
			slog.Int64("written", n),
			slog.String("error", err.Error()))
	}
}

// resolveRef accepts either a bare run id or an artifact path as returned by
// older clients. Paths go through the store's confinement check; only the
// run id is kept.
func (s *Server) resolveRef(ref string) (string, error) {
	if ref == "" {
		return "", artifact.ErrInvalidRunID
	}
	if strings.ContainsAny(ref, `/\.`) {
		h, err := s.ctrl.Store().Validate(ref)
		if err != nil {
			return "", err
		}
		return h.RunID(), nil
	}
	h, err := s.ctrl.Store().HandleFor(ref, artifact.RawText)
	if err != nil {
		return "", err
	}
	return h.RunID(), nil
}

// classify maps the controller's error taxonomy onto HTTP.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, audit.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, audit.ErrRunNotFound):
		return http.StatusNotFound, "report not found"
	case errors.Is(err, artifact.ErrPathEscape):
		return http.StatusBadRequest, "invalid reference"
	case errors.Is(err, artifact.ErrInvalidRunID), errors.Is(err, artifact.ErrUnknownKind):
		return http.StatusBadRequest, "invalid reference"
	case errors.Is(err, audit.ErrTimeout):
		return http.StatusInternalServerError, "audit timed out"
	case errors.Is(err, audit.ErrExecutionFailed):
		return http.StatusInternalServerError, "audit script failed"
	case errors.Is(err, audit.ErrEmptyResult):
		return http.StatusInternalServerError, "audit produced no output"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	w.WriteHeader(status)
	_ = jsonutil.Write(w, v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}
