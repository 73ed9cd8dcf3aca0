package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/etherportal/portal-api/pkg/cmdrunner"
	"github.com/etherportal/portal-api/pkg/metrics"
)

// statusResponse wraps whatever JSON the status subcommand printed.
type statusResponse struct {
	OK     bool `json:"ok"`
	Status any  `json:"status"`
}

type jobsResponse struct {
	OK   bool              `json:"ok"`
	Jobs []json.RawMessage `json:"jobs"`
	Raw  string            `json:"raw,omitempty"`
}

type sessionsResponse struct {
	OK       bool              `json:"ok"`
	Sessions []json.RawMessage `json:"sessions"`
	Raw      string            `json:"raw,omitempty"`
}

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// outputResponse reports one tool invocation verbatim.
type outputResponse struct {
	OK     bool   `json:"ok"`
	Output string `json:"output"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type jobRequest struct {
	JobID   string `json:"jobId"`
	Enabled *bool  `json:"enabled"`
}

// getStatus handles GET /api/status.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	res := s.invoke(r.Context(), "status", "status", "--json")
	writeJSON(w, http.StatusOK, statusResponse{OK: true, Status: statusPayload(res.Stdout, res.Stderr)})
}

// getJobs handles GET /api/jobs.
func (s *Server) getJobs(w http.ResponseWriter, r *http.Request) {
	res := s.invoke(r.Context(), "jobs", "cron", "list", "--json")
	jobs, ok := decodeRecords(res.Stdout, "jobs")
	if !ok {
		writeJSON(w, http.StatusOK, jobsResponse{OK: true, Jobs: []json.RawMessage{}, Raw: res.Stdout})
		return
	}
	writeJSON(w, http.StatusOK, jobsResponse{OK: true, Jobs: jobs})
}

// getSessions handles GET /api/sessions.
func (s *Server) getSessions(w http.ResponseWriter, r *http.Request) {
	res := s.invoke(r.Context(), "sessions", "sessions", "list", "--json")
	sessions, ok := decodeRecords(res.Stdout, "sessions")
	if !ok {
		writeJSON(w, http.StatusOK, sessionsResponse{OK: true, Sessions: []json.RawMessage{}, Raw: res.Stdout})
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{OK: true, Sessions: sessions})
}

// getHealth handles GET /api/health. It never touches the tool.
func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Service: serviceName})
}

// postMessage handles POST /api/message.
func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	logger := log.WithField("api", "message")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// A malformed body reads as an empty one.
		req = messageRequest{}
	}

	if req.Message == "" {
		logger.Error("missing message")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Message required"})
		return
	}

	res := s.invoke(r.Context(), "message", "sessions", "send", "--message", req.Message)
	writeJSON(w, http.StatusOK, outputResponse{
		OK:     res.ExitCode == 0,
		Output: firstNonEmpty(res.Stdout, res.Stderr),
	})
}

// postJobRun handles POST /api/job/run.
func (s *Server) postJobRun(w http.ResponseWriter, r *http.Request) {
	logger := log.WithField("api", "job_run")

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = jobRequest{}
	}

	if req.JobID == "" {
		logger.Error("missing jobId")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "jobId required"})
		return
	}

	res := s.invoke(r.Context(), "job_run", "cron", "run", req.JobID)
	writeJSON(w, http.StatusOK, outputResponse{
		OK:     res.ExitCode == 0,
		Output: firstNonEmpty(res.Stdout, res.Stderr),
	})
}

// postJobToggle handles POST /api/job/toggle. A missing enabled flag
// means enable.
func (s *Server) postJobToggle(w http.ResponseWriter, r *http.Request) {
	logger := log.WithField("api", "job_toggle")

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = jobRequest{}
	}

	if req.JobID == "" {
		logger.Error("missing jobId")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "jobId required"})
		return
	}

	action := "enable"
	if req.Enabled != nil && !*req.Enabled {
		action = "disable"
	}

	res := s.invoke(r.Context(), "job_toggle", "cron", action, req.JobID)
	writeJSON(w, http.StatusOK, outputResponse{
		OK:     res.ExitCode == 0,
		Output: firstNonEmpty(res.Stdout, res.Stderr),
	})
}

// invoke shells out once and records the outcome.
func (s *Server) invoke(ctx context.Context, operation string, args ...string) cmdrunner.Result {
	start := time.Now()
	res := s.runner.Run(ctx, args...)
	elapsed := time.Since(start)

	if s.cfg.Metrics.Enabled {
		metrics.ObserveToolInvocation(operation, res.ExitCode, elapsed)
	}

	logger := log.WithFields(log.Fields{
		"api":      operation,
		"args":     args,
		"exitCode": res.ExitCode,
		"duration": elapsed.String(),
	})
	if res.ExitCode != 0 {
		logger.WithField("stderr", res.Stderr).Warn("tool invocation failed")
		return res
	}
	logger.Debug("tool invocation completed")
	return res
}
