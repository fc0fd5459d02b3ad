package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/janainarocha/testrailviewer/internal/config"
	"github.com/janainarocha/testrailviewer/internal/store"
)

// ---------- Browser (cache) reads ----------

func (s *Server) handleBrowserProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.cache.Projects()
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	writeJSON(w, projects)
}

func (s *Server) handleBrowserSuites(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectId")
	if !ok {
		return
	}
	suites, err := s.cache.Suites(projectID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if suites == nil {
		suites = []store.Suite{}
	}
	writeJSON(w, suites)
}

func (s *Server) handleBrowserSections(w http.ResponseWriter, r *http.Request) {
	suiteID, ok := pathID(w, r, "suiteId")
	if !ok {
		return
	}
	sections, err := s.cache.Sections(suiteID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if sections == nil {
		sections = []store.Section{}
	}
	writeJSON(w, sections)
}

func (s *Server) handleBrowserCases(w http.ResponseWriter, r *http.Request) {
	suiteID, ok := pathID(w, r, "suiteId")
	if !ok {
		return
	}
	cases, err := s.cache.Cases(suiteID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if cases == nil {
		cases = []store.Case{}
	}
	writeJSON(w, cases)
}

// ---------- Dashboard reads ----------

func (s *Server) handleAutomationHistory(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dashboard.AutomationHistory(12)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if stats == nil {
		stats = []store.MonthlyStat{}
	}
	writeJSON(w, stats)
}

func (s *Server) handleEpicHistory(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dashboard.EpicHistory(12)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if stats == nil {
		stats = []store.EpicStat{}
	}
	writeJSON(w, stats)
}

func (s *Server) handleExecutionLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	logs, err := s.dashboard.Logs(limit)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if logs == nil {
		logs = []store.ExecutionLog{}
	}
	writeJSON(w, logs)
}

func (s *Server) handleCurrentStats(w http.ResponseWriter, r *http.Request) {
	stat, err := s.dashboard.LatestMonthlyStat()
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if stat == nil {
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "no stats recorded yet"})
		return
	}
	writeJSON(w, stat)
}

func (s *Server) handleAutomationCoverage(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectId")
	if !ok {
		return
	}
	coverage, err := s.cache.AutomationCoverage(projectID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, coverage)
}

// ---------- Report trigger and job status ----------

// handleTriggerReport starts one aggregation run in the background and
// acknowledges immediately with a job id. The outcome is discoverable only
// through the execution log.
func (s *Server) handleTriggerReport(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"error": "reporting not configured"})
		return
	}

	if !s.reportRunning.CompareAndSwap(false, true) {
		s.jobMu.Lock()
		jobID := s.lastJobID
		s.jobMu.Unlock()
		writeJSON(w, map[string]string{"status": "already_running", "job_id": jobID})
		return
	}

	jobID := uuid.New().String()
	s.jobMu.Lock()
	s.lastJobID = jobID
	s.jobMu.Unlock()

	if err := s.dashboard.AppendLog(store.ExecutionLog{
		JobID:   jobID,
		Type:    "monthly_report",
		Status:  store.LogStatusRunning,
		Message: "monthly report started",
	}); err != nil {
		s.reportRunning.Store(false)
		s.serverError(w, r, err)
		return
	}

	// Detached from the request context: the run outlives the HTTP exchange.
	go func() {
		defer s.reportRunning.Store(false)
		if _, err := s.reporter.Run(context.Background(), jobID); err != nil {
			s.logger.Error("triggered monthly report failed", "job_id", jobID, "error", err)
		}
	}()

	writeJSON(w, map[string]string{"status": "started", "job_id": jobID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	logs, err := s.dashboard.LogsByJob(jobID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if len(logs) == 0 {
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "unknown job id"})
		return
	}

	// The newest monthly_report entry carries the job's overall state.
	status := store.LogStatusRunning
	for _, l := range logs {
		if l.Type == "monthly_report" {
			status = l.Status
			break
		}
	}
	writeJSON(w, map[string]interface{}{
		"job_id": jobID,
		"status": status,
		"logs":   logs,
	})
}

// ---------- Live TestRail proxy ----------

func (s *Server) handleLiveCase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !s.requireRemote(w) {
		return
	}
	raw, err := s.remote.Case(r.Context(), id)
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (s *Server) handleLiveSuites(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectId")
	if !ok || !s.requireRemote(w) {
		return
	}
	raw, err := s.remote.SuitesRaw(r.Context(), projectID)
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (s *Server) handleLiveCases(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectId")
	if !ok {
		return
	}
	suiteID, ok := pathID(w, r, "suiteId")
	if !ok || !s.requireRemote(w) {
		return
	}
	raw, err := s.remote.CasesRaw(r.Context(), projectID, suiteID)
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (s *Server) handleLiveReports(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectId")
	if !ok || !s.requireRemote(w) {
		return
	}
	raw, err := s.remote.Reports(r.Context(), projectID)
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (s *Server) handleLiveRunReport(w http.ResponseWriter, r *http.Request) {
	reportID, ok := pathID(w, r, "reportId")
	if !ok || !s.requireRemote(w) {
		return
	}
	raw, err := s.remote.RunReport(r.Context(), reportID)
	if err != nil {
		s.upstreamError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (s *Server) handleFixedReports(w http.ResponseWriter, r *http.Request) {
	reports := s.cfg.FixedReports
	if reports == nil {
		reports = []config.FixedReport{}
	}
	writeJSON(w, reports)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// ---------- Helpers ----------

// pathID parses a numeric path variable; the route pattern already restricts
// them to digits, so a failure here is a 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (s *Server) requireRemote(w http.ResponseWriter) bool {
	if s.remote == nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"error": "testrail not configured"})
		return false
	}
	return true
}

// serverError answers 500 with a generic message; store internals never leak.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSONStatus(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("upstream request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSONStatus(w, http.StatusBadGateway, map[string]string{"error": "upstream request failed"})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}
