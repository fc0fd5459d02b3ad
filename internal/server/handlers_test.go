package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janainarocha/testrailviewer/internal/bus"
	"github.com/janainarocha/testrailviewer/internal/config"
	"github.com/janainarocha/testrailviewer/internal/jira"
	"github.com/janainarocha/testrailviewer/internal/report"
	"github.com/janainarocha/testrailviewer/internal/store"
)

type stubCoverage struct{ coverage store.Coverage }

func (s *stubCoverage) AutomationCoverage(int64) (store.Coverage, error) {
	return s.coverage, nil
}

type stubEpic struct{ progress jira.EpicProgress }

func (s *stubEpic) EpicProgress(context.Context, string) (*jira.EpicProgress, error) {
	p := s.progress
	return &p, nil
}

type serverEnv struct {
	cache     *store.Cache
	dashboard *store.Dashboard
	handler   http.Handler
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()
	dir := t.TempDir()
	cache, err := store.OpenCache(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	dashboard, err := store.OpenDashboard(filepath.Join(dir, "dashboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dashboard.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Port:               3000,
		DashboardProjectID: 19,
		FixedReports: []config.FixedReport{
			{ID: 7, Name: "Coverage by suite", ProjectID: 19, ProjectName: "iVision"},
		},
	}
	reporter := report.New(
		&stubCoverage{coverage: store.Coverage{TotalCases: 10, AutomatedCases: 6, ManualCases: 4, AutomationPercentage: 60}},
		&stubEpic{progress: jira.EpicProgress{EpicKey: "IV-100", TotalStories: 4, DoneStories: 2, ProgressPercentage: 50}},
		dashboard, nil, 19, "IV-100", nil, logger, nil,
	)

	srv := New(cache, dashboard, nil, reporter, cfg, bus.New(), logger, nil)
	return &serverEnv{cache: cache, dashboard: dashboard, handler: srv.Handler()}
}

func (e *serverEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *serverEnv) post(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func seedCache(t *testing.T, cache *store.Cache) {
	t.Helper()
	cycle, err := cache.BeginCycle()
	require.NoError(t, err)
	require.NoError(t, cycle.UpsertProject(store.Project{ID: 19, Name: "iVision", SuiteMode: 3}))
	require.NoError(t, cycle.UpsertSuite(store.Suite{ID: 100, ProjectID: 19, Name: "Master", IsMaster: true}))
	require.NoError(t, cycle.UpsertSection(store.Section{ID: 500, SuiteID: 100, Name: "Login"}))
	autoType := int64(store.AutomationAutomated)
	require.NoError(t, cycle.UpsertCase(store.Case{ID: 1, SectionID: 500, Title: "valid login", AutomationType: &autoType}))
	require.NoError(t, cycle.Commit())
}

func TestBrowserProjects(t *testing.T) {
	env := newServerEnv(t)
	seedCache(t, env.cache)

	rec := env.get(t, "/api/browser/projects")
	require.Equal(t, http.StatusOK, rec.Code)

	var projects []store.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "iVision", projects[0].Name)
}

func TestBrowserEmptyCacheReturnsEmptyArray(t *testing.T) {
	env := newServerEnv(t)

	rec := env.get(t, "/api/browser/projects")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.get(t, "/api/browser/suites/19")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBrowserCasesJoinSectionName(t *testing.T) {
	env := newServerEnv(t)
	seedCache(t, env.cache)

	rec := env.get(t, "/api/browser/cases/100")
	require.Equal(t, http.StatusOK, rec.Code)

	var cases []store.Case
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cases))
	require.Len(t, cases, 1)
	assert.Equal(t, "Login", cases[0].SectionName)
}

func TestBrowserInvalidIDRejected(t *testing.T) {
	env := newServerEnv(t)
	rec := env.get(t, "/api/browser/suites/abc")
	// The route pattern only admits digits, so a non-numeric id never matches.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAutomationCoverageEndpoint(t *testing.T) {
	env := newServerEnv(t)
	seedCache(t, env.cache)

	rec := env.get(t, "/api/dashboard/automation-coverage/19")
	require.Equal(t, http.StatusOK, rec.Code)

	var cov store.Coverage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cov))
	assert.Equal(t, 1, cov.TotalCases)
	assert.Equal(t, 1, cov.AutomatedCases)
	assert.Equal(t, 100.0, cov.AutomationPercentage)
}

func TestCurrentStatsNotFoundBeforeFirstRun(t *testing.T) {
	env := newServerEnv(t)
	rec := env.get(t, "/api/dashboard/current-automation-stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerReportAndJobStatus(t *testing.T) {
	env := newServerEnv(t)

	rec := env.post(t, "/api/dashboard/trigger-monthly-report")
	require.Equal(t, http.StatusOK, rec.Code)

	var ack map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "started", ack["status"])
	jobID := ack["job_id"]
	require.NotEmpty(t, jobID)

	// The run finishes in the background; poll the job endpoint until the
	// final monthly_report entry lands.
	deadline := time.Now().Add(5 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		rec = env.get(t, "/api/dashboard/jobs/"+jobID)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		status = body.Status
		if status != store.LogStatusRunning {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, store.LogStatusSuccess, status)

	// The snapshot is now the current one.
	rec = env.get(t, "/api/dashboard/current-automation-stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stat store.MonthlyStat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stat))
	assert.Equal(t, 60.0, stat.AutomationPercentage)
}

func TestJobStatusUnknownJob(t *testing.T) {
	env := newServerEnv(t)
	rec := env.get(t, "/api/dashboard/jobs/no-such-job")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecutionLogsLimit(t *testing.T) {
	env := newServerEnv(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, env.dashboard.AppendLog(store.ExecutionLog{
			Type: "sync", Status: store.LogStatusSuccess, Message: "cycle",
		}))
	}

	rec := env.get(t, "/api/dashboard/execution-logs?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []store.ExecutionLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Len(t, logs, 2)
}

func TestLiveProxyUnavailableWithoutRemote(t *testing.T) {
	env := newServerEnv(t)
	rec := env.get(t, "/api/case/42")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFixedReports(t *testing.T) {
	env := newServerEnv(t)
	rec := env.get(t, "/api/fixed-reports")
	require.Equal(t, http.StatusOK, rec.Code)

	var reports []config.FixedReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "Coverage by suite", reports[0].Name)
}

func TestCORSPreflight(t *testing.T) {
	env := newServerEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/browser/projects", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	env := newServerEnv(t)
	rec := env.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
