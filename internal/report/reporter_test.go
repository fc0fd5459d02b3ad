package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janainarocha/testrailviewer/internal/jira"
	"github.com/janainarocha/testrailviewer/internal/store"
)

type fakeCoverage struct {
	coverage store.Coverage
	err      error
}

func (f *fakeCoverage) AutomationCoverage(int64) (store.Coverage, error) {
	return f.coverage, f.err
}

type fakeEpic struct {
	progress *jira.EpicProgress
	err      error
}

func (f *fakeEpic) EpicProgress(context.Context, string) (*jira.EpicProgress, error) {
	return f.progress, f.err
}

func newTestDashboard(t *testing.T) *store.Dashboard {
	t.Helper()
	dash, err := store.OpenDashboard(filepath.Join(t.TempDir(), "dashboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dash.Close() })
	return dash
}

func newTestReporter(dash *store.Dashboard, cov CoverageSource, epic EpicSource) *Reporter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(cov, epic, dash, nil, 19, "IV-100", nil, logger, nil)
	r.now = func() time.Time { return time.Date(2026, time.September, 15, 10, 0, 0, 0, time.UTC) }
	return r
}

func TestRunPersistsMonthlySnapshot(t *testing.T) {
	dash := newTestDashboard(t)
	cov := &fakeCoverage{coverage: store.Coverage{
		TotalCases: 10, AutomatedCases: 6, ManualCases: 4, AutomationPercentage: 60,
	}}
	epic := &fakeEpic{progress: &jira.EpicProgress{
		EpicKey: "IV-100", TotalStories: 8, DoneStories: 4, TodoStories: 4, ProgressPercentage: 50,
	}}

	result, err := newTestReporter(dash, cov, epic).Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "September", result.Month)
	assert.Equal(t, 2026, result.Year)
	assert.Equal(t, 60.0, result.Coverage.AutomationPercentage)

	history, err := dash.AutomationHistory(0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "September", history[0].Month)
	assert.Equal(t, 6, history[0].AutomatedCases)

	epics, err := dash.EpicHistory(0)
	require.NoError(t, err)
	require.Len(t, epics, 1)
	assert.Equal(t, "IV-100", epics[0].EpicKey)
	assert.Equal(t, 50.0, epics[0].ProgressPercentage)
}

func TestRunIsIdempotentWithinMonth(t *testing.T) {
	dash := newTestDashboard(t)
	cov := &fakeCoverage{coverage: store.Coverage{TotalCases: 10, AutomatedCases: 5, AutomationPercentage: 50}}
	reporter := newTestReporter(dash, cov, &fakeEpic{progress: &jira.EpicProgress{EpicKey: "IV-100"}})

	_, err := reporter.Run(context.Background(), "")
	require.NoError(t, err)

	cov.coverage.AutomatedCases = 7
	cov.coverage.AutomationPercentage = 70
	_, err = reporter.Run(context.Background(), "")
	require.NoError(t, err)

	history, err := dash.AutomationHistory(0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 7, history[0].AutomatedCases)
	assert.Equal(t, 70.0, history[0].AutomationPercentage)
}

func TestRunSubstitutesZeroEpicOnTrackerFailure(t *testing.T) {
	dash := newTestDashboard(t)
	cov := &fakeCoverage{coverage: store.Coverage{TotalCases: 10, AutomatedCases: 6, ManualCases: 4, AutomationPercentage: 60}}
	epic := &fakeEpic{err: errors.New("jira HTTP 401: unauthorized")}

	result, err := newTestReporter(dash, cov, epic).Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, jira.EpicProgress{EpicKey: "IV-100"}, result.Epic)

	epics, err := dash.EpicHistory(0)
	require.NoError(t, err)
	require.Len(t, epics, 1)
	assert.Equal(t, 0, epics[0].TotalStories)

	// The tracker failure is visible in the audit log even though the run succeeded.
	logs, err := dash.Logs(0)
	require.NoError(t, err)
	var sawEpicError, sawFinalSuccess bool
	for _, l := range logs {
		if l.Type == "epic" && l.Status == store.LogStatusError {
			sawEpicError = true
		}
		if l.Type == "monthly_report" && l.Status == store.LogStatusSuccess {
			sawFinalSuccess = true
		}
	}
	assert.True(t, sawEpicError)
	assert.True(t, sawFinalSuccess)
}

func TestRunFailsOnCoverageError(t *testing.T) {
	dash := newTestDashboard(t)
	cov := &fakeCoverage{err: errors.New("query coverage: disk I/O error")}

	_, err := newTestReporter(dash, cov, nil).Run(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch coverage")

	logs, err := dash.LogsByJob("job-1")
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "monthly_report", logs[0].Type)
	assert.Equal(t, store.LogStatusError, logs[0].Status)

	history, err := dash.AutomationHistory(0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRunFailsValidation(t *testing.T) {
	dash := newTestDashboard(t)
	reporter := newTestReporter(dash, &fakeCoverage{}, nil)
	reporter.validate = func() error {
		return errors.New("missing environment variables: JIRA_API_TOKEN, JIRA_EMAIL")
	}

	_, err := reporter.Run(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing environment variables")

	history, err := dash.AutomationHistory(0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRunWithoutEpicSource(t *testing.T) {
	dash := newTestDashboard(t)
	cov := &fakeCoverage{coverage: store.Coverage{}}

	result, err := newTestReporter(dash, cov, nil).Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Coverage.TotalCases)
	assert.Equal(t, 0.0, result.Coverage.AutomationPercentage)
	assert.Equal(t, "IV-100", result.Epic.EpicKey)

	history, err := dash.AutomationHistory(0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].TotalCases)
}

func TestRunTagsLogsWithJobID(t *testing.T) {
	dash := newTestDashboard(t)
	cov := &fakeCoverage{coverage: store.Coverage{TotalCases: 1, ManualCases: 1}}

	_, err := newTestReporter(dash, cov, nil).Run(context.Background(), "job-42")
	require.NoError(t, err)

	logs, err := dash.LogsByJob("job-42")
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "monthly_report", logs[0].Type)
	assert.Equal(t, store.LogStatusSuccess, logs[0].Status)
}
