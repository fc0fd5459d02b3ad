package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/janainarocha/testrailviewer/internal/bus"
	"github.com/janainarocha/testrailviewer/internal/jira"
	"github.com/janainarocha/testrailviewer/internal/metrics"
	"github.com/janainarocha/testrailviewer/internal/store"
)

// CoverageSource computes automation coverage from the local cache.
type CoverageSource interface {
	AutomationCoverage(projectID int64) (store.Coverage, error)
}

// EpicSource fetches epic progress from the issue tracker.
type EpicSource interface {
	EpicProgress(ctx context.Context, epicKey string) (*jira.EpicProgress, error)
}

// Reporter computes one automation-coverage and epic-progress snapshot for
// the current calendar month and persists it idempotently.
type Reporter struct {
	coverage  CoverageSource
	epic      EpicSource
	dashboard *store.Dashboard
	validate  func() error

	projectID int64
	epicKey   string

	bus     *bus.EventBus
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Result is the outcome of one aggregator run.
type Result struct {
	Month    string            `json:"month"`
	Year     int               `json:"year"`
	Coverage store.Coverage    `json:"automation"`
	Epic     jira.EpicProgress `json:"epic"`
}

// New creates a reporter. validate runs first on every Run and should name
// every missing credential; epic may fail at runtime without failing the run.
func New(coverage CoverageSource, epic EpicSource, dashboard *store.Dashboard, validate func() error, projectID int64, epicKey string, eb *bus.EventBus, logger *slog.Logger, m *metrics.Metrics) *Reporter {
	return &Reporter{
		coverage:  coverage,
		epic:      epic,
		dashboard: dashboard,
		validate:  validate,
		projectID: projectID,
		epicKey:   epicKey,
		bus:       eb,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Run executes the monthly aggregation once. The month is the English month
// name at run start; re-running within the same month overwrites the prior
// snapshot. jobID tags the execution-log entries so the trigger endpoint can
// report status; it may be empty for CLI runs.
func (r *Reporter) Run(ctx context.Context, jobID string) (*Result, error) {
	now := r.now()
	month := now.Month().String()
	year := now.Year()

	r.publish(bus.EventReportStarted, map[string]interface{}{"month": month, "year": year})
	r.logger.Info("starting monthly report", "month", month, "year", year)

	if r.validate != nil {
		if err := r.validate(); err != nil {
			r.fail(jobID, month, year, err)
			return nil, err
		}
	}

	coverage, err := r.coverage.AutomationCoverage(r.projectID)
	if err != nil {
		r.appendLog(jobID, "coverage", store.LogStatusError, err.Error(), nil)
		r.fail(jobID, month, year, fmt.Errorf("fetch coverage: %w", err))
		return nil, fmt.Errorf("fetch coverage: %w", err)
	}
	r.appendLog(jobID, "coverage", store.LogStatusSuccess, "automation data collected from cache", coverage)

	// Epic data is best-effort: coverage matters more, so a tracker failure
	// substitutes a zero-valued record instead of aborting the run.
	epic := jira.EpicProgress{EpicKey: r.epicKey}
	if r.epic != nil {
		fetched, err := r.epic.EpicProgress(ctx, r.epicKey)
		if err != nil {
			r.logger.Warn("epic fetch failed, recording zero-valued epic data", "error", err)
			r.appendLog(jobID, "epic", store.LogStatusError, err.Error(), nil)
		} else {
			epic = *fetched
			r.appendLog(jobID, "epic", store.LogStatusSuccess, "epic data collected", epic)
		}
	}

	stat := store.MonthlyStat{
		Month:                month,
		Year:                 year,
		TotalCases:           coverage.TotalCases,
		AutomatedCases:       coverage.AutomatedCases,
		ManualCases:          coverage.ManualCases,
		NotRequiredCases:     coverage.NotRequiredCases,
		AutomationPercentage: coverage.AutomationPercentage,
	}
	if err := r.dashboard.UpsertMonthlyStat(stat); err != nil {
		r.fail(jobID, month, year, err)
		return nil, err
	}

	epicStat := store.EpicStat{
		EpicKey:            epic.EpicKey,
		Month:              month,
		Year:               year,
		TotalStories:       epic.TotalStories,
		DoneStories:        epic.DoneStories,
		TodoStories:        epic.TodoStories,
		POReviewStories:    epic.POReviewStories,
		DeclinedStories:    epic.DeclinedStories,
		ProgressPercentage: epic.ProgressPercentage,
	}
	if err := r.dashboard.UpsertEpicStat(epicStat); err != nil {
		r.fail(jobID, month, year, err)
		return nil, err
	}

	result := &Result{Month: month, Year: year, Coverage: coverage, Epic: epic}
	r.appendLog(jobID, "monthly_report", store.LogStatusSuccess, "monthly report executed successfully", result)
	r.publish(bus.EventReportCompleted, result)
	if r.metrics != nil {
		r.metrics.ReportRunsTotal.WithLabelValues("success").Inc()
	}
	r.logger.Info("monthly report completed",
		"month", month, "year", year,
		"total_cases", coverage.TotalCases,
		"automation_percentage", coverage.AutomationPercentage)
	return result, nil
}

func (r *Reporter) fail(jobID, month string, year int, err error) {
	r.logger.Error("monthly report failed", "month", month, "year", year, "error", err)
	r.appendLog(jobID, "monthly_report", store.LogStatusError, err.Error(),
		map[string]interface{}{"month": month, "year": year})
	r.publish(bus.EventReportError, map[string]interface{}{"error": err.Error()})
	if r.metrics != nil {
		r.metrics.ReportRunsTotal.WithLabelValues("error").Inc()
	}
}

func (r *Reporter) appendLog(jobID, logType, status, message string, details interface{}) {
	entry := store.ExecutionLog{JobID: jobID, Type: logType, Status: status, Message: message}
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			entry.Details = string(data)
		}
	}
	if err := r.dashboard.AppendLog(entry); err != nil {
		r.logger.Error("failed to append execution log", "error", err)
	}
}

func (r *Reporter) publish(t bus.EventType, data interface{}) {
	if r.bus != nil {
		r.bus.Publish(bus.Event{Type: t, Data: data})
	}
}
