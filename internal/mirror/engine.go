package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/janainarocha/testrailviewer/internal/bus"
	"github.com/janainarocha/testrailviewer/internal/metrics"
	"github.com/janainarocha/testrailviewer/internal/store"
	"github.com/janainarocha/testrailviewer/internal/testrail"
)

// Remote is the slice of the TestRail client the sync walk needs.
type Remote interface {
	Projects(ctx context.Context) ([]testrail.Project, error)
	Suites(ctx context.Context, projectID int64) ([]testrail.Suite, error)
	Sections(ctx context.Context, projectID, suiteID int64) ([]testrail.Section, error)
	Cases(ctx context.Context, projectID, suiteID, sectionID int64, pageSize int) ([]testrail.Case, error)
}

// Engine mirrors the remote project/suite/section/case hierarchy into the
// local cache in one sequential pass.
type Engine struct {
	remote    Remote
	cache     *store.Cache
	dashboard *store.Dashboard
	bus       *bus.EventBus
	logger    *slog.Logger
	metrics   *metrics.Metrics
	pageSize  int
}

// Summary counts what one cycle touched.
type Summary struct {
	Projects int `json:"projects"`
	Suites   int `json:"suites"`
	Sections int `json:"sections"`
	Cases    int `json:"cases"`
	Skipped  int `json:"skipped_nodes"`
}

// New creates a sync engine. dashboard receives the execution-log entries;
// eb and m may be shared with the server.
func New(remote Remote, cache *store.Cache, dashboard *store.Dashboard, eb *bus.EventBus, logger *slog.Logger, m *metrics.Metrics, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Engine{
		remote:    remote,
		cache:     cache,
		dashboard: dashboard,
		bus:       eb,
		logger:    logger,
		metrics:   m,
		pageSize:  pageSize,
	}
}

// Run executes one full sync cycle. Only a failed project-list fetch is
// fatal; per-node failures are logged and the walk continues with siblings.
// All writes happen inside one transaction committed at cycle end, so a
// killed cycle leaves the previous mirror intact.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	e.publish(bus.EventSyncStarted, nil)

	projects, err := e.remote.Projects(ctx)
	if err != nil {
		err = fmt.Errorf("fetch projects: %w", err)
		e.fail(err)
		return nil, err
	}

	active := projects[:0]
	for _, p := range projects {
		if !p.IsCompleted {
			active = append(active, p)
		}
	}
	e.logger.Info("starting sync cycle", "projects", len(active), "total", len(projects))

	cycle, err := e.cache.BeginCycle()
	if err != nil {
		e.fail(err)
		return nil, err
	}
	defer cycle.Rollback()

	if err := cycle.DeactivateAll(); err != nil {
		e.fail(err)
		return nil, err
	}

	summary := &Summary{}
	for _, project := range active {
		if err := e.syncProject(ctx, cycle, project, summary); err != nil {
			e.fail(err)
			return nil, err
		}
	}

	if err := cycle.Commit(); err != nil {
		err = fmt.Errorf("commit sync cycle: %w", err)
		e.fail(err)
		return nil, err
	}

	e.logOutcome(store.LogStatusSuccess, "sync cycle completed", summary)
	e.publish(bus.EventSyncCompleted, summary)
	if e.metrics != nil {
		e.metrics.SyncCyclesTotal.WithLabelValues("success").Inc()
		e.metrics.SyncedRowsTotal.WithLabelValues("projects").Set(float64(summary.Projects))
		e.metrics.SyncedRowsTotal.WithLabelValues("suites").Set(float64(summary.Suites))
		e.metrics.SyncedRowsTotal.WithLabelValues("sections").Set(float64(summary.Sections))
		e.metrics.SyncedRowsTotal.WithLabelValues("cases").Set(float64(summary.Cases))
	}
	e.logger.Info("sync cycle completed",
		"projects", summary.Projects, "suites", summary.Suites,
		"sections", summary.Sections, "cases", summary.Cases,
		"skipped", summary.Skipped)
	return summary, nil
}

// syncProject upserts one project and walks its suites. A failed suite-list
// fetch skips the project; upsert failures are fatal.
func (e *Engine) syncProject(ctx context.Context, cycle *store.Cycle, project testrail.Project, summary *Summary) error {
	if err := cycle.UpsertProject(toStoreProject(project)); err != nil {
		return err
	}
	summary.Projects++
	e.publish(bus.EventSyncProject, map[string]interface{}{
		"project_id": project.ID,
		"name":       project.Name,
	})

	suites, err := e.remote.Suites(ctx, project.ID)
	if err != nil {
		e.skip(summary, "suites", project.ID, err)
		return nil
	}

	for _, suite := range suites {
		if err := cycle.UpsertSuite(toStoreSuite(suite, project.ID)); err != nil {
			return err
		}
		summary.Suites++

		sections, err := e.remote.Sections(ctx, project.ID, suite.ID)
		if err != nil {
			e.skip(summary, "sections", suite.ID, err)
			continue
		}

		for _, section := range sections {
			if err := cycle.UpsertSection(toStoreSection(section, suite.ID)); err != nil {
				return err
			}
			summary.Sections++

			cases, err := e.remote.Cases(ctx, project.ID, suite.ID, section.ID, e.pageSize)
			if err != nil {
				e.skip(summary, "cases", section.ID, err)
				continue
			}
			for _, cs := range cases {
				if err := cycle.UpsertCase(toStoreCase(cs, section.ID)); err != nil {
					return err
				}
				summary.Cases++
			}
		}
	}
	return nil
}

// skip records a non-fatal per-node failure and keeps the walk going.
func (e *Engine) skip(summary *Summary, kind string, parentID int64, err error) {
	summary.Skipped++
	e.logger.Warn("skipping node after exhausted retries",
		"kind", kind, "parent_id", parentID, "error", err)
	e.publish(bus.EventSyncError, map[string]interface{}{
		"kind":      kind,
		"parent_id": parentID,
		"error":     err.Error(),
	})
	if e.metrics != nil {
		e.metrics.SyncSkippedNodes.Inc()
	}
	e.appendLog(store.ExecutionLog{
		Type:    "sync",
		Status:  store.LogStatusError,
		Message: fmt.Sprintf("skipped %s fetch under node %d", kind, parentID),
		Details: jsonDetails(map[string]interface{}{"error": err.Error()}),
	})
}

// fail records a fatal cycle outcome.
func (e *Engine) fail(err error) {
	e.logger.Error("sync cycle aborted", "error", err)
	e.publish(bus.EventSyncError, map[string]interface{}{"error": err.Error()})
	if e.metrics != nil {
		e.metrics.SyncCyclesTotal.WithLabelValues("error").Inc()
	}
	e.logOutcome(store.LogStatusError, err.Error(), nil)
}

func (e *Engine) logOutcome(status, message string, summary *Summary) {
	entry := store.ExecutionLog{Type: "sync", Status: status, Message: message}
	if summary != nil {
		entry.Details = jsonDetails(summary)
	}
	e.appendLog(entry)
}

func (e *Engine) appendLog(entry store.ExecutionLog) {
	if e.dashboard == nil {
		return
	}
	if err := e.dashboard.AppendLog(entry); err != nil {
		e.logger.Error("failed to append execution log", "error", err)
	}
}

func (e *Engine) publish(t bus.EventType, data interface{}) {
	if e.bus != nil {
		e.bus.Publish(bus.Event{Type: t, Data: data})
	}
}

func jsonDetails(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
