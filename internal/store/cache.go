package store

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Cache is the local SQLite mirror of the TestRail hierarchy.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache database and applies the schema.
func OpenCache(path string) (*Cache, error) {
	db, err := openSQLite(path, cacheSchema)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func openSQLite(path, schema string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// ---------- Sync cycle writes ----------

// Cycle wraps one sync cycle's writes in a single transaction. Nothing is
// visible to readers until Commit; a killed cycle leaves the previous cycle's
// rows and active flags untouched.
type Cycle struct {
	tx *sql.Tx
}

// BeginCycle starts a write transaction for one full sync cycle.
func (c *Cache) BeginCycle() (*Cycle, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin sync cycle: %w", err)
	}
	return &Cycle{tx: tx}, nil
}

func (cy *Cycle) Commit() error   { return cy.tx.Commit() }
func (cy *Cycle) Rollback() error { return cy.tx.Rollback() }

// DeactivateAll marks every row of all four tables inactive. Rows not
// re-affirmed during the walk stay soft-deleted.
func (cy *Cycle) DeactivateAll() error {
	for _, table := range []string{"projects", "suites", "sections", "cases"} {
		if _, err := cy.tx.Exec(`UPDATE ` + table + ` SET active = 0`); err != nil {
			return fmt.Errorf("deactivate %s: %w", table, err)
		}
	}
	return nil
}

func (cy *Cycle) UpsertProject(p Project) error {
	_, err := cy.tx.Exec(
		`INSERT INTO projects (id, name, is_completed, suite_mode, url, announcement, active)
		 VALUES (?,?,?,?,?,?,1)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, is_completed=excluded.is_completed, suite_mode=excluded.suite_mode,
		   url=excluded.url, announcement=excluded.announcement, active=1`,
		p.ID, p.Name, boolToInt(p.IsCompleted), p.SuiteMode, p.URL, p.Announcement,
	)
	if err != nil {
		return fmt.Errorf("upsert project %d: %w", p.ID, err)
	}
	return nil
}

func (cy *Cycle) UpsertSuite(s Suite) error {
	_, err := cy.tx.Exec(
		`INSERT INTO suites (id, project_id, name, description, is_master, url, active)
		 VALUES (?,?,?,?,?,?,1)
		 ON CONFLICT(id) DO UPDATE SET
		   project_id=excluded.project_id, name=excluded.name, description=excluded.description,
		   is_master=excluded.is_master, url=excluded.url, active=1`,
		s.ID, s.ProjectID, s.Name, s.Description, boolToInt(s.IsMaster), s.URL,
	)
	if err != nil {
		return fmt.Errorf("upsert suite %d: %w", s.ID, err)
	}
	return nil
}

func (cy *Cycle) UpsertSection(s Section) error {
	_, err := cy.tx.Exec(
		`INSERT INTO sections (id, suite_id, name, description, parent_id, depth, active)
		 VALUES (?,?,?,?,?,?,1)
		 ON CONFLICT(id) DO UPDATE SET
		   suite_id=excluded.suite_id, name=excluded.name, description=excluded.description,
		   parent_id=excluded.parent_id, depth=excluded.depth, active=1`,
		s.ID, s.SuiteID, s.Name, s.Description, s.ParentID, s.Depth,
	)
	if err != nil {
		return fmt.Errorf("upsert section %d: %w", s.ID, err)
	}
	return nil
}

func (cy *Cycle) UpsertCase(c Case) error {
	_, err := cy.tx.Exec(
		`INSERT INTO cases (
		   id, section_id, title, custom_preconds, custom_steps_separated, custom_steps,
		   custom_expected, custom_automation_type, type_id, priority_id, estimate, refs,
		   created_by, created_on, updated_by, updated_on, milestone_id, status_id, template_id,
		   data, active
		 ) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1)
		 ON CONFLICT(id) DO UPDATE SET
		   section_id=excluded.section_id, title=excluded.title,
		   custom_preconds=excluded.custom_preconds,
		   custom_steps_separated=excluded.custom_steps_separated,
		   custom_steps=excluded.custom_steps, custom_expected=excluded.custom_expected,
		   custom_automation_type=excluded.custom_automation_type,
		   type_id=excluded.type_id, priority_id=excluded.priority_id,
		   estimate=excluded.estimate, refs=excluded.refs,
		   created_by=excluded.created_by, created_on=excluded.created_on,
		   updated_by=excluded.updated_by, updated_on=excluded.updated_on,
		   milestone_id=excluded.milestone_id, status_id=excluded.status_id,
		   template_id=excluded.template_id, data=excluded.data, active=1`,
		c.ID, c.SectionID, c.Title, c.Preconds, c.StepsSeparated, c.Steps,
		c.Expected, c.AutomationType, c.TypeID, c.PriorityID, c.Estimate, c.Refs,
		c.CreatedBy, c.CreatedOn, c.UpdatedBy, c.UpdatedOn, c.MilestoneID, c.StatusID, c.TemplateID,
		c.Data,
	)
	if err != nil {
		return fmt.Errorf("upsert case %d: %w", c.ID, err)
	}
	return nil
}

// ---------- Reads (active rows only) ----------

func (c *Cache) Projects() ([]Project, error) {
	rows, err := c.db.Query(
		`SELECT id, name, is_completed, suite_mode, COALESCE(url,''), COALESCE(announcement,'')
		 FROM projects WHERE active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var completed int
		if err := rows.Scan(&p.ID, &p.Name, &completed, &p.SuiteMode, &p.URL, &p.Announcement); err != nil {
			return nil, err
		}
		p.IsCompleted = completed != 0
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (c *Cache) Suites(projectID int64) ([]Suite, error) {
	rows, err := c.db.Query(
		`SELECT id, project_id, name, COALESCE(description,''), is_master, COALESCE(url,'')
		 FROM suites WHERE project_id = ? AND active = 1 ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query suites: %w", err)
	}
	defer rows.Close()

	var suites []Suite
	for rows.Next() {
		var s Suite
		var master int
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Description, &master, &s.URL); err != nil {
			return nil, err
		}
		s.IsMaster = master != 0
		suites = append(suites, s)
	}
	return suites, rows.Err()
}

func (c *Cache) Sections(suiteID int64) ([]Section, error) {
	rows, err := c.db.Query(
		`SELECT id, suite_id, name, COALESCE(description,''), parent_id, COALESCE(depth,0)
		 FROM sections WHERE suite_id = ? AND active = 1
		 ORDER BY COALESCE(parent_id, 0), name`, suiteID)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		var s Section
		var parent sql.NullInt64
		if err := rows.Scan(&s.ID, &s.SuiteID, &s.Name, &s.Description, &parent, &s.Depth); err != nil {
			return nil, err
		}
		if parent.Valid {
			s.ParentID = &parent.Int64
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// Cases returns the active cases of a suite joined with their active sections,
// ordered by section name then title.
func (c *Cache) Cases(suiteID int64) ([]Case, error) {
	rows, err := c.db.Query(
		`SELECT c.id, c.section_id, c.title,
		        COALESCE(c.custom_preconds,''), COALESCE(c.custom_steps,''),
		        COALESCE(c.custom_expected,''), c.custom_automation_type,
		        COALESCE(c.type_id,0), COALESCE(c.priority_id,0),
		        COALESCE(c.estimate,''), COALESCE(c.refs,''), s.name
		 FROM cases c
		 INNER JOIN sections s ON c.section_id = s.id
		 WHERE s.suite_id = ? AND c.active = 1 AND s.active = 1
		 ORDER BY s.name, c.title`, suiteID)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var cs Case
		var auto sql.NullInt64
		if err := rows.Scan(
			&cs.ID, &cs.SectionID, &cs.Title,
			&cs.Preconds, &cs.Steps, &cs.Expected, &auto,
			&cs.TypeID, &cs.PriorityID, &cs.Estimate, &cs.Refs, &cs.SectionName,
		); err != nil {
			return nil, err
		}
		if auto.Valid {
			cs.AutomationType = &auto.Int64
		}
		cases = append(cases, cs)
	}
	return cases, rows.Err()
}

// AutomationCoverage counts the active cases under one project bucketed by the
// automation-type marker. A project with no cases yields a zero percentage,
// not a division error.
func (c *Cache) AutomationCoverage(projectID int64) (Coverage, error) {
	var cov Coverage
	err := c.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN c.custom_automation_type = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN c.custom_automation_type = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN c.custom_automation_type = ? OR c.custom_automation_type IS NULL THEN 1 ELSE 0 END), 0)
		 FROM cases c
		 JOIN sections sec ON c.section_id = sec.id
		 JOIN suites s ON sec.suite_id = s.id
		 WHERE c.active = 1 AND s.project_id = ?`,
		AutomationAutomated, AutomationManual, AutomationNotRequired, projectID,
	).Scan(&cov.TotalCases, &cov.AutomatedCases, &cov.ManualCases, &cov.NotRequiredCases)
	if err != nil {
		return Coverage{}, fmt.Errorf("query coverage: %w", err)
	}
	if cov.TotalCases > 0 {
		pct := float64(cov.AutomatedCases) / float64(cov.TotalCases) * 100
		cov.AutomationPercentage = math.Round(pct*100) / 100
	}
	return cov, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
