package store

import (
	"database/sql"
	"fmt"
)

// Dashboard holds the monthly time-series tables and the execution log.
// It lives in its own database file; the sync cache and the reporting job
// have independent lifecycles.
type Dashboard struct {
	db *sql.DB
}

// OpenDashboard opens (or creates) the dashboard database and applies the schema.
func OpenDashboard(path string) (*Dashboard, error) {
	db, err := openSQLite(path, dashboardSchema)
	if err != nil {
		return nil, err
	}
	return &Dashboard{db: db}, nil
}

func (d *Dashboard) Close() error { return d.db.Close() }

// ---------- Time-series upserts ----------

// UpsertMonthlyStat writes one coverage snapshot keyed by (month, year).
// Re-running within the same month overwrites the prior row.
func (d *Dashboard) UpsertMonthlyStat(s MonthlyStat) error {
	_, err := d.db.Exec(
		`INSERT INTO monthly_automation_stats
		   (month, year, total_cases, automated_cases, manual_cases, not_required_cases, automation_percentage)
		 VALUES (?,?,?,?,?,?,?)
		 ON CONFLICT(month, year) DO UPDATE SET
		   total_cases=excluded.total_cases, automated_cases=excluded.automated_cases,
		   manual_cases=excluded.manual_cases, not_required_cases=excluded.not_required_cases,
		   automation_percentage=excluded.automation_percentage,
		   created_at=datetime('now')`,
		s.Month, s.Year, s.TotalCases, s.AutomatedCases, s.ManualCases,
		s.NotRequiredCases, s.AutomationPercentage,
	)
	if err != nil {
		return fmt.Errorf("upsert monthly stat %s/%d: %w", s.Month, s.Year, err)
	}
	return nil
}

// UpsertEpicStat writes one epic-progress snapshot keyed by (epic_key, month, year).
func (d *Dashboard) UpsertEpicStat(s EpicStat) error {
	_, err := d.db.Exec(
		`INSERT INTO epic_progress_stats
		   (epic_key, month, year, total_stories, done_stories, todo_stories,
		    po_review_stories, declined_stories, progress_percentage)
		 VALUES (?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(epic_key, month, year) DO UPDATE SET
		   total_stories=excluded.total_stories, done_stories=excluded.done_stories,
		   todo_stories=excluded.todo_stories, po_review_stories=excluded.po_review_stories,
		   declined_stories=excluded.declined_stories,
		   progress_percentage=excluded.progress_percentage,
		   created_at=datetime('now')`,
		s.EpicKey, s.Month, s.Year, s.TotalStories, s.DoneStories, s.TodoStories,
		s.POReviewStories, s.DeclinedStories, s.ProgressPercentage,
	)
	if err != nil {
		return fmt.Errorf("upsert epic stat %s %s/%d: %w", s.EpicKey, s.Month, s.Year, err)
	}
	return nil
}

// ---------- Execution log (append-only) ----------

// AppendLog writes one audit entry. Entries are never updated or deleted.
func (d *Dashboard) AppendLog(entry ExecutionLog) error {
	_, err := d.db.Exec(
		`INSERT INTO execution_logs (job_id, type, status, message, details) VALUES (?,?,?,?,?)`,
		entry.JobID, entry.Type, entry.Status, entry.Message, entry.Details,
	)
	if err != nil {
		return fmt.Errorf("append execution log: %w", err)
	}
	return nil
}

// Logs returns the most recent entries, newest first.
func (d *Dashboard) Logs(limit int) ([]ExecutionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(
		`SELECT id, execution_date, job_id, type, status, COALESCE(message,''), COALESCE(details,'')
		 FROM execution_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query execution logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// LogsByJob returns all entries carrying the given job id, newest first.
func (d *Dashboard) LogsByJob(jobID string) ([]ExecutionLog, error) {
	rows, err := d.db.Query(
		`SELECT id, execution_date, job_id, type, status, COALESCE(message,''), COALESCE(details,'')
		 FROM execution_logs WHERE job_id = ? ORDER BY id DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

func scanLogs(rows *sql.Rows) ([]ExecutionLog, error) {
	var logs []ExecutionLog
	for rows.Next() {
		var l ExecutionLog
		if err := rows.Scan(&l.ID, &l.ExecutionDate, &l.JobID, &l.Type, &l.Status, &l.Message, &l.Details); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ---------- History reads ----------

// AutomationHistory returns up to limit coverage snapshots, newest first.
func (d *Dashboard) AutomationHistory(limit int) ([]MonthlyStat, error) {
	if limit <= 0 || limit > 12 {
		limit = 12
	}
	rows, err := d.db.Query(
		`SELECT id, month, year, total_cases, automated_cases, manual_cases,
		        not_required_cases, automation_percentage, created_at
		 FROM monthly_automation_stats ORDER BY year DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query automation history: %w", err)
	}
	defer rows.Close()

	var stats []MonthlyStat
	for rows.Next() {
		var s MonthlyStat
		if err := rows.Scan(
			&s.ID, &s.Month, &s.Year, &s.TotalCases, &s.AutomatedCases, &s.ManualCases,
			&s.NotRequiredCases, &s.AutomationPercentage, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// LatestMonthlyStat returns the most recent coverage snapshot, or nil if none exists.
func (d *Dashboard) LatestMonthlyStat() (*MonthlyStat, error) {
	stats, err := d.AutomationHistory(1)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, nil
	}
	return &stats[0], nil
}

// EpicHistory returns up to limit epic snapshots, newest first.
func (d *Dashboard) EpicHistory(limit int) ([]EpicStat, error) {
	if limit <= 0 || limit > 12 {
		limit = 12
	}
	rows, err := d.db.Query(
		`SELECT id, epic_key, month, year, total_stories, done_stories, todo_stories,
		        po_review_stories, declined_stories, progress_percentage, created_at
		 FROM epic_progress_stats ORDER BY year DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query epic history: %w", err)
	}
	defer rows.Close()

	var stats []EpicStat
	for rows.Next() {
		var s EpicStat
		if err := rows.Scan(
			&s.ID, &s.EpicKey, &s.Month, &s.Year, &s.TotalStories, &s.DoneStories,
			&s.TodoStories, &s.POReviewStories, &s.DeclinedStories, &s.ProgressPercentage,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
