package store

import "time"

// Project mirrors one TestRail project row.
type Project struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	IsCompleted  bool   `json:"is_completed"`
	SuiteMode    int64  `json:"suite_mode"`
	URL          string `json:"url,omitempty"`
	Announcement string `json:"announcement,omitempty"`
}

// Suite mirrors one TestRail suite row.
type Suite struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsMaster    bool   `json:"is_master"`
	URL         string `json:"url,omitempty"`
}

// Section mirrors one TestRail section row. ParentID is nil for top-level sections.
type Section struct {
	ID          int64  `json:"id"`
	SuiteID     int64  `json:"suite_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id"`
	Depth       int64  `json:"depth"`
}

// Case mirrors one TestRail case row. Data carries the full raw payload as an
// opaque JSON blob for fields outside the fixed schema; it is decoded on demand
// by consumers, never by the sync path.
type Case struct {
	ID             int64  `json:"id"`
	SectionID      int64  `json:"section_id"`
	Title          string `json:"title"`
	Preconds       string `json:"custom_preconds,omitempty"`
	StepsSeparated string `json:"custom_steps_separated,omitempty"`
	Steps          string `json:"custom_steps,omitempty"`
	Expected       string `json:"custom_expected,omitempty"`
	AutomationType *int64 `json:"custom_automation_type"`
	TypeID         int64  `json:"type_id"`
	PriorityID     int64  `json:"priority_id"`
	Estimate       string `json:"estimate,omitempty"`
	Refs           string `json:"refs,omitempty"`
	CreatedBy      int64  `json:"created_by,omitempty"`
	CreatedOn      int64  `json:"created_on,omitempty"`
	UpdatedBy      int64  `json:"updated_by,omitempty"`
	UpdatedOn      int64  `json:"updated_on,omitempty"`
	MilestoneID    int64  `json:"milestone_id,omitempty"`
	StatusID       int64  `json:"status_id,omitempty"`
	TemplateID     int64  `json:"template_id,omitempty"`
	Data           string `json:"-"`
	SectionName    string `json:"section_name,omitempty"`
}

// Automation type marker values carried on cases.
const (
	AutomationNotRequired int64 = 0
	AutomationManual      int64 = 1
	AutomationAutomated   int64 = 2
)

// Coverage is the automation-coverage summary for one project.
type Coverage struct {
	TotalCases           int     `json:"total_cases"`
	AutomatedCases       int     `json:"automated_cases"`
	ManualCases          int     `json:"manual_cases"`
	NotRequiredCases     int     `json:"not_required_cases"`
	AutomationPercentage float64 `json:"automation_percentage"`
}

// MonthlyStat is one automation-coverage snapshot, unique per (month, year).
type MonthlyStat struct {
	ID                   int64     `json:"id"`
	Month                string    `json:"month"`
	Year                 int       `json:"year"`
	TotalCases           int       `json:"total_cases"`
	AutomatedCases       int       `json:"automated_cases"`
	ManualCases          int       `json:"manual_cases"`
	NotRequiredCases     int       `json:"not_required_cases"`
	AutomationPercentage float64   `json:"automation_percentage"`
	CreatedAt            time.Time `json:"created_at"`
}

// EpicStat is one epic-progress snapshot, unique per (epic_key, month, year).
type EpicStat struct {
	ID                 int64     `json:"id"`
	EpicKey            string    `json:"epic_key"`
	Month              string    `json:"month"`
	Year               int       `json:"year"`
	TotalStories       int       `json:"total_stories"`
	DoneStories        int       `json:"done_stories"`
	TodoStories        int       `json:"todo_stories"`
	POReviewStories    int       `json:"po_review_stories"`
	DeclinedStories    int       `json:"declined_stories"`
	ProgressPercentage float64   `json:"progress_percentage"`
	CreatedAt          time.Time `json:"created_at"`
}

// Execution log statuses.
const (
	LogStatusRunning = "running"
	LogStatusSuccess = "success"
	LogStatusError   = "error"
)

// ExecutionLog is one append-only audit entry.
type ExecutionLog struct {
	ID            int64     `json:"id"`
	ExecutionDate time.Time `json:"execution_date"`
	JobID         string    `json:"job_id,omitempty"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	Details       string    `json:"details,omitempty"`
}
