package testrail

import "encoding/json"

// Project is one TestRail project.
type Project struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	IsCompleted  bool   `json:"is_completed"`
	SuiteMode    int64  `json:"suite_mode"`
	URL          string `json:"url"`
	Announcement string `json:"announcement"`
}

// Suite is one TestRail suite.
type Suite struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsMaster    bool   `json:"is_master"`
	URL         string `json:"url"`
}

// Section is one TestRail section. ParentID is nil for top-level sections.
type Section struct {
	ID          int64  `json:"id"`
	SuiteID     int64  `json:"suite_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id"`
	Depth       int64  `json:"depth"`
}

// Case is one TestRail case. Raw holds the complete payload as received, so
// custom fields outside this struct survive the mirror round-trip.
type Case struct {
	ID                   int64           `json:"id"`
	SectionID            int64           `json:"section_id"`
	Title                string          `json:"title"`
	CustomPreconds       string          `json:"custom_preconds"`
	CustomStepsSeparated json.RawMessage `json:"custom_steps_separated"`
	CustomSteps          string          `json:"custom_steps"`
	CustomExpected       string          `json:"custom_expected"`
	CustomAutomationType *int64          `json:"custom_automation_type"`
	TypeID               int64           `json:"type_id"`
	PriorityID           int64           `json:"priority_id"`
	Estimate             string          `json:"estimate"`
	Refs                 string          `json:"refs"`
	CreatedBy            int64           `json:"created_by"`
	CreatedOn            int64           `json:"created_on"`
	UpdatedBy            int64           `json:"updated_by"`
	UpdatedOn            int64           `json:"updated_on"`
	MilestoneID          int64           `json:"milestone_id"`
	StatusID             int64           `json:"status_id"`
	TemplateID           int64           `json:"template_id"`

	Raw json.RawMessage `json:"-"`
}
