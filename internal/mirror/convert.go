package mirror

import (
	"github.com/janainarocha/testrailviewer/internal/store"
	"github.com/janainarocha/testrailviewer/internal/testrail"
)

func toStoreProject(p testrail.Project) store.Project {
	return store.Project{
		ID:           p.ID,
		Name:         p.Name,
		IsCompleted:  p.IsCompleted,
		SuiteMode:    p.SuiteMode,
		URL:          p.URL,
		Announcement: p.Announcement,
	}
}

func toStoreSuite(s testrail.Suite, projectID int64) store.Suite {
	return store.Suite{
		ID:          s.ID,
		ProjectID:   projectID,
		Name:        s.Name,
		Description: s.Description,
		IsMaster:    s.IsMaster,
		URL:         s.URL,
	}
}

func toStoreSection(s testrail.Section, suiteID int64) store.Section {
	return store.Section{
		ID:          s.ID,
		SuiteID:     suiteID,
		Name:        s.Name,
		Description: s.Description,
		ParentID:    s.ParentID,
		Depth:       s.Depth,
	}
}

// toStoreCase serializes the structured step list and the full raw payload as
// text blobs; fields outside the fixed schema ride along in Data.
func toStoreCase(c testrail.Case, sectionID int64) store.Case {
	steps := ""
	if len(c.CustomStepsSeparated) > 0 && string(c.CustomStepsSeparated) != "null" {
		steps = string(c.CustomStepsSeparated)
	}
	return store.Case{
		ID:             c.ID,
		SectionID:      sectionID,
		Title:          c.Title,
		Preconds:       c.CustomPreconds,
		StepsSeparated: steps,
		Steps:          c.CustomSteps,
		Expected:       c.CustomExpected,
		AutomationType: c.CustomAutomationType,
		TypeID:         c.TypeID,
		PriorityID:     c.PriorityID,
		Estimate:       c.Estimate,
		Refs:           c.Refs,
		CreatedBy:      c.CreatedBy,
		CreatedOn:      c.CreatedOn,
		UpdatedBy:      c.UpdatedBy,
		UpdatedOn:      c.UpdatedOn,
		MilestoneID:    c.MilestoneID,
		StatusID:       c.StatusID,
		TemplateID:     c.TemplateID,
		Data:           string(c.Raw),
	}
}
