package testrail

import (
	"context"
	"encoding/json"
	"fmt"
)

// Newer TestRail versions wrap list responses in an envelope keyed by the
// entity name; older ones return a bare array. decodeList accepts both.
func decodeList(body []byte, key string, out interface{}) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if inner, ok := wrapper[key]; ok {
			return json.Unmarshal(inner, out)
		}
		if len(wrapper) == 0 {
			return nil
		}
		return fmt.Errorf("unexpected %s response format", key)
	}
	return json.Unmarshal(body, out)
}

// Projects fetches every project. Used by the sync path, so it retries.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	body, err := c.getRetry(ctx, "get_projects")
	if err != nil {
		return nil, err
	}
	var projects []Project
	if err := decodeList(body, "projects", &projects); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return projects, nil
}

// Suites fetches the suites of a project.
func (c *Client) Suites(ctx context.Context, projectID int64) ([]Suite, error) {
	body, err := c.getRetry(ctx, fmt.Sprintf("get_suites/%d", projectID))
	if err != nil {
		return nil, err
	}
	var suites []Suite
	if err := decodeList(body, "suites", &suites); err != nil {
		return nil, fmt.Errorf("decode suites: %w", err)
	}
	return suites, nil
}

// Sections fetches the sections of a suite.
func (c *Client) Sections(ctx context.Context, projectID, suiteID int64) ([]Section, error) {
	body, err := c.getRetry(ctx, fmt.Sprintf("get_sections/%d&suite_id=%d", projectID, suiteID))
	if err != nil {
		return nil, err
	}
	var sections []Section
	if err := decodeList(body, "sections", &sections); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	return sections, nil
}

// Cases fetches every case of one section, paging with a bounded page size to
// avoid remote timeouts. Each returned case keeps its raw payload.
func (c *Client) Cases(ctx context.Context, projectID, suiteID, sectionID int64, pageSize int) ([]Case, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	var all []Case
	for offset := 0; ; offset += pageSize {
		endpoint := fmt.Sprintf("get_cases/%d&suite_id=%d&section_id=%d&limit=%d&offset=%d",
			projectID, suiteID, sectionID, pageSize, offset)
		body, err := c.getRetry(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		var rawCases []json.RawMessage
		if err := decodeList(body, "cases", &rawCases); err != nil {
			return nil, fmt.Errorf("decode cases: %w", err)
		}
		for _, raw := range rawCases {
			var cs Case
			if err := json.Unmarshal(raw, &cs); err != nil {
				return nil, fmt.Errorf("decode case: %w", err)
			}
			cs.Raw = raw
			all = append(all, cs)
		}
		if len(rawCases) < pageSize {
			return all, nil
		}
	}
}

// ---------- Live proxy operations (no retry; a failed view is just refreshed) ----------

// Case fetches a single case as raw JSON for passthrough to the UI.
func (c *Client) Case(ctx context.Context, caseID int64) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("get_case/%d", caseID))
}

// Reports lists the reports configured for a project.
func (c *Client) Reports(ctx context.Context, projectID int64) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("get_reports/%d", projectID))
}

// RunReport triggers a report run and returns the report URLs.
func (c *Client) RunReport(ctx context.Context, reportID int64) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("run_report/%d", reportID))
}

// SuitesRaw fetches a project's suites as raw JSON for passthrough.
func (c *Client) SuitesRaw(ctx context.Context, projectID int64) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("get_suites/%d", projectID))
}

// CasesRaw fetches a suite's cases as raw JSON for passthrough.
func (c *Client) CasesRaw(ctx context.Context, projectID, suiteID int64) (json.RawMessage, error) {
	return c.get(ctx, fmt.Sprintf("get_cases/%d&suite_id=%d", projectID, suiteID))
}
