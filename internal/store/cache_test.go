package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func intPtr(v int64) *int64 { return &v }

// runCycle writes one hierarchy into the cache the way the sync engine does:
// wipe first, then re-affirm every given row.
func runCycle(t *testing.T, cache *Cache, projects []Project, suites []Suite, sections []Section, cases []Case) {
	t.Helper()
	cycle, err := cache.BeginCycle()
	require.NoError(t, err)
	require.NoError(t, cycle.DeactivateAll())
	for _, p := range projects {
		require.NoError(t, cycle.UpsertProject(p))
	}
	for _, s := range suites {
		require.NoError(t, cycle.UpsertSuite(s))
	}
	for _, s := range sections {
		require.NoError(t, cycle.UpsertSection(s))
	}
	for _, c := range cases {
		require.NoError(t, cycle.UpsertCase(c))
	}
	require.NoError(t, cycle.Commit())
}

func seedHierarchy(t *testing.T, cache *Cache) {
	t.Helper()
	runCycle(t, cache,
		[]Project{{ID: 19, Name: "iVision", SuiteMode: 3}},
		[]Suite{{ID: 100, ProjectID: 19, Name: "Master", IsMaster: true}},
		[]Section{{ID: 500, SuiteID: 100, Name: "Login", Depth: 0}},
		[]Case{
			{ID: 1, SectionID: 500, Title: "valid login", AutomationType: intPtr(AutomationAutomated)},
			{ID: 2, SectionID: 500, Title: "invalid login", AutomationType: intPtr(AutomationManual)},
		},
	)
}

func TestCycleUpsertIdempotent(t *testing.T) {
	cache := newTestCache(t)

	seedHierarchy(t, cache)
	first, err := cache.Cases(100)
	require.NoError(t, err)

	// Re-running the identical cycle must not change anything observable.
	seedHierarchy(t, cache)
	second, err := cache.Cases(100)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	projects, err := cache.Projects()
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "iVision", projects[0].Name)
}

func TestSoftDeleteReconciliation(t *testing.T) {
	cache := newTestCache(t)
	seedHierarchy(t, cache)

	// Next cycle no longer sees case 2.
	runCycle(t, cache,
		[]Project{{ID: 19, Name: "iVision", SuiteMode: 3}},
		[]Suite{{ID: 100, ProjectID: 19, Name: "Master", IsMaster: true}},
		[]Section{{ID: 500, SuiteID: 100, Name: "Login", Depth: 0}},
		[]Case{{ID: 1, SectionID: 500, Title: "valid login", AutomationType: intPtr(AutomationAutomated)}},
	)

	cases, err := cache.Cases(100)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, int64(1), cases[0].ID)

	// The row is soft-deleted, not gone.
	var active int
	err = cache.db.QueryRow(`SELECT active FROM cases WHERE id = 2`).Scan(&active)
	require.NoError(t, err)
	assert.Equal(t, 0, active)
}

func TestSoftDeletedRowRevives(t *testing.T) {
	cache := newTestCache(t)
	seedHierarchy(t, cache)

	runCycle(t, cache,
		[]Project{{ID: 19, Name: "iVision", SuiteMode: 3}},
		[]Suite{{ID: 100, ProjectID: 19, Name: "Master", IsMaster: true}},
		[]Section{{ID: 500, SuiteID: 100, Name: "Login", Depth: 0}},
		nil,
	)
	cases, err := cache.Cases(100)
	require.NoError(t, err)
	assert.Empty(t, cases)

	seedHierarchy(t, cache)
	cases, err = cache.Cases(100)
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestSectionParentOrdering(t *testing.T) {
	cache := newTestCache(t)
	runCycle(t, cache,
		[]Project{{ID: 1, Name: "P"}},
		[]Suite{{ID: 10, ProjectID: 1, Name: "S"}},
		[]Section{
			{ID: 3, SuiteID: 10, Name: "child", ParentID: intPtr(2), Depth: 1},
			{ID: 2, SuiteID: 10, Name: "parent", Depth: 0},
		},
		nil,
	)

	sections, err := cache.Sections(10)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "parent", sections[0].Name)
	assert.Nil(t, sections[0].ParentID)
	require.NotNil(t, sections[1].ParentID)
	assert.Equal(t, int64(2), *sections[1].ParentID)
}

func TestAutomationCoverage(t *testing.T) {
	cache := newTestCache(t)

	cases := make([]Case, 0, 10)
	for i := 1; i <= 6; i++ {
		cases = append(cases, Case{ID: int64(i), SectionID: 500, Title: "a", AutomationType: intPtr(AutomationAutomated)})
	}
	for i := 7; i <= 10; i++ {
		cases = append(cases, Case{ID: int64(i), SectionID: 500, Title: "m", AutomationType: intPtr(AutomationManual)})
	}
	runCycle(t, cache,
		[]Project{{ID: 19, Name: "iVision"}},
		[]Suite{{ID: 100, ProjectID: 19, Name: "Master"}},
		[]Section{{ID: 500, SuiteID: 100, Name: "Login"}},
		cases,
	)

	cov, err := cache.AutomationCoverage(19)
	require.NoError(t, err)
	assert.Equal(t, Coverage{
		TotalCases:           10,
		AutomatedCases:       6,
		ManualCases:          4,
		NotRequiredCases:     0,
		AutomationPercentage: 60,
	}, cov)
}

func TestAutomationCoverageZeroTotal(t *testing.T) {
	cache := newTestCache(t)
	cov, err := cache.AutomationCoverage(42)
	require.NoError(t, err)
	assert.Equal(t, Coverage{}, cov)
}

func TestAutomationCoverageNullMarkerIsNotRequired(t *testing.T) {
	cache := newTestCache(t)
	runCycle(t, cache,
		[]Project{{ID: 1, Name: "P"}},
		[]Suite{{ID: 10, ProjectID: 1, Name: "S"}},
		[]Section{{ID: 20, SuiteID: 10, Name: "Sec"}},
		[]Case{
			{ID: 1, SectionID: 20, Title: "a", AutomationType: intPtr(AutomationAutomated)},
			{ID: 2, SectionID: 20, Title: "b", AutomationType: intPtr(AutomationNotRequired)},
			{ID: 3, SectionID: 20, Title: "c"}, // no marker at all
		},
	)

	cov, err := cache.AutomationCoverage(1)
	require.NoError(t, err)
	assert.Equal(t, 3, cov.TotalCases)
	assert.Equal(t, 1, cov.AutomatedCases)
	assert.Equal(t, 2, cov.NotRequiredCases)
	assert.InDelta(t, 33.33, cov.AutomationPercentage, 0.001)
}

func TestCasesExcludeInactiveSections(t *testing.T) {
	cache := newTestCache(t)
	seedHierarchy(t, cache)

	// Section disappears but its cases somehow survive: reads must not show them.
	runCycle(t, cache,
		[]Project{{ID: 19, Name: "iVision"}},
		[]Suite{{ID: 100, ProjectID: 19, Name: "Master"}},
		nil,
		nil,
	)
	cases, err := cache.Cases(100)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestCaseRawPayloadRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	raw := `{"id":1,"title":"t","custom_automation_type":2,"custom_extra_field":"kept"}`
	runCycle(t, cache,
		[]Project{{ID: 1, Name: "P"}},
		[]Suite{{ID: 10, ProjectID: 1, Name: "S"}},
		[]Section{{ID: 20, SuiteID: 10, Name: "Sec"}},
		[]Case{{ID: 1, SectionID: 20, Title: "t", Data: raw}},
	)

	var data string
	err := cache.db.QueryRow(`SELECT data FROM cases WHERE id = 1`).Scan(&data)
	require.NoError(t, err)
	assert.JSONEq(t, raw, data)
}
