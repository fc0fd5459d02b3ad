package store

const cacheSchema = `
CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY,
    name TEXT,
    is_completed INTEGER DEFAULT 0,
    suite_mode INTEGER,
    url TEXT,
    announcement TEXT,
    active INTEGER DEFAULT 1
);

CREATE TABLE IF NOT EXISTS suites (
    id INTEGER PRIMARY KEY,
    project_id INTEGER REFERENCES projects(id),
    name TEXT,
    description TEXT,
    is_master INTEGER DEFAULT 0,
    url TEXT,
    active INTEGER DEFAULT 1
);

CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY,
    suite_id INTEGER REFERENCES suites(id),
    name TEXT,
    description TEXT,
    parent_id INTEGER,
    depth INTEGER,
    active INTEGER DEFAULT 1
);

CREATE TABLE IF NOT EXISTS cases (
    id INTEGER PRIMARY KEY,
    section_id INTEGER REFERENCES sections(id),
    title TEXT,
    custom_preconds TEXT,
    custom_steps_separated TEXT,
    custom_steps TEXT,
    custom_expected TEXT,
    custom_automation_type INTEGER,
    type_id INTEGER,
    priority_id INTEGER,
    estimate TEXT,
    refs TEXT,
    created_by INTEGER,
    created_on INTEGER,
    updated_by INTEGER,
    updated_on INTEGER,
    milestone_id INTEGER,
    status_id INTEGER,
    template_id INTEGER,
    data TEXT,
    active INTEGER DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_suites_project ON suites(project_id);
CREATE INDEX IF NOT EXISTS idx_sections_suite ON sections(suite_id);
CREATE INDEX IF NOT EXISTS idx_cases_section ON cases(section_id);
`

const dashboardSchema = `
CREATE TABLE IF NOT EXISTS monthly_automation_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    month TEXT NOT NULL,
    year INTEGER NOT NULL,
    total_cases INTEGER DEFAULT 0,
    automated_cases INTEGER DEFAULT 0,
    manual_cases INTEGER DEFAULT 0,
    not_required_cases INTEGER DEFAULT 0,
    automation_percentage REAL DEFAULT 0,
    created_at DATETIME DEFAULT (datetime('now')),
    UNIQUE(month, year)
);

CREATE TABLE IF NOT EXISTS epic_progress_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    epic_key TEXT NOT NULL,
    month TEXT NOT NULL,
    year INTEGER NOT NULL,
    total_stories INTEGER DEFAULT 0,
    done_stories INTEGER DEFAULT 0,
    todo_stories INTEGER DEFAULT 0,
    po_review_stories INTEGER DEFAULT 0,
    declined_stories INTEGER DEFAULT 0,
    progress_percentage REAL DEFAULT 0,
    created_at DATETIME DEFAULT (datetime('now')),
    UNIQUE(epic_key, month, year)
);

CREATE TABLE IF NOT EXISTS execution_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    execution_date DATETIME DEFAULT (datetime('now')),
    job_id TEXT DEFAULT '',
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    message TEXT,
    details TEXT
);
CREATE INDEX IF NOT EXISTS idx_execution_logs_job ON execution_logs(job_id);
`
