package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FixedReport is a canned TestRail report exposed by the API without lookup.
type FixedReport struct {
	ID          int    `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	ProjectID   int    `yaml:"project_id" json:"project_id"`
	ProjectName string `yaml:"project_name" json:"project_name"`
}

// Config holds all runtime settings. Values come from an optional YAML file,
// overridden by environment variables.
type Config struct {
	TestRailURL  string `yaml:"testrail_url"`
	TestRailUser string `yaml:"testrail_user"`
	TestRailKey  string `yaml:"testrail_key"`

	JiraURL      string `yaml:"jira_url"`
	JiraEmail    string `yaml:"jira_email"`
	JiraAPIToken string `yaml:"jira_api_token"`
	JiraEpicKey  string `yaml:"jira_epic_key"`

	// Project whose cases feed the monthly automation stats.
	DashboardProjectID int `yaml:"dashboard_project_id"`

	CacheDBPath     string `yaml:"cache_db_path"`
	DashboardDBPath string `yaml:"dashboard_db_path"`

	Port         int     `yaml:"port"`
	SyncPageSize int     `yaml:"sync_page_size"`
	SyncRateRPS  float64 `yaml:"sync_rate_rps"`

	FixedReports []FixedReport `yaml:"fixed_reports"`
}

// Load reads the optional YAML file at path (empty path skips the file),
// applies environment overrides, then fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.TestRailURL, "TESTRAIL_URL")
	setString(&cfg.TestRailUser, "TESTRAIL_API_USER")
	setString(&cfg.TestRailKey, "TESTRAIL_API_KEY")
	setString(&cfg.JiraURL, "JIRA_URL")
	setString(&cfg.JiraEmail, "JIRA_EMAIL")
	setString(&cfg.JiraAPIToken, "JIRA_API_TOKEN")
	setString(&cfg.JiraEpicKey, "JIRA_EPIC_KEY")
	setString(&cfg.CacheDBPath, "CACHE_DB_PATH")
	setString(&cfg.DashboardDBPath, "DASHBOARD_DB_PATH")

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	if v := os.Getenv("DASHBOARD_PROJECT_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			cfg.DashboardProjectID = id
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.CacheDBPath == "" {
		cfg.CacheDBPath = "data/testrail_cases.db"
	}
	if cfg.DashboardDBPath == "" {
		cfg.DashboardDBPath = "data/testrail_dashboard.db"
	}
	if cfg.SyncPageSize == 0 {
		cfg.SyncPageSize = 100
	}
	if cfg.SyncRateRPS == 0 {
		cfg.SyncRateRPS = 5
	}
}

// ValidateTestRail checks the credentials the sync path and live proxy need.
func (c *Config) ValidateTestRail() error {
	return c.requireVars(map[string]string{
		"TESTRAIL_URL":      c.TestRailURL,
		"TESTRAIL_API_USER": c.TestRailUser,
		"TESTRAIL_API_KEY":  c.TestRailKey,
	})
}

// ValidateReport checks everything the monthly aggregator needs, naming every
// missing variable in one error.
func (c *Config) ValidateReport() error {
	return c.requireVars(map[string]string{
		"TESTRAIL_API_USER": c.TestRailUser,
		"TESTRAIL_API_KEY":  c.TestRailKey,
		"JIRA_URL":          c.JiraURL,
		"JIRA_EMAIL":        c.JiraEmail,
		"JIRA_API_TOKEN":    c.JiraAPIToken,
		"JIRA_EPIC_KEY":     c.JiraEpicKey,
	})
}

func (c *Config) requireVars(vars map[string]string) error {
	var missing []string
	for name, val := range vars {
		if val == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
