// Package config loads teampulse configuration from YAML, .env files, and
// environment variables. Environment values win over the file so deployments
// can keep credentials out of the config on disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all teampulse configuration.
type Config struct {
	// Issue tracker (Jira-compatible)
	Jira JiraConfig `yaml:"jira"`

	// Code host (GitHub-compatible)
	GitHub GitHubConfig `yaml:"github"`

	// Team roster: the member allow-list with per-source identities
	Team []MemberEntry `yaml:"team" validate:"required,min=1,dive"`

	// Time window lookbacks
	Windows WindowsConfig `yaml:"windows"`

	// Timeouts
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// JiraConfig configures the issue-tracker client.
type JiraConfig struct {
	BaseURL    string `yaml:"base_url" validate:"required,url"`
	Email      string `yaml:"email" validate:"required"`
	APIToken   string `yaml:"api_token" validate:"required"`
	MaxResults int    `yaml:"max_results" validate:"min=1,max=100"`

	// Enrich controls the per-issue detail fetch (rendered description).
	// Best-effort when on; issues without a fetched description still render.
	Enrich bool `yaml:"enrich"`
}

// GitHubConfig configures the code-host client.
type GitHubConfig struct {
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	APIToken string `yaml:"api_token" validate:"required"`
	PerPage  int    `yaml:"per_page" validate:"min=1,max=100"`
}

// MemberEntry is one roster entry. The Jira and GitHub identifiers fall back
// to Name when empty.
type MemberEntry struct {
	Name   string `yaml:"name" validate:"required"`
	Jira   string `yaml:"jira"`
	GitHub string `yaml:"github"`
}

// WindowsConfig maps the time windows to lookback durations in days.
type WindowsConfig struct {
	RecentDays int `yaml:"recent_days" validate:"min=1"`
	WeekDays   int `yaml:"week_days" validate:"min=1"`
}

// TimeoutsConfig holds duration strings; use the Get* accessors.
type TimeoutsConfig struct {
	Source string `yaml:"source"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // debug, info, warn, error
	Dir     string `yaml:"dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Jira: JiraConfig{
			MaxResults: 20,
		},
		GitHub: GitHubConfig{
			BaseURL: "https://api.github.com",
			PerPage: 10,
		},
		Windows: WindowsConfig{
			RecentDays: 14,
			WeekDays:   7,
		},
		Timeouts: TimeoutsConfig{
			Source: "30s",
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
			Dir:     filepath.Join(".teampulse", "logs"),
		},
	}
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "teampulse.yaml"
	}
	return filepath.Join(cwd, "teampulse.yaml")
}

// Load loads configuration from a YAML file, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env values become process env before overrides are read
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("JIRA_BASE_URL"); url != "" {
		c.Jira.BaseURL = url
	}
	if email := os.Getenv("JIRA_EMAIL"); email != "" {
		c.Jira.Email = email
	}
	if key := os.Getenv("JIRA_API_KEY"); key != "" {
		c.Jira.APIToken = key
	}
	if url := os.Getenv("GITHUB_BASE_URL"); url != "" {
		c.GitHub.BaseURL = url
	}
	if key := os.Getenv("GITHUB_API_KEY"); key != "" {
		c.GitHub.APIToken = key
	}

	// TEAM_MEMBERS is a comma-separated list of display names; it replaces
	// the roster wholesale so env-only deployments work without a file.
	if members := os.Getenv("TEAM_MEMBERS"); members != "" {
		var team []MemberEntry
		for _, name := range strings.Split(members, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			team = append(team, MemberEntry{Name: name})
		}
		if len(team) > 0 {
			c.Team = team
		}
	}

	if level := os.Getenv("TEAMPULSE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.Enabled = true
	}
}

// GetSourceTimeout returns the per-source-call timeout as a duration.
func (c *Config) GetSourceTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.Source)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// RecentLookback returns the Recent window lookback duration.
func (c *Config) RecentLookback() time.Duration {
	return time.Duration(c.Windows.RecentDays) * 24 * time.Hour
}

// WeekLookback returns the ThisWeek window lookback duration.
func (c *Config) WeekLookback() time.Duration {
	return time.Duration(c.Windows.WeekDays) * 24 * time.Hour
}

var validate = validator.New()

// Validate validates the configuration. Credentials for both sources and a
// non-empty roster are required before queries can run.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q validation", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool)
	for _, m := range c.Team {
		key := strings.ToLower(m.Name)
		if seen[key] {
			return fmt.Errorf("invalid config: duplicate team member %q", m.Name)
		}
		seen[key] = true
	}

	if _, err := time.ParseDuration(c.Timeouts.Source); err != nil {
		return fmt.Errorf("invalid config: timeouts.source %q is not a duration", c.Timeouts.Source)
	}

	return nil
}
