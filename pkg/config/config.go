package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaneholloman/dotstate/pkg/errors"
)

// CurrentVersion is the schema version written by Save
const CurrentVersion = 1

// DefaultRepoName is the storage repository name when none is configured
const DefaultRepoName = "dotstate-storage"

// EnvGitHubToken overrides the token stored in the config file
const EnvGitHubToken = "DOTSTATE_GITHUB_TOKEN"

// RepoMode says how the storage repository was set up
type RepoMode string

const (
	// ModeGitHub repositories are created or cloned through the hosting API
	ModeGitHub RepoMode = "github"
	// ModeLocal repositories are provided by the user and use their git credentials
	ModeLocal RepoMode = "local"
)

// UnmarshalText accepts any casing
func (m *RepoMode) UnmarshalText(text []byte) error {
	switch v := RepoMode(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case ModeGitHub, ModeLocal:
		*m = v
		return nil
	case "":
		*m = ModeGitHub
		return nil
	default:
		return errors.Newf(errors.ErrConfigParse, "unknown repo_mode %q (expected github or local)", string(text))
	}
}

// Duration is a time.Duration stored as text ("24h")
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return errors.Wrapf(err, errors.ErrConfigParse, "invalid duration %q", string(text))
	}
	*d = Duration(v)
	return nil
}

// GitHubConfig identifies the remote repository
type GitHubConfig struct {
	Owner string `koanf:"owner" toml:"owner"`
	Repo  string `koanf:"repo" toml:"repo"`
	Token string `koanf:"token" toml:"token,omitempty"`
}

// UpdateConfig controls the startup update check
type UpdateConfig struct {
	CheckEnabled  bool     `koanf:"check_enabled" toml:"check_enabled"`
	CheckInterval Duration `koanf:"check_interval" toml:"check_interval"`
}

// Keymap is kept so the file round-trips; no command reads it.
type Keymap struct {
	Preset    string            `koanf:"preset" toml:"preset"`
	Overrides map[string]string `koanf:"overrides" toml:"overrides,omitempty"`
}

// Config is the user configuration. Profiles live in the storage manifest,
// not here; this only records local choices.
type Config struct {
	Version          int           `koanf:"version" toml:"version"`
	RepoMode         RepoMode      `koanf:"repo_mode" toml:"repo_mode"`
	GitHub           *GitHubConfig `koanf:"github" toml:"github,omitempty"`
	ActiveProfile    string        `koanf:"active_profile" toml:"active_profile"`
	RepoPath         string        `koanf:"repo_path" toml:"repo_path"`
	RepoName         string        `koanf:"repo_name" toml:"repo_name"`
	DefaultBranch    string        `koanf:"default_branch" toml:"default_branch"`
	BackupEnabled    bool          `koanf:"backup_enabled" toml:"backup_enabled"`
	ProfileActivated bool          `koanf:"profile_activated" toml:"profile_activated"`
	CustomFiles      []string      `koanf:"custom_files" toml:"custom_files"`
	Updates          UpdateConfig  `koanf:"updates" toml:"updates"`
	Theme            string        `koanf:"theme" toml:"theme"`
	IconSet          string        `koanf:"icon_set" toml:"icon_set"`
	Keymap           Keymap        `koanf:"keymap" toml:"keymap"`

	path   string
	loaded bool
}

// Path is where the config was loaded from and where Save writes
func (c *Config) Path() string {
	return c.path
}

// SetPath changes where Save writes
func (c *Config) SetPath(path string) {
	c.path = path
}

// Exists reports whether a config file was present at load time
func (c *Config) Exists() bool {
	return c.loaded
}

// GitHubToken returns DOTSTATE_GITHUB_TOKEN when set, else the stored token
func (c *Config) GitHubToken() string {
	if token := os.Getenv(EnvGitHubToken); token != "" {
		return token
	}
	if c.GitHub != nil {
		return c.GitHub.Token
	}
	return ""
}

// IsRepoConfigured reports whether setup has completed for this mode
func (c *Config) IsRepoConfigured() bool {
	switch c.RepoMode {
	case ModeLocal:
		_, err := os.Stat(filepath.Join(c.RepoPath, ".git"))
		return err == nil
	default:
		return c.GitHub != nil
	}
}

// ResetToUnconfigured clears what setup establishes so it can run again.
// Local preferences such as backups and theme are kept.
func (c *Config) ResetToUnconfigured() {
	c.GitHub = nil
	c.ActiveProfile = ""
	c.ProfileActivated = false
	c.RepoName = DefaultRepoName
}

// AddCustomFile remembers a user-chosen path for later scans
func (c *Config) AddCustomFile(rel string) bool {
	for _, f := range c.CustomFiles {
		if f == rel {
			return false
		}
	}
	c.CustomFiles = append(c.CustomFiles, rel)
	return true
}
