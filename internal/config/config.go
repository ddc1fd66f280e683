// Package config loads and validates the mobsite YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "mobsite.yaml"

// Config represents the application configuration.
type Config struct {
	Site      SiteConfig    `yaml:"site"`
	Data      DataConfig    `yaml:"data"`
	AssetsDir string        `yaml:"assets_dir,omitempty"` // Overrides embedded css, logos, fonts and calendar files
	Output    OutputConfig  `yaml:"output"`
	Build     BuildConfig   `yaml:"build"`
	Logging   LoggingConfig `yaml:"logging"`
	History   HistoryConfig `yaml:"history"`
	Notify    NotifyConfig  `yaml:"notify"`
	Daemon    DaemonConfig  `yaml:"daemon"`
}

// SiteConfig describes the rendered site.
type SiteConfig struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description,omitempty"`
	BasePath     string   `yaml:"base_path,omitempty"`  // Output root prefix applied to every final path
	EntityDir    string   `yaml:"entity_dir,omitempty"` // Directory holding one page per mob
	ZulipURL     string   `yaml:"zulip_url,omitempty"`
	GitHubURL    string   `yaml:"github_url,omitempty"`
	TwitterURL   string   `yaml:"twitter_url,omitempty"`
	RepoURL      string   `yaml:"repo_url,omitempty"` // Source link in the footer
	Commit       string   `yaml:"commit,omitempty"`
	JoinMarkdown string   `yaml:"join_markdown,omitempty"` // Markdown file for join.html; embedded default when empty
	Fonts        []string `yaml:"fonts,omitempty"`         // Font files under fonts/
}

// DataConfig selects where mob records come from. Exactly one of Dir or Git is used.
type DataConfig struct {
	Dir string     `yaml:"dir,omitempty"`
	Git *GitConfig `yaml:"git,omitempty"`
}

// GitConfig describes a git repository holding mob records.
type GitConfig struct {
	URL          string      `yaml:"url"`
	Branch       string      `yaml:"branch,omitempty"`
	Path         string      `yaml:"path,omitempty"`          // Directory inside the repository
	WorkspaceDir string      `yaml:"workspace_dir,omitempty"` // Persistent clone location; temporary when empty
	Auth         *AuthConfig `yaml:"auth,omitempty"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean"` // Replace the output directory instead of merging into it
}

// BuildConfig tunes the build pipeline.
type BuildConfig struct {
	Concurrency      int         `yaml:"concurrency,omitempty"`
	FailOnAssetError *bool       `yaml:"fail_on_asset_error,omitempty"`
	VerifyLinks      *bool       `yaml:"verify_links,omitempty"`
	Retry            RetryConfig `yaml:"retry"`
}

// RetryConfig controls data source fetch retries.
type RetryConfig struct {
	Mode         RetryBackoffMode `yaml:"mode,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries,omitempty"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// HistoryConfig controls the SQLite build history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path,omitempty"`
}

// NotifyConfig controls NATS notifications.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig controls `mobsite daemon`.
type DaemonConfig struct {
	Interval    string `yaml:"interval,omitempty"`
	HTTPAddr    string `yaml:"http_addr,omitempty"`
	WatchConfig bool   `yaml:"watch_config"`
}

// FailOnAssetErrorEnabled reports whether any failed asset fails the build.
// Unset means true.
func (b BuildConfig) FailOnAssetErrorEnabled() bool {
	return b.FailOnAssetError == nil || *b.FailOnAssetError
}

// VerifyLinksEnabled reports whether rendered pages are link-checked. Unset means true.
func (b BuildConfig) VerifyLinksEnabled() bool {
	return b.VerifyLinks == nil || *b.VerifyLinks
}

// Load reads, expands, normalizes, defaults and validates a configuration file.
// .env and .env.local next to the file are loaded first.
func Load(configPath string) (*Config, error) {
	if loaded := loadEnvFiles(filepath.Dir(configPath)); len(loaded) > 0 {
		slog.Debug("Loaded environment files", slog.Any("files", loaded))
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	slog.Debug("Configuration loaded", logfields.Path(configPath), logfields.Name(cfg.Site.Name))
	return cfg, nil
}

// Parse expands ${VAR} references in data and decodes it into a validated Config.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Build()
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	verify := true
	failOnError := true
	example := Config{
		Site: SiteConfig{
			Name:        "Mob Programming",
			Description: "Find a mob to join",
			EntityDir:   DefaultEntityDir,
			ZulipURL:    "https://example.zulipchat.com",
			GitHubURL:   "https://github.com/example/mobs",
			TwitterURL:  "https://twitter.com/example",
			RepoURL:     "https://github.com/example/mobs",
			Commit:      "${MOBSITE_COMMIT}",
		},
		Data:   DataConfig{Dir: "./data/mobs"},
		Output: OutputConfig{Directory: "./public", Clean: true},
		Build: BuildConfig{
			Concurrency:      8,
			FailOnAssetError: &failOnError,
			VerifyLinks:      &verify,
			Retry:            RetryConfig{Mode: RetryBackoffLinear, InitialDelay: "1s", MaxDelay: "30s", MaxRetries: 2},
		},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		History: HistoryConfig{Enabled: true, DBPath: DefaultHistoryDB},
		Notify:  NotifyConfig{Enabled: false, NATSURL: "nats://localhost:4222", Subject: DefaultNotifySubject},
		Daemon:  DaemonConfig{Interval: DefaultDaemonInterval, HTTPAddr: DefaultDaemonAddr, WatchConfig: true},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

// Delays returns the parsed retry delays. Invalid values yield zero, which
// retry.NewPolicy replaces with its defaults.
func (r RetryConfig) Delays() (initial, maxDelay time.Duration) {
	initial, _ = time.ParseDuration(r.InitialDelay)
	maxDelay, _ = time.ParseDuration(r.MaxDelay)
	return initial, maxDelay
}

// IntervalDuration returns the parsed rebuild interval.
func (d DaemonConfig) IntervalDuration() time.Duration {
	v, err := time.ParseDuration(d.Interval)
	if err != nil {
		return 0
	}
	return v
}
