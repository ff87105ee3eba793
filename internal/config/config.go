package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for skillradar.
type Config struct {
	Input              InputConfig
	Storage            StorageConfig
	Model              ModelConfig
	PreferredClusters  []int
	SkipFirstRunAlerts bool
	Filters            FilterConfig
	Notification       NotificationConfig
	Schedule           ScheduleConfig
	Metrics            MetricsConfig
}

// InputConfig points at the scraper output.
type InputConfig struct {
	Path  string `yaml:"path"`  // CSV or .xlsx file produced by the scraper
	Sheet string `yaml:"sheet"` // workbook sheet to read; first sheet when empty
}

// StorageConfig selects where the baseline and classifier live.
type StorageConfig struct {
	Backend     string        // "file" or "sqlite"
	Dir         string        // data dir for the file backend and the run lock
	SQLitePath  string        // database file for the sqlite backend
	LockTimeout time.Duration // how long a run waits for another to finish
}

// ModelConfig controls classifier training. Only used when no classifier
// has been persisted yet.
type ModelConfig struct {
	Clusters      int    `yaml:"clusters"`
	MaxFeatures   int    `yaml:"max_features"`
	Seed          uint64 `yaml:"seed"`
	MaxIterations int    `yaml:"max_iterations"`
	NInit         int    `yaml:"n_init"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// FilterConfig holds keyword and location filters applied to alerts after
// the cluster preference.
type FilterConfig struct {
	TitleKeywords        []string `yaml:"title_keywords"`
	TitleExcludeKeywords []string `yaml:"title_exclude_keywords"`
	Locations            []string `yaml:"locations"`
	ExcludeLocations     []string `yaml:"exclude_locations"`
}

// MetricsConfig controls Prometheus export. Both are optional.
type MetricsConfig struct {
	Listen   string `yaml:"listen"`   // address for /metrics while the daemon runs, e.g. ":9464"
	Textfile string `yaml:"textfile"` // node_exporter textfile written after each one-shot run
}

// ScheduleConfig drives the start command. Cron, when set, replaces Interval.
type ScheduleConfig struct {
	Interval   time.Duration
	Cron       string        // standard 5-field expression or descriptor such as "@daily"
	WatchInput bool          // also run when the input file is rewritten
	Debounce   time.Duration // quiet period after the last write before a watch-triggered run
}

const (
	defaultInputPath   = "data/jobs.csv"
	defaultDataDir     = "data"
	defaultLockTimeout = 30 * time.Second
	defaultInterval    = 6 * time.Hour
	defaultDebounce    = 5 * time.Second
	slackWebhookPrefix = "https://hooks.slack.com/"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Input              InputConfig        `yaml:"input"`
	Storage            rawStorageConfig   `yaml:"storage"`
	Model              ModelConfig        `yaml:"model"`
	PreferredClusters  *[]int             `yaml:"preferred_clusters"`
	SkipFirstRunAlerts *bool              `yaml:"skip_first_run_alerts"`
	Filters            FilterConfig       `yaml:"filters"`
	Notification       NotificationConfig `yaml:"notification"`
	Schedule           rawScheduleConfig  `yaml:"schedule"`
	Metrics            MetricsConfig      `yaml:"metrics"`
}

type rawStorageConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	SQLitePath  string `yaml:"sqlite_path"`
	LockTimeout string `yaml:"lock_timeout"`
}

type rawScheduleConfig struct {
	Interval   string `yaml:"interval"`
	Cron       string `yaml:"cron"`
	WatchInput bool   `yaml:"watch_input"`
	Debounce   string `yaml:"debounce"`
}

// Default returns the configuration used when no config file exists:
// five clusters, clusters 0 and 1 preferred, file storage under ./data,
// no alerts on the run that seeds the baseline, and alerts written to the log.
func Default() *Config {
	return &Config{
		Input: InputConfig{Path: defaultInputPath},
		Storage: StorageConfig{
			Backend:     "file",
			Dir:         defaultDataDir,
			SQLitePath:  filepath.Join(defaultDataDir, "skillradar.db"),
			LockTimeout: defaultLockTimeout,
		},
		Model: ModelConfig{
			Clusters:      5,
			MaxFeatures:   1000,
			Seed:          42,
			MaxIterations: 300,
			NInit:         1,
		},
		PreferredClusters:  []int{0, 1},
		SkipFirstRunAlerts: true,
		Notification:       NotificationConfig{Type: "log"},
		Schedule:           ScheduleConfig{Interval: defaultInterval, Debounce: defaultDebounce},
	}
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// Fields absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := raw.apply(Default())
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (raw rawConfig) apply(cfg *Config) (*Config, error) {
	if raw.Input.Path != "" {
		cfg.Input.Path = raw.Input.Path
	}
	cfg.Input.Sheet = raw.Input.Sheet

	if raw.Storage.Backend != "" {
		cfg.Storage.Backend = strings.ToLower(raw.Storage.Backend)
	}
	if raw.Storage.Dir != "" {
		cfg.Storage.Dir = raw.Storage.Dir
		cfg.Storage.SQLitePath = filepath.Join(raw.Storage.Dir, "skillradar.db")
	}
	if raw.Storage.SQLitePath != "" {
		cfg.Storage.SQLitePath = raw.Storage.SQLitePath
	}
	if raw.Storage.LockTimeout != "" {
		d, err := time.ParseDuration(raw.Storage.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse storage.lock_timeout %q: %w", raw.Storage.LockTimeout, err)
		}
		cfg.Storage.LockTimeout = d
	}

	if raw.Model.Clusters != 0 {
		cfg.Model.Clusters = raw.Model.Clusters
	}
	if raw.Model.MaxFeatures != 0 {
		cfg.Model.MaxFeatures = raw.Model.MaxFeatures
	}
	if raw.Model.Seed != 0 {
		cfg.Model.Seed = raw.Model.Seed
	}
	if raw.Model.MaxIterations != 0 {
		cfg.Model.MaxIterations = raw.Model.MaxIterations
	}
	if raw.Model.NInit != 0 {
		cfg.Model.NInit = raw.Model.NInit
	}

	// An explicit empty list is kept: it means "alert on nothing".
	if raw.PreferredClusters != nil {
		cfg.PreferredClusters = *raw.PreferredClusters
	}
	if raw.SkipFirstRunAlerts != nil {
		cfg.SkipFirstRunAlerts = *raw.SkipFirstRunAlerts
	}
	cfg.Filters = raw.Filters

	if raw.Notification.Type != "" {
		cfg.Notification.Type = strings.ToLower(raw.Notification.Type)
	}
	cfg.Notification.WebhookURL = raw.Notification.WebhookURL

	cfg.Metrics = raw.Metrics

	if raw.Schedule.Interval != "" {
		d, err := time.ParseDuration(raw.Schedule.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse schedule.interval %q: %w", raw.Schedule.Interval, err)
		}
		cfg.Schedule.Interval = d
	}
	cfg.Schedule.Cron = strings.TrimSpace(raw.Schedule.Cron)
	cfg.Schedule.WatchInput = raw.Schedule.WatchInput
	if raw.Schedule.Debounce != "" {
		d, err := time.ParseDuration(raw.Schedule.Debounce)
		if err != nil {
			return nil, fmt.Errorf("parse schedule.debounce %q: %w", raw.Schedule.Debounce, err)
		}
		cfg.Schedule.Debounce = d
	}

	return cfg, nil
}

// Validate returns the first problem found in cfg.
func Validate(cfg *Config) error {
	if cfg.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}

	switch cfg.Storage.Backend {
	case "file":
		if cfg.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file backend")
		}
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be \"file\" or \"sqlite\", got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.LockTimeout < 0 {
		return fmt.Errorf("storage.lock_timeout must not be negative, got %v", cfg.Storage.LockTimeout)
	}

	if cfg.Model.Clusters < 1 {
		return fmt.Errorf("model.clusters must be at least 1, got %d", cfg.Model.Clusters)
	}
	if cfg.Model.MaxFeatures < 1 {
		return fmt.Errorf("model.max_features must be at least 1, got %d", cfg.Model.MaxFeatures)
	}
	if cfg.Model.MaxIterations < 1 {
		return fmt.Errorf("model.max_iterations must be at least 1, got %d", cfg.Model.MaxIterations)
	}
	if cfg.Model.NInit < 1 {
		return fmt.Errorf("model.n_init must be at least 1, got %d", cfg.Model.NInit)
	}

	for _, c := range cfg.PreferredClusters {
		if c < 0 || c >= cfg.Model.Clusters {
			return fmt.Errorf("preferred_clusters: %d is outside [0, %d)", c, cfg.Model.Clusters)
		}
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			return fmt.Errorf("notification.webhook_url must start with %s", slackWebhookPrefix)
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	if cfg.Metrics.Textfile != "" && !strings.HasSuffix(cfg.Metrics.Textfile, ".prom") {
		return fmt.Errorf("metrics.textfile must end in .prom, got %q", cfg.Metrics.Textfile)
	}

	if cfg.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive, got %v", cfg.Schedule.Interval)
	}
	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron %q: %w", cfg.Schedule.Cron, err)
		}
	}
	if cfg.Schedule.Debounce < 0 {
		return fmt.Errorf("schedule.debounce must not be negative, got %v", cfg.Schedule.Debounce)
	}

	return nil
}
