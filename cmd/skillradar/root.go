package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/amishk599/skillradar/internal/adapter"
	"github.com/amishk599/skillradar/internal/cluster"
	"github.com/amishk599/skillradar/internal/config"
	"github.com/amishk599/skillradar/internal/filter"
	"github.com/amishk599/skillradar/internal/model"
	"github.com/amishk599/skillradar/internal/notifier"
	"github.com/amishk599/skillradar/internal/pipeline"
	"github.com/amishk599/skillradar/internal/retry"
	"github.com/amishk599/skillradar/internal/store"
)

const (
	defaultConfigPath = "config.yaml"
	inputRetries      = 2
	inputRetryDelay   = 2 * time.Second
)

var (
	cfgPath   string
	inputPath string
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:   "skillradar",
	Short: "Cluster scraped job listings and alert on new ones",
	Long: "SkillRadar groups scraped job listings into skill clusters, compares each batch " +
		"with the previous one and alerts you to new jobs in the clusters you care about.",
	// Default to `run` so that a cron entry can invoke the bare binary.
	RunE: runRun,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; real env vars always win.
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: SKILLRADAR_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&inputPath, "input", "i", "", "scraped jobs .csv or .xlsx (overrides input.path)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > SKILLRADAR_CONFIG env var > "./config.yaml".
// A missing ./config.yaml falls back to the defaults; a missing explicit
// path is an error.
func loadConfig(path string) (*config.Config, error) {
	explicit := true
	if path == "" {
		if env := os.Getenv("SKILLRADAR_CONFIG"); env != "" {
			path = env
		} else {
			path = defaultConfigPath
			explicit = false
		}
	}

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg = config.Default()
		err = nil
	}
	if err != nil {
		return nil, err
	}

	if inputPath != "" {
		cfg.Input.Path = inputPath
	}
	return cfg, nil
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// openedStore is the configured backend plus what only some backends offer.
type openedStore struct {
	model.Store
	sqlite   *store.SQLiteStore // nil for the file backend
	lockPath string
}

func (s *openedStore) Close() error {
	if s.sqlite != nil {
		return s.sqlite.Close()
	}
	return nil
}

// openStore opens the configured backend. With readOnly set nothing is
// created on disk: the file backend is opened as is, and a sqlite database
// that does not exist yet is replaced by an empty in-memory one.
func openStore(cfg *config.Config, readOnly bool) (*openedStore, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		lockPath := cfg.Storage.SQLitePath + ".lock"
		path := cfg.Storage.SQLitePath
		if readOnly {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				path = ":memory:"
			}
		} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		db, err := store.NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: db, sqlite: db, lockPath: lockPath}, nil
	default:
		if readOnly {
			files := store.OpenFileStore(cfg.Storage.Dir)
			return &openedStore{Store: files, lockPath: files.LockPath()}, nil
		}
		files, err := store.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: files, lockPath: files.LockPath()}, nil
	}
}

func settingsFrom(cfg *config.Config) pipeline.Settings {
	return pipeline.Settings{
		Preferred: model.NewClusterSet(cfg.PreferredClusters...),
		Training: cluster.Config{
			Clusters:      cfg.Model.Clusters,
			MaxFeatures:   cfg.Model.MaxFeatures,
			MaxIterations: cfg.Model.MaxIterations,
			NInit:         cfg.Model.NInit,
			Seed:          cfg.Model.Seed,
		},
		SkipFirstRunAlerts: cfg.SkipFirstRunAlerts,
	}
}

// newSource picks the reader for the input file by its extension.
func newSource(cfg *config.Config) model.BatchSource {
	if adapter.IsSpreadsheet(cfg.Input.Path) {
		return adapter.NewXLSXAdapter(cfg.Input.Path, cfg.Input.Sheet)
	}
	return adapter.NewCSVAdapter(cfg.Input.Path)
}

// buildPipeline wires a pipeline over st. The keyword filter is only set
// when at least one keyword list is configured.
func buildPipeline(cfg *config.Config, st model.Store, n model.Notifier, logger *slog.Logger) *pipeline.Pipeline {
	source := retry.NewRetrySource(newSource(cfg), inputRetries, inputRetryDelay, logger)
	p := pipeline.New(source, st, n, settingsFrom(cfg), logger)

	kf := filter.NewKeywordFilter(
		cfg.Filters.TitleKeywords,
		cfg.Filters.TitleExcludeKeywords,
		cfg.Filters.Locations,
		cfg.Filters.ExcludeLocations,
	)
	if !kf.IsEmpty() {
		p.SetAlertFilter(kf)
	}
	return p
}

// buildCommittingPipeline is buildPipeline plus the run lock and, on the
// sqlite backend, run history.
func buildCommittingPipeline(cfg *config.Config, st *openedStore, n model.Notifier, logger *slog.Logger) *pipeline.Pipeline {
	p := buildPipeline(cfg, st.Store, n, logger)
	p.SetLock(store.NewRunLock(st.lockPath, cfg.Storage.LockTimeout))
	if st.sqlite != nil {
		p.SetHistory(st.sqlite)
	}
	return p
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// mustSetup loads config and opens the store, exiting on failure. Commands
// that only read pass readOnly so a fresh machine stays untouched.
func mustSetup(logger *slog.Logger, readOnly bool) (*config.Config, *openedStore) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	st, err := openStore(cfg, readOnly)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	return cfg, st
}

// fatal logs a pipeline error with its category and exits.
func fatal(logger *slog.Logger, msg string, err error) {
	attrs := []any{"error", err}
	if kind := model.Kind(err); kind != "" {
		attrs = append(attrs, "kind", kind)
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn(msg, attrs...)
	} else {
		logger.Error(msg, attrs...)
	}
	os.Exit(1)
}
