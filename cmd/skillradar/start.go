package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/skillradar/internal/config"
	"github.com/amishk599/skillradar/internal/metrics"
	"github.com/amishk599/skillradar/internal/scheduler"
	"github.com/amishk599/skillradar/internal/watch"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	Long: "Run the pipeline every schedule.interval, or on schedule.cron when set, " +
		"and optionally whenever the input file changes. Blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, st := mustSetup(logger, false)
	defer st.Close()

	logger.Info("config loaded",
		"interval", cfg.Schedule.Interval.String(),
		"cron", cfg.Schedule.Cron,
		"input", cfg.Input.Path,
		"backend", cfg.Storage.Backend,
		"preferred_clusters", cfg.PreferredClusters,
	)

	n := setupNotifier(cfg, newHTTPClient(), logger)
	m := metrics.New()
	runner := m.Wrap(buildCommittingPipeline(cfg, st, n, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen, m, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", cfg.Metrics.Listen)
	}

	sched, err := newScheduler(cfg, runner, logger)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		st.Close()
		os.Exit(1)
	}
	if cfg.Schedule.WatchInput {
		trigger, err := watch.File(ctx, cfg.Input.Path, cfg.Schedule.Debounce, logger)
		if err != nil {
			logger.Error("failed to watch input", "path", cfg.Input.Path, "error", err)
			st.Close()
			os.Exit(1)
		}
		sched.SetTrigger(trigger)
		logger.Info("watching input for changes", "path", cfg.Input.Path, "debounce", cfg.Schedule.Debounce.String())
	}

	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		st.Close()
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

// newScheduler prefers schedule.cron over schedule.interval.
func newScheduler(cfg *config.Config, r scheduler.Runner, logger *slog.Logger) (*scheduler.Scheduler, error) {
	if cfg.Schedule.Cron != "" {
		return scheduler.NewCronScheduler(r, cfg.Schedule.Cron, logger)
	}
	return scheduler.NewScheduler(r, cfg.Schedule.Interval, logger), nil
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}
