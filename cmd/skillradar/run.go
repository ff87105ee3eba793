package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/skillradar/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the current batch once",
	Long: "Classify the scraped batch, alert on new jobs in the preferred clusters " +
		"and replace the baseline. Trains the classifier on first use.",
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, st := mustSetup(logger, false)
	defer st.Close()

	logger.Info("config loaded",
		"input", cfg.Input.Path,
		"backend", cfg.Storage.Backend,
		"preferred_clusters", cfg.PreferredClusters,
	)

	n := setupNotifier(cfg, newHTTPClient(), logger)
	m := metrics.New()
	runner := m.Wrap(buildCommittingPipeline(cfg, st, n, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, runErr := runner.Run(ctx)

	// Failed runs are exported too, so alerting can see them.
	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("writing metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
		}
	}

	if runErr != nil {
		st.Close()
		fatal(logger, "run failed", runErr)
	}
	return nil
}
