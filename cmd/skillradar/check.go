package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/skillradar/internal/notifier"
	"github.com/amishk599/skillradar/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry run: print what would be alerted, persist nothing",
	Long: "Runs the full pipeline against a read-only view of the store. Alerts are " +
		"printed to the log instead of the configured notifier; neither the classifier " +
		"nor the baseline is saved.",
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, st := mustSetup(logger, true)
	defer st.Close()

	logger.Info("check mode: nothing will be persisted")

	ro := store.NewReadOnlyStore(st.Store, logger)
	p := buildPipeline(cfg, ro, notifier.NewLogNotifier(logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := p.Run(ctx)
	if err != nil {
		st.Close()
		fatal(logger, "check failed", err)
	}

	logger.Info("check complete", "fetched", res.Fetched, "new", res.New, "would_alert", res.Matched)
	return nil
}
