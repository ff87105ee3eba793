package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/skillradar/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Alert delivery commands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a sample job alert",
	Long:  "Sends one made-up job alert through the configured notifier to check the wiring.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("sending test alert", "notifier", cfg.Notification.Type)
	if err := notifier.SendTestMessage(setupNotifier(cfg, newHTTPClient(), logger)); err != nil {
		fatal(logger, "test alert failed", err)
	}
	logger.Info("test alert sent; check your channel")
	return nil
}
