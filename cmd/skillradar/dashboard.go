package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/skillradar/internal/dashboard"
	"github.com/amishk599/skillradar/internal/model"
	"github.com/amishk599/skillradar/internal/notifier"
	"github.com/amishk599/skillradar/internal/pipeline"
	"github.com/amishk599/skillradar/internal/store"
)

const pickerTopTerms = 5

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Browse clustered jobs interactively (TUI)",
	Long: "Classifies the current batch without touching the baseline, lets you pick " +
		"your preferred clusters, then shows all jobs next to the new ones that match.",
	RunE: runDashboardCmd,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboardCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, st := mustSetup(logger, true)
	defer st.Close()

	// Any log output before the alt-screen starts corrupts the display.
	silent := slog.New(slog.NewTextHandler(io.Discard, nil))
	ro := store.NewReadOnlyStore(st.Store, silent)
	p := buildPipeline(cfg, ro, notifier.NewLogNotifier(silent), silent)

	snap, err := dashboard.RunLoader("Classifying "+cfg.Input.Path, func(ctx context.Context) (*pipeline.Snapshot, error) {
		return p.Prepare(ctx)
	})
	if err != nil {
		st.Close()
		fatal(logger, "failed to prepare dashboard", err)
	}
	if snap.Trained {
		fmt.Println("No saved classifier yet: trained a preview model (not saved). Run `skillradar run` to persist one.")
	}

	runDashboard(snap, p.Preferred())
	return nil
}

func runDashboard(snap *pipeline.Snapshot, initial model.ClusterSet) {
	options := dashboard.ClusterOptions(snap.Classifier, snap.Classified, pickerTopTerms)
	preferred := initial

	for {
		chosen, quit, err := dashboard.RunClusterPicker(options, preferred)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Picker error: %v\n", err)
			return
		}
		if quit {
			return
		}
		preferred = chosen

		matched := pipeline.FilterByPreference(snap.New, chosen)
		wantQuit, err := dashboard.RunDashboardTUI(snap.Classified, matched, chosen)
		if err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			return
		}
		if wantQuit {
			return
		}
	}
}
