package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/amishk599/skillradar/internal/dashboard"
	"github.com/amishk599/skillradar/internal/notifier"
	"github.com/amishk599/skillradar/internal/store"
)

var topTerms int

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List clusters with their top skill terms",
	Long: "Classifies the current batch (read-only) and prints a table of clusters " +
		"with their job counts and highest-weighted terms.",
	RunE: runClusters,
}

func init() {
	clustersCmd.Flags().IntVarP(&topTerms, "terms", "n", 8, "number of top terms per cluster")
	rootCmd.AddCommand(clustersCmd)
}

func runClusters(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, st := mustSetup(logger, true)
	defer st.Close()

	silent := slog.New(slog.NewTextHandler(io.Discard, nil))
	ro := store.NewReadOnlyStore(st.Store, silent)
	p := buildPipeline(cfg, ro, notifier.NewLogNotifier(silent), silent)

	snap, err := p.Prepare(context.Background())
	if err != nil {
		st.Close()
		fatal(logger, "failed to classify batch", err)
	}

	newCounts := make(map[int]int)
	for _, j := range snap.New {
		newCounts[j.Cluster]++
	}

	t := newTable()
	t.AppendHeader(table.Row{"Cluster", "Jobs", "New", "Preferred", "Top terms"})
	for _, o := range dashboard.ClusterOptions(snap.Classifier, snap.Classified, topTerms) {
		preferred := ""
		if p.Preferred().Has(o.ID) {
			preferred = "yes"
		}
		t.AppendRow(table.Row{o.ID, o.Jobs, newCounts[o.ID], preferred, strings.Join(o.Terms, ", ")})
	}
	t.Render()

	fmt.Printf("\nTotal: %d jobs in %d clusters (%d new)\n", len(snap.Classified), snap.Classifier.NumClusters(), len(snap.New))
	if snap.Trained {
		fmt.Println("Classifier was trained for this preview and not saved.")
	}
	return nil
}
