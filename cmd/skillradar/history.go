package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs (sqlite backend)",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

// newTable returns a stdout table in the style every listing command uses.
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func runHistory(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, st := mustSetup(logger, true)
	defer st.Close()

	if st.sqlite == nil {
		fmt.Fprintf(os.Stderr, "run history needs storage.backend: sqlite (current: %s)\n", cfg.Storage.Backend)
		st.Close()
		os.Exit(1)
	}

	runs, err := st.sqlite.RecentRuns(context.Background(), historyLimit)
	if err != nil {
		logger.Error("failed to read run history", "error", err)
		st.Close()
		os.Exit(1)
	}

	t := newTable()
	t.AppendHeader(table.Row{"Run", "Started", "Fetched", "New", "Matched", "Notes"})
	for _, r := range runs {
		var notes []string
		if r.FirstRun {
			notes = append(notes, "first run")
		}
		if r.Trained {
			notes = append(notes, "trained")
		}
		t.AppendRow(table.Row{
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Fetched,
			r.New,
			r.Matched,
			strings.Join(notes, ", "),
		})
	}
	t.Render()

	fmt.Printf("\nTotal: %d runs\n", len(runs))
	return nil
}
