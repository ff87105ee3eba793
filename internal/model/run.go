package model

import "time"

// RunRecord summarizes one pipeline run for the history table.
type RunRecord struct {
	RunID     string
	StartedAt time.Time
	Fetched   int
	New       int
	Matched   int
	Trained   bool
	FirstRun  bool
}
