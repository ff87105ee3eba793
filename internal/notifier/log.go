package notifier

import (
	"log/slog"

	"github.com/amishk599/skillradar/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes new job matches to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each alert via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs a summary line followed by one line per job.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(alerts model.Batch) error {
	if len(alerts) == 0 {
		n.logger.Info("no new jobs found in your preferred categories")
		return nil
	}
	n.logger.Info("found new jobs matching your preferences", "count", len(alerts))
	for _, j := range alerts {
		args := []any{"title", j.Title, "company", j.Company, "location", j.Location, "skills", j.Skills, "cluster", j.Cluster}
		if j.Experience != "" {
			args = append(args, "experience", j.Experience)
		}
		n.logger.Info("new job", args...)
	}
	return nil
}
