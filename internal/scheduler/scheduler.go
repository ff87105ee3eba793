package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/skillradar/internal/model"
	"github.com/amishk599/skillradar/internal/pipeline"
)

// Runner is one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// every is a fixed-interval schedule measured from the end of the last run.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

// Scheduler owns the daemon loop: it runs the pipeline once immediately and
// then again at each scheduled time until ctx is cancelled. A trigger, if
// set, starts an extra run early.
type Scheduler struct {
	runner   Runner
	schedule cron.Schedule
	desc     string
	trigger  <-chan struct{}
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs r at the given interval.
func NewScheduler(r Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   r,
		schedule: every(interval),
		desc:     "every " + interval.String(),
		logger:   logger,
	}
}

// NewCronScheduler creates a scheduler driven by a standard cron expression
// (five fields, or a descriptor like "@hourly"), evaluated in local time.
func NewCronScheduler(r Runner, expr string, logger *slog.Logger) (*Scheduler, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}
	return &Scheduler{
		runner:   r,
		schedule: sched,
		desc:     "cron " + expr,
		logger:   logger,
	}, nil
}

// SetTrigger makes every receive on ch start a run right away. The regular
// schedule is recomputed after each run.
func (s *Scheduler) SetTrigger(ch <-chan struct{}) { s.trigger = ch }

// Run starts the loop. It returns nil when ctx is cancelled (graceful
// shutdown). A failed pass is logged and the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "schedule", s.desc, "triggered", s.trigger != nil)

	s.runOnce(ctx)

	for {
		next := s.schedule.Next(time.Now())
		s.logger.Debug("next scheduled run", "at", next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("shutting down scheduler")
			return nil
		case <-timer.C:
			s.runOnce(ctx)
		case <-s.trigger:
			timer.Stop()
			s.logger.Info("input changed, running now")
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	res, err := s.runner.Run(ctx)
	switch {
	case err == nil:
		s.logger.Debug("scheduled run finished", "run_id", res.RunID, "matched", res.Matched)
	case errors.Is(err, model.ErrNoInput):
		// The scraper may simply not have produced a batch yet.
		s.logger.Warn("no input for scheduled run, will retry at the next one", "error", err)
	case errors.Is(err, context.Canceled):
		s.logger.Info("scheduled run cancelled")
	default:
		s.logger.Error("scheduled run failed", "kind", model.Kind(err), "error", err)
	}
}
