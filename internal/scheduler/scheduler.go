// Package scheduler runs index jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the unit of work executed on each scheduled tick.
type Job func(ctx context.Context) error

// Scheduler computes run times from a cron expression and sleeps between
// them. A job failure stops the loop and propagates.
type Scheduler struct {
	schedule cron.Schedule
	job      Job
	log      *slog.Logger
}

// New parses a standard 5-field cron expression and creates a Scheduler.
func New(expr string, job Job, log *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return &Scheduler{schedule: schedule, job: job, log: log}, nil
}

// Next returns the first scheduled instant strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// Run loops forever: compute the next tick from the current local time,
// sleep until it arrives, execute the job. Returns when ctx is cancelled
// or the job fails. Missed ticks are not replayed; after each run the
// next instant is recomputed from "now".
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.Next(time.Now())
		s.log.Info("next run scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.job(ctx); err != nil {
			return err
		}
	}
}
