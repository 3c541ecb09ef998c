// Package schedule runs background jobs on cron specs.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 2 * time.Minute

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs named jobs. A run that is still going when the next tick
// arrives causes that tick to be skipped.
type Scheduler struct {
	logger  *slog.Logger
	cron    *cron.Cron
	timeout time.Duration
}

func New(log *slog.Logger, timeout time.Duration) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Scheduler{
		logger:  log.With(slog.String("component", "schedule")),
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
	}
}

// Add registers job under name with a standard five-field spec or a
// descriptor such as "@every 6h".
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("job scheduled", slog.String("job", name), slog.String("spec", spec))
	return nil
}

// Len reports how many jobs are registered.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	if err != nil {
		s.logger.Error("job failed", slog.String("job", name), slog.Duration("took", time.Since(start)), slog.Any("error", err))
		return err
	}
	s.logger.Info("job finished", slog.String("job", name), slog.Duration("took", time.Since(start)))
	return nil
}
