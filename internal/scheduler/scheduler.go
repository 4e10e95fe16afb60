// Package scheduler runs the engine's periodic jobs: the draft clock,
// price refreshes and waiver processing.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/flit/fantasy-engine/internal/metrics"
)

// TaskFunc is a job body. ctx is cancelled when the scheduler shuts down.
type TaskFunc func(ctx context.Context) error

type Scheduler struct {
	scheduler gocron.Scheduler
}

func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop waits for running jobs to return.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// Every registers fn to run at a fixed interval. A run that overlaps the
// next tick delays it rather than running twice at once.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFunc, startImmediately bool) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", name, interval)
	}
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if startImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	if _, err := s.scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(wrap(name, fn)), opts...); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	slog.Info("job scheduled", "job", name, "interval", interval.String())
	return nil
}

// wrap records each run's outcome and duration and keeps a panicking job
// from taking down the scheduler.
func wrap(name string, fn TaskFunc) func(ctx context.Context) {
	return func(ctx context.Context) {
		start := time.Now()
		result := "ok"
		defer func() {
			if r := recover(); r != nil {
				result = "panic"
				slog.Error("job panicked",
					"job", name,
					"panic", r,
					"stacktrace", string(debug.Stack()),
				)
			}
			metrics.JobRunsTotal.WithLabelValues(name, result).Inc()
			metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}()

		if err := fn(ctx); err != nil {
			result = "error"
			slog.Error("job failed", "job", name, "err", err)
			return
		}
		slog.Debug("job completed", "job", name, "duration", time.Since(start).String())
	}
}
