package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/dilshanwn/movie-tickets-notifier/internal/lock"
	"github.com/dilshanwn/movie-tickets-notifier/internal/logging"
	"github.com/dilshanwn/movie-tickets-notifier/internal/metrics"
)

// Scheduler runs a matching pass every Interval. Passes never overlap: the
// loop runs them synchronously and each pass holds Lock, so a tick that
// arrives mid-run is dropped and another instance holding the lock makes
// this one skip.
type Scheduler struct {
	Runner   *Runner
	Lock     lock.Locker
	Interval time.Duration

	// OnResult, when set, observes every pass.
	OnResult func(RunResult)
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	logging.Info().Dur("interval", s.Interval).Msg("scheduler started")

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res := s.RunOnce(ctx)
	if s.OnResult != nil {
		s.OnResult(res)
	}
}

// RunOnce performs a single pass if the run lock is free.
func (s *Scheduler) RunOnce(ctx context.Context) RunResult {
	if s.Lock != nil {
		release, err := s.Lock.TryLock(ctx)
		if err != nil {
			ev := logging.Warn()
			if !errors.Is(err, lock.ErrNotAcquired) {
				ev = logging.Error().Err(err)
			}
			ev.Msg("run lock unavailable, skipping pass")
			metrics.Runs.WithLabelValues(string(StateSkipped)).Inc()
			return RunResult{State: StateSkipped, StartedAt: time.Now()}
		}
		defer release()
	}
	return s.Runner.Run(ctx)
}
