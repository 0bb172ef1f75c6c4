package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every poll.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// SkipInitial waits a full interval before the first tick.
	SkipInitial bool
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Scheduler drives periodic history polls.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick once per interval until ctx is cancelled. A
// failed tick is logged and does not stop the loop. Ticks never overlap.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := s.wait(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if !s.opts.SkipInitial {
		s.execute(ctx, tick)
	}

	for {
		next := s.opts.Now().Add(s.opts.Interval)
		s.logger.Debug().Time("next_poll", next).Msg("waiting for next poll")
		if err := s.wait(ctx, s.opts.Interval); err != nil {
			return err
		}
		s.execute(ctx, tick)
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc) {
	at := s.opts.Now().UTC()
	s.logger.Info().Time("at", at).Msg("executing scheduled poll")
	if err := tick(ctx, at); err != nil {
		s.logger.Error().Err(err).Time("at", at).Msg("poll execution failed")
	}
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
