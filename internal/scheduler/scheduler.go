package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"netspeed-daemon/internal/power"
)

// TickFunc is invoked on every sampling interval.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour. Interval is the live cadence;
// SlowInterval takes over while the display is off.
type Options struct {
	Interval     time.Duration
	SlowInterval time.Duration
	StartupDelay time.Duration
}

// Scheduler drives the sampling loop, switching between the live and slow
// cadences on power events.
type Scheduler struct {
	opts   Options
	source power.EventSource
	logger zerolog.Logger
}

// New constructs a Scheduler. source may be nil, in which case the live
// cadence is used unconditionally.
func New(opts Options, source power.EventSource, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.SlowInterval <= 0 {
		opts.SlowInterval = opts.Interval
	}
	return &Scheduler{
		opts:   opts,
		source: source,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks, invoking the tick function at the active cadence until ctx is
// cancelled. Tick errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	var events <-chan power.Event
	if s.source != nil {
		events = s.source.Events()
	}

	interval := s.opts.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				// Watch ended; keep ticking at the live cadence.
				events = nil
				continue
			}
			next := s.opts.Interval
			if ev.DisplayOff {
				next = s.opts.SlowInterval
			}
			if next != interval {
				interval = next
				ticker.Reset(interval)
				s.logger.Info().Dur("interval", interval).Bool("display_off", ev.DisplayOff).Msg("sampling cadence changed")
			}

		case at := <-ticker.C:
			if err := tick(ctx, at); err != nil {
				s.logger.Error().Err(err).Time("at", at).Msg("tick execution failed")
			}
		}
	}
}
