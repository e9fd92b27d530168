package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"recap/internal/logging"
	"recap/internal/pipeline"
	"recap/internal/runlock"
	"recap/internal/store"
)

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context) (*pipeline.RunStats, error)

// Scheduler drives periodic and on-demand runs. Runs never overlap: the
// run lock rejects the second caller and the scheduler treats that as a
// skipped tick, not an error.
type Scheduler struct {
	run      RunFunc
	store    *store.Store
	logger   *slog.Logger
	fallback time.Duration

	trigger  chan chan *pipeline.RunStats
	running  atomic.Bool
	lastRun  atomic.Pointer[pipeline.RunStats]
	nextTick atomic.Pointer[time.Time]
}

// New builds a scheduler around the given run function. fallbackInterval
// applies until the settings table provides a value.
func New(run RunFunc, st *store.Store, fallbackInterval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		run:      run,
		store:    st,
		logger:   logger.With(logging.String(logging.FieldComponent, "scheduler")),
		fallback: fallbackInterval,
		trigger:  make(chan chan *pipeline.RunStats, 1),
	}
}

// Run loops until the context is cancelled. The first run starts
// immediately; afterwards each wait uses the current check interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.execute(ctx)
	for {
		interval := s.interval(ctx)
		next := time.Now().Add(interval)
		s.nextTick.Store(&next)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case reply := <-s.trigger:
			timer.Stop()
			stats := s.execute(ctx)
			if reply != nil {
				reply <- stats
			}
		case <-timer.C:
			s.execute(ctx)
		}
	}
}

// TriggerAndWait requests an immediate run and blocks until it finishes,
// returning its stats. It fails if the scheduler loop is not draining
// triggers or a run is already pending.
func (s *Scheduler) TriggerAndWait(ctx context.Context) (*pipeline.RunStats, error) {
	reply := make(chan *pipeline.RunStats, 1)
	select {
	case s.trigger <- reply:
	default:
		return nil, errors.New("a run is already pending")
	}
	select {
	case stats := <-reply:
		if stats == nil {
			return nil, errors.New("run did not complete")
		}
		return stats, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Trigger requests an immediate run without waiting for the result. It
// reports whether the request was accepted.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- nil:
		return true
	default:
		return false
	}
}

// Running reports whether a run is executing right now.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// LastRun returns the stats of the most recent completed run, or nil.
func (s *Scheduler) LastRun() *pipeline.RunStats {
	return s.lastRun.Load()
}

// NextRunAt returns the scheduled time of the next periodic run.
func (s *Scheduler) NextRunAt() time.Time {
	if next := s.nextTick.Load(); next != nil {
		return *next
	}
	return time.Time{}
}

func (s *Scheduler) execute(ctx context.Context) *pipeline.RunStats {
	if ctx.Err() != nil {
		return nil
	}
	s.running.Store(true)
	defer s.running.Store(false)

	stats, err := s.run(ctx)
	if err != nil {
		if errors.Is(err, runlock.ErrHeld) {
			s.logger.Info("skipping run, lock held elsewhere")
		} else {
			s.logger.Error("run failed", logging.Error(err))
		}
	}
	if stats != nil {
		s.lastRun.Store(stats)
	}
	return stats
}

// interval reads the check interval from settings, falling back to the
// configured default on missing or invalid values.
func (s *Scheduler) interval(ctx context.Context) time.Duration {
	raw, err := s.store.GetSetting(ctx, store.SettingCheckInterval, "")
	if err != nil {
		s.logger.Warn("failed to read check interval", logging.Error(err))
		return s.fallback
	}
	if raw == "" {
		return s.fallback
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		s.logger.Warn("invalid check interval setting", logging.String("value", raw))
		return s.fallback
	}
	return time.Duration(minutes) * time.Minute
}
