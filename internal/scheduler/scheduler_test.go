package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"recap/internal/pipeline"
	"recap/internal/scheduler"
	"recap/internal/store"
	"recap/internal/testsupport"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenStore(t, cfg)
}

func TestRunExecutesImmediatelyOnStart(t *testing.T) {
	st := newStore(t)
	var runs atomic.Int32
	sched := scheduler.New(func(ctx context.Context) (*pipeline.RunStats, error) {
		runs.Add(1)
		return &pipeline.RunStats{RunID: "run-1"}, nil
	}, st, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sched.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected an immediate run on start")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if last := sched.LastRun(); last == nil || last.RunID != "run-1" {
		t.Fatalf("unexpected last run: %#v", last)
	}
}

func TestTriggerAndWaitReturnsStats(t *testing.T) {
	st := newStore(t)
	var runs atomic.Int32
	sched := scheduler.New(func(ctx context.Context) (*pipeline.RunStats, error) {
		return &pipeline.RunStats{Processed: int(runs.Add(1))}, nil
	}, st, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sched.Run(ctx) }()

	// Wait out the startup run, then the loop sleeps on the fallback
	// interval until the trigger arrives.
	waitFor(t, func() bool { return runs.Load() >= 1 })

	stats, err := sched.TriggerAndWait(context.Background())
	if err != nil {
		t.Fatalf("TriggerAndWait failed: %v", err)
	}
	if stats == nil || stats.Processed != 2 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestTriggerRejectsWhenSlotOccupied(t *testing.T) {
	st := newStore(t)
	sched := scheduler.New(func(ctx context.Context) (*pipeline.RunStats, error) {
		return &pipeline.RunStats{}, nil
	}, st, time.Hour, nil)

	// No loop is draining the channel, so the slot fills after one trigger.
	if !sched.Trigger() {
		t.Fatal("first trigger should be accepted")
	}
	if sched.Trigger() {
		t.Fatal("second trigger should be rejected")
	}
}

func TestIntervalReadFromSettings(t *testing.T) {
	st := newStore(t)
	if err := st.SetSetting(context.Background(), store.SettingCheckInterval, "1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	var runs atomic.Int32
	sched := scheduler.New(func(ctx context.Context) (*pipeline.RunStats, error) {
		runs.Add(1)
		return &pipeline.RunStats{}, nil
	}, st, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sched.Run(ctx) }()

	waitFor(t, func() bool { return runs.Load() >= 1 })
	waitFor(t, func() bool { return !sched.NextRunAt().IsZero() })

	// With the setting at 1 minute, the next tick must be well before the
	// 1 hour fallback.
	until := time.Until(sched.NextRunAt())
	if until > 2*time.Minute {
		t.Fatalf("expected next run within ~1m, got %s", until)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
