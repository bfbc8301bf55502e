package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"netspeed-daemon/internal/power"
)

type fakeEvents struct {
	ch chan power.Event
}

func (f *fakeEvents) Events() <-chan power.Event { return f.ch }
func (f *fakeEvents) Close() error               { close(f.ch); return nil }

func TestRunTicksUntilCancelled(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, nil, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, at time.Time) error {
			if ticks.Add(1) >= 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("取消后应返回 context.Canceled: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("调度循环未在取消后退出")
	}

	if ticks.Load() < 3 {
		t.Fatalf("应至少执行 3 次采样, 实际 %d", ticks.Load())
	}
}

func TestRunSurvivesTickErrors(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, nil, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, at time.Time) error {
			if ticks.Add(1) >= 3 {
				cancel()
			}
			return errors.New("boom")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("调度循环不应因采样错误而停止")
	}
	if ticks.Load() < 3 {
		t.Fatalf("出错后应继续采样, 实际 %d", ticks.Load())
	}
}

func TestRunStartupDelayHonoursCancel(t *testing.T) {
	s := New(Options{Interval: time.Millisecond, StartupDelay: time.Hour}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx, func(ctx context.Context, at time.Time) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("启动延迟期间取消应立即返回: %v", err)
	}
}

func TestRunSwitchesCadenceOnPowerEvents(t *testing.T) {
	events := &fakeEvents{ch: make(chan power.Event, 1)}
	s := New(Options{Interval: 2 * time.Millisecond, SlowInterval: time.Hour}, events, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx, func(ctx context.Context, at time.Time) error {
		ticks.Add(1)
		return nil
	})

	// Let the live cadence tick a few times, then switch to the slow one.
	time.Sleep(30 * time.Millisecond)
	events.ch <- power.Event{DisplayOff: true}
	time.Sleep(10 * time.Millisecond)
	after := ticks.Load()
	if after == 0 {
		t.Fatal("切换前应已有采样")
	}

	// On the hour-long slow cadence the counter must stop moving.
	time.Sleep(30 * time.Millisecond)
	if got := ticks.Load(); got > after+1 {
		t.Fatalf("息屏后采样应几乎停止: %d -> %d", after, got)
	}
}

func TestNewPanicsOnBadInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("非正周期应 panic")
		}
	}()
	New(Options{Interval: 0}, nil, zerolog.Nop())
}
