package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hray3182/MedLine/internal/service"
)

type fakeTicker struct {
	calls atomic.Int32
	ticks chan time.Time
}

func (f *fakeTicker) Tick(ctx context.Context, now time.Time) service.TickReport {
	f.calls.Add(1)
	f.ticks <- now
	return service.TickReport{Dispatched: 1}
}

func waitTick(t *testing.T, ticks <-chan time.Time) time.Time {
	t.Helper()
	select {
	case now := <-ticks:
		return now
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a tick")
		return time.Time{}
	}
}

func TestScheduler_TicksOnStartAndNotify(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ticker := &fakeTicker{ticks: make(chan time.Time, 4)}
	s := New(ticker, "@every 1h", time.UTC, func() time.Time { return fixed })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	if now := waitTick(t, ticker.ticks); !now.Equal(fixed) {
		t.Fatalf("expected the injected clock, got %s", now)
	}

	s.Notify()
	waitTick(t, ticker.ticks)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
	if ticker.calls.Load() != 2 {
		t.Fatalf("expected 2 ticks, got %d", ticker.calls.Load())
	}
}

func TestScheduler_NotifyDoesNotBlock(t *testing.T) {
	s := New(&fakeTicker{ticks: make(chan time.Time, 1)}, "@every 1h", nil, nil)
	for i := 0; i < 5; i++ {
		s.Notify()
	}
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	s := New(&fakeTicker{ticks: make(chan time.Time, 1)}, "not a schedule", nil, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
}
