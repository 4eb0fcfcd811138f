package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"schedbot/internal/eventbus"
	logx "schedbot/pkg/logx"
)

func startEngine(t *testing.T, cfg Config) (*Service, eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	cfg.Enabled = true
	s := New(cfg, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s, bus
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) TaskEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev.Data.(TaskEvent)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	s, bus := startEngine(t, Config{Workers: 1, RetryMax: 2})
	events, unsub := bus.Subscribe(16)
	defer unsub()

	var runs atomic.Int32
	err := s.Enqueue(Task{
		Name: "flaky",
		Opt:  TaskOptions{RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond},
		Run: func(ctx context.Context) error {
			if runs.Add(1) < 3 {
				return errors.New("transient")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	ev := waitEvent(t, events, "task.finished")
	if ev.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", ev.Attempts)
	}
}

func TestNoRetryStopsAfterFirstAttempt(t *testing.T) {
	t.Parallel()

	s, bus := startEngine(t, Config{Workers: 1, RetryMax: 5})
	events, unsub := bus.Subscribe(16)
	defer unsub()

	var runs atomic.Int32
	permanent := errors.New("chat not found")
	_ = s.Enqueue(Task{Name: "send", Run: func(ctx context.Context) error {
		runs.Add(1)
		return NoRetry(permanent)
	}})
	ev := waitEvent(t, events, "task.failed")
	if runs.Load() != 1 || ev.Attempts != 1 {
		t.Fatalf("runs = %d attempts = %d, want 1", runs.Load(), ev.Attempts)
	}
	if ev.Error != permanent.Error() {
		t.Fatalf("Error = %q, want %q", ev.Error, permanent.Error())
	}
}

func TestOverlapSkip(t *testing.T) {
	t.Parallel()

	s, _ := startEngine(t, Config{Workers: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	task := Task{Name: "slow", Opt: TaskOptions{Overlap: OverlapSkipIfRunning}, Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}
	if err := s.Enqueue(task); err != nil {
		t.Fatalf("first Enqueue error: %v", err)
	}
	<-started
	if err := s.Enqueue(task); !errors.Is(err, ErrOverlapSkip) {
		t.Fatalf("second Enqueue = %v, want ErrOverlapSkip", err)
	}
	close(release)
}

func TestPanicIsContained(t *testing.T) {
	t.Parallel()

	s, bus := startEngine(t, Config{Workers: 1, RetryMax: 3})
	events, unsub := bus.Subscribe(16)
	defer unsub()

	_ = s.Enqueue(Task{Name: "panics", Run: func(ctx context.Context) error { panic("boom") }})
	ev := waitEvent(t, events, "task.failed")
	if ev.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", ev.Attempts)
	}

	_ = s.Enqueue(Task{Name: "after", Run: func(ctx context.Context) error { return nil }})
	waitEvent(t, events, "task.finished")
}

func TestEnqueueWhenDisabled(t *testing.T) {
	t.Parallel()

	s := New(Config{}, logx.Nop(), nil)
	if err := s.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Enqueue = %v, want ErrDisabled", err)
	}
}
