package background

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerExecutesSubmittedTasks(t *testing.T) {
	r := NewRunner(2, 10, time.Second, slog.Default())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		r.Submit("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	r.Stop()

	if got := ran.Load(); got != 5 {
		t.Errorf("ran %d tasks, want 5", got)
	}
}

func TestRunnerTaskFailureDoesNotStopWorkers(t *testing.T) {
	r := NewRunner(1, 10, time.Second, slog.Default())

	var ran atomic.Int32
	r.Submit("fails", func(ctx context.Context) error {
		return errors.New("boom")
	})
	r.Submit("succeeds", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	r.Stop()

	if ran.Load() != 1 {
		t.Error("task after a failing task did not run")
	}
}

func TestRunnerSubmitNeverBlocksWhenFull(t *testing.T) {
	r := NewRunner(1, 1, time.Second, slog.Default())

	release := make(chan struct{})
	r.Submit("blocker", func(ctx context.Context) error {
		<-release
		return nil
	})

	// Fill the queue and then some; the extras are dropped, not blocked on.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.Submit("extra", func(ctx context.Context) error { return nil })
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
	r.Stop()
}

func TestRunnerTaskTimeout(t *testing.T) {
	r := NewRunner(1, 1, 50*time.Millisecond, slog.Default())

	var sawDeadline atomic.Bool
	r.Submit("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			sawDeadline.Store(true)
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	r.Stop()

	if !sawDeadline.Load() {
		t.Error("task context was not cancelled at the timeout")
	}
}

func TestRunnerSubmitAfterStop(t *testing.T) {
	r := NewRunner(1, 1, time.Second, slog.Default())
	r.Stop()

	// Must not panic on a closed channel.
	r.Submit("late", func(ctx context.Context) error { return nil })

	// Stop is idempotent.
	r.Stop()
}
