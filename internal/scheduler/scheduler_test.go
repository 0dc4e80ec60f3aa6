package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunKicksImmediatelyAndStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	ran := make(chan struct{}, 1)
	s := &Scheduler{
		Interval: time.Hour,
		Log:      quiet(),
		Tasks: []Task{{Name: "count", Run: func(context.Context) (int, error) {
			calls.Add(1)
			select {
			case ran <- struct{}{}:
			default:
			}
			return 1, nil
		}}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("task did not run on start")
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestTickSkipsTaskStillRunning(t *testing.T) {
	var calls atomic.Int32
	block := make(chan struct{})
	s := &Scheduler{Log: quiet(), Tasks: []Task{{Name: "slow", Run: func(context.Context) (int, error) {
		calls.Add(1)
		<-block
		return 0, errors.New("gave up")
	}}}}

	ctx := context.Background()
	s.tick(ctx)
	for !s.isRunning("slow") {
		time.Sleep(time.Millisecond)
	}
	s.tick(ctx)
	close(block)
	s.wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	s.tick(ctx)
	s.wg.Wait()
	if calls.Load() != 2 {
		t.Fatalf("calls after release = %d, want 2", calls.Load())
	}
}

func (s *Scheduler) isRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[name]
}
