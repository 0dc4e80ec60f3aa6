// Package scheduler drives the periodic reservation housekeeping.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/amenity-reservations/internal/application/usecases"
)

// Task is one periodic job. Run reports how many items it processed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Housekeeping returns the expiry and order reconciliation tasks.
func Housekeeping(h usecases.Housekeeping) []Task {
	return []Task{
		{Name: "expire-unpaid", Run: h.ExpireUnpaid},
		{Name: "reconcile-orders", Run: h.ReconcileOrders},
	}
}

// Scheduler runs every task on each tick. A task still running from the
// previous tick is skipped rather than started twice.
type Scheduler struct {
	Tasks    []Task
	Interval time.Duration
	Log      *slog.Logger

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, task := range s.Tasks {
		if !s.claim(task.Name) {
			s.logger().Debug("scheduler: task still running, skipping", slog.String("task", task.Name))
			continue
		}
		task := task
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(task.Name)
			s.runTask(ctx, task)
		}()
	}
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	start := time.Now()
	n, err := task.Run(ctx)
	if err != nil {
		s.logger().Error("scheduler: task failed",
			slog.String("task", task.Name),
			slog.Int("processed", n),
			slog.Any("error", err))
		return
	}
	s.logger().Debug("scheduler: task done",
		slog.String("task", task.Name),
		slog.Int("processed", n),
		slog.Duration("duration", time.Since(start)))
}

func (s *Scheduler) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		s.running = map[string]bool{}
	}
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, name)
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
