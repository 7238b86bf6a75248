// Package background runs best-effort side effects (last-login stamps,
// verification emails) off the request path. Submission never blocks and
// task failure is logged, never propagated: a slow or failing write must
// not turn a successful login into an error.
package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is a named unit of best-effort work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes submitted tasks on a fixed pool of workers
type Runner struct {
	logger  *slog.Logger
	tasks   chan Task
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a runner with the given worker count and queue depth.
// Each task gets its own bounded timeout so no side effect can hang a
// worker indefinitely.
func NewRunner(workers, queueSize int, timeout time.Duration, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	r := &Runner{
		logger:  logger,
		tasks:   make(chan Task, queueSize),
		timeout: timeout,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()

	for task := range r.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := task.Run(ctx); err != nil {
			r.logger.Warn("background task failed",
				slog.String("task", task.Name),
				slog.Any("error", err))
		}
		cancel()
	}
}

// Submit enqueues a task without blocking. When the queue is full the task
// is dropped with a warning; callers must treat all submitted work as
// best-effort.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.logger.Warn("background task rejected: runner stopped", slog.String("task", name))
		return
	}

	select {
	case r.tasks <- Task{Name: name, Run: fn}:
	default:
		r.logger.Warn("background task dropped: queue full", slog.String("task", name))
	}
}

// Stop closes the queue and waits for in-flight tasks to finish
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("background runner stopped")
}
