package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// defaultWorkers is the pool size when none is configured. Interaction
// handling is I/O-bound (catalog fetches, image downloads), so a handful
// of workers covers many concurrent chats.
const defaultWorkers = 4

// Pool runs a fixed set of workers against a Manager. Each worker pulls
// one task at a time, honors the per-chat rate limit, and survives task
// panics.
type Pool struct {
	manager *Manager
	limiter *ChatLimiter
	logger  *slog.Logger
	workers int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PoolOption configures the pool.
type PoolOption func(*Pool)

// WithWorkers sets the worker count.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPoolLogger sets a custom logger.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = logger }
}

// NewPool creates a worker pool. The limiter may be nil to disable
// per-chat rate limiting.
func NewPool(manager *Manager, limiter *ChatLimiter, opts ...PoolOption) (*Pool, error) {
	if manager == nil {
		return nil, fmt.Errorf("manager is required")
	}

	p := &Pool{
		manager: manager,
		limiter: limiter,
		logger:  slog.Default(),
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Start launches the workers. They run until Stop or context cancellation.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 1; i <= p.workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx, workerID)
		}()
	}
	p.logger.Info("worker pool started", "workers", p.workers)
}

// Stop cancels the workers and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// run is one worker's loop: request, rate-limit, execute, complete.
func (p *Pool) run(ctx context.Context, workerID string) {
	logger := p.logger.With("worker", workerID)
	logger.Debug("worker started")

	for {
		task, err := p.manager.RequestTask(ctx)
		if err != nil || task == nil {
			logger.Debug("worker exiting", "error", err)
			return
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx, task.ChatID); err != nil {
				// Shutting down mid-wait; the task is abandoned, which is
				// acceptable for interactive work.
				_ = p.manager.CompleteTask(task)
				return
			}
		}

		p.execute(ctx, logger, task)

		if err := p.manager.CompleteTask(task); err != nil {
			logger.Warn("task completion failed", "task_id", task.ID, "error", err)
		}
	}
}

// execute runs one task, recovering panics so a bad interaction never
// takes a worker down.
func (p *Pool) execute(ctx context.Context, logger *slog.Logger, task *Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked",
				"task_id", task.ID,
				"chat_id", task.ChatID,
				"label", task.Label,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	logger.Debug("task started",
		"task_id", task.ID, "chat_id", task.ChatID, "label", task.Label,
		"queued_for", time.Since(task.EnqueuedAt))

	if err := task.Do(ctx); err != nil {
		logger.Warn("task failed",
			"task_id", task.ID, "chat_id", task.ChatID, "label", task.Label,
			"duration", time.Since(start), "error", err)
		return
	}

	logger.Debug("task finished",
		"task_id", task.ID, "chat_id", task.ChatID, "label", task.Label,
		"duration", time.Since(start))
}
