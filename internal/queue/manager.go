package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const submitTimeout = 5 * time.Second

// Manager orchestrates per-chat queues with fair scheduling. All dispatch
// decisions run on a single goroutine (Start); workers talk to it through
// channels, so the round-robin cursor needs no locking beyond the queue
// map itself.
type Manager struct {
	queues    map[int64]*chatQueue
	chatOrder []int64
	current   int

	incomingCh     chan *Task
	requestCh      chan chan *Task
	waitingWorkers []chan *Task

	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  chan struct{}
	mu       sync.RWMutex
	shutdown bool
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets a custom logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a stopped manager; call Start in a goroutine.
func NewManager(ctx context.Context, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(ctx)

	m := &Manager{
		queues:         make(map[int64]*chatQueue),
		incomingCh:     make(chan *Task, 100),
		requestCh:      make(chan chan *Task, 10),
		waitingWorkers: make([]chan *Task, 0),
		logger:         slog.Default(),
		ctx:            ctx,
		cancel:         cancel,
		started:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the dispatch loop until the context is canceled.
func (m *Manager) Start() {
	m.wg.Add(1)
	defer m.wg.Done()
	defer m.cleanup()

	close(m.started)

	for {
		select {
		case <-m.ctx.Done():
			return

		case task := <-m.incomingCh:
			if err := m.enqueue(task); err != nil {
				m.logger.Warn("task dropped",
					"task_id", task.ID, "chat_id", task.ChatID, "error", err)
				continue
			}
			m.tryDispatch()

		case workerCh := <-m.requestCh:
			m.mu.Lock()
			task := m.nextTaskLocked()
			if task == nil {
				m.waitingWorkers = append(m.waitingWorkers, workerCh)
			}
			m.mu.Unlock()
			if task != nil {
				workerCh <- task
			}
		}
	}
}

// Submit queues a task for processing. A full per-chat queue surfaces as
// ErrChatBacklogged through the dispatch loop's log, not here; Submit only
// fails when the manager is stopped or saturated.
func (m *Manager) Submit(task *Task) error {
	if task == nil {
		return fmt.Errorf("cannot submit nil task")
	}

	m.mu.RLock()
	stopping := m.shutdown
	m.mu.RUnlock()
	if stopping {
		return ErrShuttingDown
	}

	select {
	case m.incomingCh <- task:
		return nil
	case <-m.ctx.Done():
		return ErrShuttingDown
	case <-time.After(submitTimeout):
		return fmt.Errorf("timeout submitting task %s", task.ID)
	}
}

// RequestTask blocks until a task is available, the caller's context ends,
// or the manager shuts down (nil task, no error).
func (m *Manager) RequestTask(ctx context.Context) (*Task, error) {
	respCh := make(chan *Task, 1)

	select {
	case m.requestCh <- respCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.ctx.Done():
		return nil, ErrShuttingDown
	}

	select {
	case task := <-respCh:
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.ctx.Done():
		return nil, ErrShuttingDown
	}
}

// CompleteTask releases the task's chat for its next queued task and prods
// the dispatcher, since completion may have unblocked a waiting worker.
func (m *Manager) CompleteTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("cannot complete nil task")
	}

	m.mu.Lock()
	cq, exists := m.queues[task.ChatID]
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("no queue for chat %d", task.ChatID)
	}

	cq.complete()

	m.mu.Lock()
	if cq.isEmpty() {
		m.removeChatLocked(task.ChatID)
	}
	m.mu.Unlock()

	m.tryDispatch()
	return nil
}

// Shutdown stops the dispatch loop and waits for it to exit.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()

	m.cancel()

	select {
	case <-m.started:
	case <-time.After(100 * time.Millisecond):
		// Start was never called; nothing to wait for.
		return nil
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

// Stats reports queue depth for the status command.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queued := 0
	processing := 0
	for _, cq := range m.queues {
		queued += cq.size()
		if cq.isProcessing() {
			processing++
		}
	}
	return map[string]int{
		"chats":           len(m.queues),
		"queued":          queued,
		"processing":      processing,
		"waiting_workers": len(m.waitingWorkers),
	}
}

func (m *Manager) enqueue(task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cq, exists := m.queues[task.ChatID]
	if !exists {
		cq = newChatQueue(task.ChatID)
		m.queues[task.ChatID] = cq
		m.chatOrder = append(m.chatOrder, task.ChatID)
	}
	return cq.enqueue(task)
}

// nextTask takes the manager lock around nextTaskLocked.
func (m *Manager) nextTask() *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextTaskLocked()
}

// nextTaskLocked walks the chat ring once, skipping chats that are
// mid-task, and returns the first available task. The cursor advances past
// every chat it visits so no single busy chat can starve the rest. Caller
// holds m.mu.
func (m *Manager) nextTaskLocked() *Task {
	for attempts := len(m.chatOrder); attempts > 0; attempts-- {
		if m.current >= len(m.chatOrder) {
			m.current = 0
		}
		if len(m.chatOrder) == 0 {
			return nil
		}

		chatID := m.chatOrder[m.current]
		cq, exists := m.queues[chatID]
		if !exists {
			m.removeChatLocked(chatID)
			continue
		}

		m.current++

		if cq.isProcessing() {
			continue
		}
		if task := cq.dequeue(); task != nil {
			return task
		}
		if cq.isEmpty() {
			m.removeChatLocked(chatID)
		}
	}
	return nil
}

// tryDispatch pairs a waiting worker with an available task, if both
// exist. It runs concurrently from the dispatch loop and from completing
// workers, so the worker check, the dequeue, and the pop all happen in a
// single critical section; two callers must never claim the same lone
// worker.
func (m *Manager) tryDispatch() {
	m.mu.Lock()
	if len(m.waitingWorkers) == 0 {
		m.mu.Unlock()
		return
	}
	task := m.nextTaskLocked()
	if task == nil {
		m.mu.Unlock()
		return
	}
	workerCh := m.waitingWorkers[0]
	m.waitingWorkers = m.waitingWorkers[1:]
	m.mu.Unlock()

	select {
	case workerCh <- task:
	default:
		// Worker gave up; put the task back at the front of its chat.
		m.mu.Lock()
		if cq, exists := m.queues[task.ChatID]; exists {
			cq.complete()
			cq.mu.Lock()
			cq.tasks.PushFront(task)
			cq.mu.Unlock()
		}
		m.mu.Unlock()
	}
}

// removeChatLocked drops an idle chat from the map and the ring. Caller
// holds m.mu.
func (m *Manager) removeChatLocked(chatID int64) {
	delete(m.queues, chatID)
	for i, id := range m.chatOrder {
		if id == chatID {
			m.chatOrder = append(m.chatOrder[:i], m.chatOrder[i+1:]...)
			if m.current > i {
				m.current--
			}
			break
		}
	}
}

// cleanup unblocks waiting workers when the dispatch loop exits.
func (m *Manager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, workerCh := range m.waitingWorkers {
		select {
		case workerCh <- nil:
		default:
		}
	}
	m.waitingWorkers = nil
}
