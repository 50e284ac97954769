package queue

import (
	"container/list"
	"fmt"
	"sync"
)

// chatQueue holds the pending tasks of a single conversation. It enforces
// FIFO order and the one-in-flight rule: Dequeue yields nothing while a
// previously dequeued task has not been completed.
type chatQueue struct {
	chatID     int64
	tasks      *list.List
	processing *Task
	mu         sync.Mutex
}

func newChatQueue(chatID int64) *chatQueue {
	return &chatQueue{
		chatID: chatID,
		tasks:  list.New(),
	}
}

func (cq *chatQueue) enqueue(task *Task) error {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if task == nil {
		return fmt.Errorf("cannot enqueue nil task")
	}
	if task.ChatID != cq.chatID {
		return fmt.Errorf("task chat %d does not match queue chat %d", task.ChatID, cq.chatID)
	}
	if cq.tasks.Len() >= maxPendingPerChat {
		return fmt.Errorf("chat %d has %d pending tasks: %w", cq.chatID, cq.tasks.Len(), ErrChatBacklogged)
	}

	cq.tasks.PushBack(task)
	return nil
}

// dequeue returns the next task, or nil when the queue is empty or a task
// is already in flight.
func (cq *chatQueue) dequeue() *Task {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if cq.processing != nil {
		return nil
	}

	front := cq.tasks.Front()
	if front == nil {
		return nil
	}

	task, ok := front.Value.(*Task)
	if !ok {
		return nil
	}
	cq.tasks.Remove(front)
	cq.processing = task
	return task
}

// complete clears the in-flight task, releasing the queue for the next one.
func (cq *chatQueue) complete() {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	cq.processing = nil
}

func (cq *chatQueue) size() int {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	return cq.tasks.Len()
}

func (cq *chatQueue) isProcessing() bool {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	return cq.processing != nil
}

func (cq *chatQueue) isEmpty() bool {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	return cq.tasks.Len() == 0 && cq.processing == nil
}
