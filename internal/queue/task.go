// Package queue serializes interaction processing per conversation while
// letting unrelated conversations run in parallel. A Manager owns one FIFO
// per chat and hands tasks to a worker pool in round-robin order; at most
// one task per chat is ever in flight, so session mutations for a chat are
// naturally ordered.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// maxPendingPerChat caps how many interactions one chat may stack up. A
// user mashing buttons beyond this gets their presses dropped rather than
// queued into the distant future.
const maxPendingPerChat = 16

// Task is one unit of conversation work: a command, a button press, or an
// inline query, already bound to the code that processes it.
type Task struct {
	// ID correlates log lines across enqueue, dispatch, and completion.
	ID string

	// ChatID is the conversation the task belongs to. Tasks with the same
	// ChatID never run concurrently.
	ChatID int64

	// Label names the interaction for logs, e.g. "command:search" or
	// "callback:next".
	Label string

	// Do performs the work.
	Do func(ctx context.Context) error

	EnqueuedAt time.Time
}

// NewTask creates a task with a fresh correlation ID.
func NewTask(chatID int64, label string, do func(ctx context.Context) error) *Task {
	return &Task{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		Label:      label,
		Do:         do,
		EnqueuedAt: time.Now(),
	}
}
