// Package msglog tracks every message the engine emits into a
// conversation so a later bulk cleanup can find and delete them. It is a
// bounded per-conversation FIFO and is never consulted for rendering.
package msglog

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the per-conversation bound on tracked messages.
const DefaultCapacity = 500

// Ref identifies one emitted chat message.
type Ref struct {
	ChatID    int64
	MessageID int
}

// Tracker records emitted message IDs per conversation. Safe for
// concurrent use across conversations; operations on one conversation are
// serialized internally.
type Tracker struct {
	capacity int
	mu       sync.Mutex
	logs     map[int64]*list.List
}

// NewTracker creates a tracker with the given per-conversation capacity.
// A capacity of zero or less falls back to DefaultCapacity.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		capacity: capacity,
		logs:     make(map[int64]*list.List),
	}
}

// Track appends a message ID to the conversation's log, evicting the
// oldest entry when the log is full.
func (t *Tracker) Track(chatID int64, messageID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	log, ok := t.logs[chatID]
	if !ok {
		log = list.New()
		t.logs[chatID] = log
	}

	log.PushBack(messageID)
	for log.Len() > t.capacity {
		log.Remove(log.Front())
	}
}

// LastN returns the most recent n tracked message refs for a conversation
// in arrival order, or fewer when fewer are tracked.
func (t *Tracker) LastN(chatID int64, n int) []Ref {
	t.mu.Lock()
	defer t.mu.Unlock()

	log, ok := t.logs[chatID]
	if !ok || n <= 0 {
		return nil
	}

	if n > log.Len() {
		n = log.Len()
	}
	refs := make([]Ref, 0, n)
	el := log.Back()
	for i := 0; i < n-1; i++ {
		el = el.Prev()
	}
	for ; el != nil; el = el.Next() {
		id, ok := el.Value.(int)
		if !ok {
			continue
		}
		refs = append(refs, Ref{ChatID: chatID, MessageID: id})
	}
	return refs
}

// Forget drops a specific message ID from the conversation's log. Used
// when the engine deletes a message it just sent, so a later bulk cleanup
// does not count it twice.
func (t *Tracker) Forget(chatID int64, messageID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	log, ok := t.logs[chatID]
	if !ok {
		return
	}
	for el := log.Front(); el != nil; el = el.Next() {
		if id, ok := el.Value.(int); ok && id == messageID {
			log.Remove(el)
			return
		}
	}
}

// Size returns how many messages are tracked for a conversation.
func (t *Tracker) Size(chatID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if log, ok := t.logs[chatID]; ok {
		return log.Len()
	}
	return 0
}
