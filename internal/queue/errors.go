package queue

import "errors"

// Sentinel errors callers can test with errors.Is.
var (
	// ErrShuttingDown is returned once the manager has begun shutdown.
	ErrShuttingDown = errors.New("queue manager shutting down")

	// ErrChatBacklogged is returned when a chat's pending queue is full.
	// The interaction should be dropped with a polite acknowledgment, not
	// retried.
	ErrChatBacklogged = errors.New("chat backlogged")
)
