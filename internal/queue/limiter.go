package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-chat rate limiting defaults: a burst of 5 interactions, then one per
// second. Enough for normal browsing, a wall for button mashers.
const (
	defaultChatBurst = 5
	defaultChatRate  = rate.Limit(1)
)

// ChatLimiter rate-limits interactions per conversation. Each chat gets
// its own token bucket, created on first use and swept when idle.
type ChatLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[int64]*chatBucket
}

type chatBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewChatLimiter creates a limiter allowing burst interactions immediately
// and limit interactions per second sustained.
func NewChatLimiter(limit rate.Limit, burst int) *ChatLimiter {
	return &ChatLimiter{
		limit:   limit,
		burst:   burst,
		buckets: make(map[int64]*chatBucket),
	}
}

// DefaultChatLimiter creates a limiter with the package defaults.
func DefaultChatLimiter() *ChatLimiter {
	return NewChatLimiter(defaultChatRate, defaultChatBurst)
}

// Allow reports whether the chat may proceed right now, consuming a token
// if so.
func (cl *ChatLimiter) Allow(chatID int64) bool {
	return cl.bucketFor(chatID).Allow()
}

// Wait blocks until the chat may proceed or the context ends.
func (cl *ChatLimiter) Wait(ctx context.Context, chatID int64) error {
	if err := cl.bucketFor(chatID).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for chat %d: %w", chatID, err)
	}
	return nil
}

// CleanupStale drops buckets for chats idle longer than maxAge and returns
// how many were removed.
func (cl *ChatLimiter) CleanupStale(maxAge time.Duration) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for chatID, b := range cl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(cl.buckets, chatID)
			removed++
		}
	}
	return removed
}

// Stats reports how many chats currently hold a bucket.
func (cl *ChatLimiter) Stats() map[string]int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	return map[string]int{"chats": len(cl.buckets)}
}

func (cl *ChatLimiter) bucketFor(chatID int64) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	b, ok := cl.buckets[chatID]
	if !ok {
		b = &chatBucket{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.buckets[chatID] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}
