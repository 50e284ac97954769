package msglog

import (
	"context"
	"log/slog"
)

// Deleter removes one previously sent chat message. Implemented by the
// telegram transport.
type Deleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Cleanup deletes the most recent n tracked messages of a conversation.
// Individual delete failures (already gone, too old, missing permission)
// are counted and skipped, never aborting the batch. Every attempted
// message is forgotten so repeated cleanups do not re-try dead entries.
// It returns the number of successful deletions.
func Cleanup(ctx context.Context, tracker *Tracker, deleter Deleter, chatID int64, n int, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}

	refs := tracker.LastN(chatID, n)
	deleted := 0
	failed := 0
	for _, ref := range refs {
		if err := deleter.DeleteMessage(ctx, ref.ChatID, ref.MessageID); err != nil {
			failed++
			logger.Debug("cleanup delete failed",
				"chat_id", ref.ChatID, "message_id", ref.MessageID, "error", err)
		} else {
			deleted++
		}
		tracker.Forget(ref.ChatID, ref.MessageID)
	}

	if failed > 0 {
		logger.Info("bulk cleanup finished with failures",
			"chat_id", chatID, "deleted", deleted, "failed", failed)
	}
	return deleted
}
