package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultTypingInterval is how often the typing indicator is refreshed.
// Telegram shows "typing…" for about five seconds per action, so four
// keeps it continuous.
const DefaultTypingInterval = 4 * time.Second

// TypingManager keeps a "typing…" indicator alive per chat while a task
// is being processed.
type TypingManager struct {
	api      API
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	active map[int64]context.CancelFunc
}

// TypingOption configures the typing manager.
type TypingOption func(*TypingManager)

// WithTypingInterval overrides the refresh interval.
func WithTypingInterval(interval time.Duration) TypingOption {
	return func(tm *TypingManager) {
		if interval > 0 {
			tm.interval = interval
		}
	}
}

// WithTypingLogger sets a custom logger.
func WithTypingLogger(logger *slog.Logger) TypingOption {
	return func(tm *TypingManager) { tm.logger = logger }
}

// NewTypingManager creates a typing manager.
func NewTypingManager(api API, opts ...TypingOption) *TypingManager {
	tm := &TypingManager{
		api:      api,
		logger:   slog.Default(),
		interval: DefaultTypingInterval,
		active:   make(map[int64]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Start begins refreshing the indicator for a chat until Stop.
func (tm *TypingManager) Start(ctx context.Context, chatID int64) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, exists := tm.active[chatID]; exists {
		return fmt.Errorf("typing indicator already active for chat %d", chatID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	tm.active[chatID] = cancel
	go tm.run(runCtx, chatID)
	return nil
}

// Stop ends the indicator for a chat.
func (tm *TypingManager) Stop(chatID int64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if cancel, exists := tm.active[chatID]; exists {
		cancel()
		delete(tm.active, chatID)
	}
}

// StopAll ends every active indicator.
func (tm *TypingManager) StopAll() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for chatID, cancel := range tm.active {
		cancel()
		delete(tm.active, chatID)
	}
}

func (tm *TypingManager) run(ctx context.Context, chatID int64) {
	tm.sendAction(chatID)

	ticker := time.NewTicker(tm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tm.sendAction(chatID)
		}
	}
}

func (tm *TypingManager) sendAction(chatID int64) {
	if _, err := tm.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		// Indicator failures never affect the work itself.
		tm.logger.Debug("typing indicator failed", "chat_id", chatID, "error", err)
	}
}
