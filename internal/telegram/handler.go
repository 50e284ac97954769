package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/scryforge/scrybot/internal/browse"
	"github.com/scryforge/scrybot/internal/card"
	"github.com/scryforge/scrybot/internal/msglog"
	"github.com/scryforge/scrybot/internal/queue"
	"github.com/scryforge/scrybot/internal/session"
)

const (
	// defaultCleanupCount is how many recent bot messages /cleanup removes
	// when no count is given.
	defaultCleanupCount = 25

	// maxInlineResults caps inline query answers; Telegram allows 50.
	maxInlineResults = 10

	welcomeText = "Hi! Send me a card name or use /cerca <query> to search the catalog.\n" +
		"/carta <name> jumps straight to a card.\n" +
		"/cleanup tidies up my recent messages."

	busyText = "I'm still working through your earlier requests. Give me a moment."
)

// Handler turns Telegram updates into queued navigation tasks. Everything
// that touches a session goes through the queue so interactions for one
// chat are processed strictly in order; inline queries are stateless and
// answered directly.
type Handler struct {
	engine   *browse.Engine
	renderer *Renderer
	manager  *queue.Manager
	provider card.Provider
	tracker  *msglog.Tracker
	store    *session.Store
	typing   *TypingManager
	api      API
	logger   *slog.Logger
	started  time.Time
}

// HandlerConfig collects the handler's collaborators.
type HandlerConfig struct {
	Engine   *browse.Engine
	Renderer *Renderer
	Manager  *queue.Manager
	Provider card.Provider
	Tracker  *msglog.Tracker
	Store    *session.Store
	Typing   *TypingManager
	API      API
	Logger   *slog.Logger
}

// NewHandler creates an update handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	switch {
	case cfg.Engine == nil:
		return nil, fmt.Errorf("engine is required")
	case cfg.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case cfg.Manager == nil:
		return nil, fmt.Errorf("manager is required")
	case cfg.Provider == nil:
		return nil, fmt.Errorf("provider is required")
	case cfg.Tracker == nil:
		return nil, fmt.Errorf("tracker is required")
	case cfg.Store == nil:
		return nil, fmt.Errorf("store is required")
	case cfg.API == nil:
		return nil, fmt.Errorf("api is required")
	}

	h := &Handler{
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
		manager:  cfg.Manager,
		provider: cfg.Provider,
		tracker:  cfg.Tracker,
		store:    cfg.Store,
		typing:   cfg.Typing,
		api:      cfg.API,
		logger:   cfg.Logger,
		started:  time.Now(),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h, nil
}

// HandleUpdate routes one update. It returns quickly; the actual work
// runs on the worker pool.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.InlineQuery != nil:
		h.handleInline(ctx, update.InlineQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		h.handleCommand(ctx, chatID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	h.submitQueryTask(ctx, chatID, text)
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, command, args string) {
	switch command {
	case "start", "help":
		h.submit(chatID, "command:"+command, func(context.Context) error {
			return h.sendText(chatID, welcomeText)
		})

	case "cerca", "search":
		if args == "" {
			h.submit(chatID, "command:"+command, func(context.Context) error {
				return h.sendText(chatID, "Usage: /"+command+" <query>")
			})
			return
		}
		h.submitQueryTask(ctx, chatID, args)

	case "carta":
		if args == "" {
			h.submit(chatID, "command:carta", func(context.Context) error {
				return h.sendText(chatID, "Usage: /carta <card name>")
			})
			return
		}
		h.submit(chatID, "command:carta", func(taskCtx context.Context) error {
			h.startTyping(ctx, chatID)
			defer h.stopTyping(chatID)
			render := h.engine.LookupName(taskCtx, session.Key(chatID), args)
			h.renderer.Apply(taskCtx, chatID, render)
			return nil
		})

	case "cleanup":
		n := defaultCleanupCount
		if args != "" {
			parsed, err := strconv.Atoi(args)
			if err != nil || parsed <= 0 {
				h.submit(chatID, "command:cleanup", func(context.Context) error {
					return h.sendText(chatID, "Usage: /cleanup [count]")
				})
				return
			}
			n = parsed
		}
		h.submit(chatID, "command:cleanup", func(taskCtx context.Context) error {
			tracked := h.tracker.Size(chatID)
			if tracked > n {
				tracked = n
			}
			deleted := msglog.Cleanup(taskCtx, h.tracker, h.renderer, chatID, n, h.logger)
			return h.sendText(chatID, fmt.Sprintf("Removed %d of %d tracked messages.", deleted, tracked))
		})

	case "status":
		h.submit(chatID, "command:status", func(context.Context) error {
			return h.sendText(chatID, h.statusText())
		})

	default:
		h.submit(chatID, "command:unknown", func(context.Context) error {
			return h.sendText(chatID, "Unknown command. Try /cerca <query>.")
		})
	}
}

// submitQueryTask queues a top-level search.
func (h *Handler) submitQueryTask(ctx context.Context, chatID int64, query string) {
	h.submit(chatID, "query", func(taskCtx context.Context) error {
		h.startTyping(ctx, chatID)
		defer h.stopTyping(chatID)
		render := h.engine.Handle(taskCtx, session.Key(chatID), browse.Event{
			Kind:  browse.EventSubmitQuery,
			Query: query,
		})
		h.renderer.Apply(taskCtx, chatID, render)
		return nil
	})
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		h.answerCallback(cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID

	ev, err := browse.DecodeCallback(cb.Data)
	if err != nil {
		h.logger.Debug("undecodable callback", "chat_id", chatID, "data", cb.Data, "error", err)
		h.answerCallback(cb.ID, browse.StaleNotice)
		return
	}

	h.submit(chatID, "callback:"+cb.Data, func(taskCtx context.Context) error {
		render := h.engine.Handle(taskCtx, session.Key(chatID), ev)
		h.renderer.Apply(taskCtx, chatID, render)
		h.answerCallback(cb.ID, render.Notice)
		return nil
	})
}

// handleInline answers inline queries with autocomplete matches. Inline
// queries have no chat, so they bypass the queue entirely.
func (h *Handler) handleInline(ctx context.Context, iq *tgbotapi.InlineQuery) {
	text := strings.TrimSpace(iq.Query)
	if text == "" {
		h.answerInline(iq.ID, nil)
		return
	}

	names, err := h.provider.Autocomplete(ctx, text)
	if err != nil {
		h.logger.Debug("inline autocomplete failed", "query", text, "error", err)
		h.answerInline(iq.ID, nil)
		return
	}
	if len(names) > maxInlineResults {
		names = names[:maxInlineResults]
	}

	results := make([]any, 0, len(names))
	for i, name := range names {
		article := tgbotapi.NewInlineQueryResultArticle(
			fmt.Sprintf("%s-%d", iq.ID, i), name, name)
		results = append(results, article)
	}
	h.answerInline(iq.ID, results)
}

// submit queues a task; a full backlog turns into a polite busy notice.
func (h *Handler) submit(chatID int64, label string, do func(ctx context.Context) error) {
	task := queue.NewTask(chatID, label, do)
	if err := h.manager.Submit(task); err != nil {
		h.logger.Warn("task submit failed", "chat_id", chatID, "label", label, "error", err)
		_ = h.sendText(chatID, busyText)
	}
}

func (h *Handler) sendText(chatID int64, text string) error {
	sent, err := h.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	h.tracker.Track(chatID, sent.MessageID)
	return nil
}

func (h *Handler) answerCallback(callbackID, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		h.logger.Debug("callback answer failed", "callback_id", callbackID, "error", err)
	}
}

func (h *Handler) answerInline(inlineID string, results []any) {
	answer := tgbotapi.InlineConfig{
		InlineQueryID: inlineID,
		Results:       results,
		CacheTime:     30,
	}
	if _, err := h.api.Request(answer); err != nil {
		h.logger.Debug("inline answer failed", "inline_id", inlineID, "error", err)
	}
}

func (h *Handler) startTyping(ctx context.Context, chatID int64) {
	if h.typing == nil {
		return
	}
	if err := h.typing.Start(ctx, chatID); err != nil {
		h.logger.Debug("typing start failed", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) stopTyping(chatID int64) {
	if h.typing != nil {
		h.typing.Stop(chatID)
	}
}

// statusText summarizes bot health for operators.
func (h *Handler) statusText() string {
	sessions := h.store.Stats()
	queues := h.manager.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "Uptime: %s\n", time.Since(h.started).Round(time.Second))
	fmt.Fprintf(&b, "Sessions: %d total, %d active\n", sessions["total"], sessions["active"])
	fmt.Fprintf(&b, "Queue: %d chats, %d queued, %d processing\n",
		queues["chats"], queues["queued"], queues["processing"])
	return b.String()
}
