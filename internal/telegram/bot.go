package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/scryforge/scrybot/internal/browse"
	"github.com/scryforge/scrybot/internal/collage"
	"github.com/scryforge/scrybot/internal/config"
	"github.com/scryforge/scrybot/internal/msglog"
	"github.com/scryforge/scrybot/internal/queue"
	"github.com/scryforge/scrybot/internal/scryfall"
	"github.com/scryforge/scrybot/internal/session"
)

const (
	// updateBufferSize is tgbotapi's long-poll buffer.
	updateBufferSize = 100

	// queueShutdownTimeout bounds how long shutdown waits for in-flight
	// tasks.
	queueShutdownTimeout = 10 * time.Second
)

// Bot wires the full stack together: catalog client, session store,
// navigation engine, conversation queue, and the Telegram update loop.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	manager *queue.Manager
	pool    *queue.Pool
	limiter *queue.ChatLimiter
	sweeper *session.Sweeper
	typing  *TypingManager
	logger  *slog.Logger
}

// NewBot builds a bot from configuration.
func NewBot(cfg config.Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("authorized", "username", api.Self.UserName)

	var clientOpts []scryfall.Option
	clientOpts = append(clientOpts, scryfall.WithLogger(logger))
	if cfg.Provider.BaseURL != "" {
		clientOpts = append(clientOpts, scryfall.WithBaseURL(cfg.Provider.BaseURL))
	}
	client := scryfall.NewClient(clientOpts...)

	store := session.NewStore(session.WithTTL(cfg.Session.TTL))
	sweeper := session.NewSweeper(store,
		session.WithSweepInterval(cfg.Session.SweepInterval),
		session.WithSweepLogger(logger))

	composer, err := collage.NewRenderer(client, collage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build collage renderer: %w", err)
	}

	engine, err := browse.NewEngine(store, client, composer,
		browse.WithLogger(logger),
		browse.WithWindows(cfg.Browse.ListWindow, cfg.Browse.ArtsWindow))
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	tracker := msglog.NewTracker(cfg.Track.Capacity)

	renderer, err := NewRenderer(api, store, tracker, WithRendererLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	manager := queue.NewManager(context.Background(), queue.WithManagerLogger(logger))
	limiter := queue.DefaultChatLimiter()
	pool, err := queue.NewPool(manager, limiter,
		queue.WithWorkers(cfg.Queue.Workers),
		queue.WithPoolLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build worker pool: %w", err)
	}

	typing := NewTypingManager(api, WithTypingLogger(logger))

	handler, err := NewHandler(HandlerConfig{
		Engine:   engine,
		Renderer: renderer,
		Manager:  manager,
		Provider: client,
		Tracker:  tracker,
		Store:    store,
		Typing:   typing,
		API:      api,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build handler: %w", err)
	}

	return &Bot{
		api:     api,
		handler: handler,
		manager: manager,
		pool:    pool,
		limiter: limiter,
		sweeper: sweeper,
		typing:  typing,
		logger:  logger,
	}, nil
}

// Run starts all components and processes updates until the context is
// canceled, then shuts everything down in reverse order.
func (b *Bot) Run(ctx context.Context) error {
	go b.manager.Start()
	b.pool.Start(ctx)
	b.sweeper.Start(ctx)

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updateCfg.AllowedUpdates = []string{"message", "callback_query", "inline_query"}
	b.api.Buffer = updateBufferSize
	updates := b.api.GetUpdatesChan(updateCfg)

	b.logger.Info("bot running")
	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.shutdown()
				return fmt.Errorf("update channel closed")
			}
			b.handler.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) shutdown() {
	b.logger.Info("shutting down")
	b.api.StopReceivingUpdates()
	b.typing.StopAll()
	b.sweeper.Stop()
	b.pool.Stop()
	if err := b.manager.Shutdown(queueShutdownTimeout); err != nil {
		b.logger.Warn("queue shutdown incomplete", "error", err)
	}
	b.logger.Info("shutdown complete")
}
