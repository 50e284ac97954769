package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scryforge/scrybot/internal/config"
	"github.com/scryforge/scrybot/internal/telegram"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scrybot",
		Short:         "Telegram bot for browsing a card catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Missing .env is fine; the environment may be set directly.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			logger := newLogger(cfg.LogLevel)
			slog.SetDefault(logger)

			bot, err := telegram.NewBot(cfg, logger)
			if err != nil {
				return fmt.Errorf("build bot: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				logger.Info("signal received, shutting down", "signal", sig.String())
				cancel()
			}()

			return bot.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("scrybot %s\n", Version)
		},
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
