// Package telegram is the chat transport boundary: it turns Telegram
// updates into navigation events, runs them through the conversation
// queue, and materializes the engine's render instructions as Telegram
// messages.
package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the subset of the Bot API client this package calls. The
// concrete *tgbotapi.BotAPI satisfies it; tests substitute a fake.
type API interface {
	// Send delivers a message-producing request (sends and edits).
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)

	// Request delivers a request with no message result (deletes,
	// callback acks, chat actions, inline answers).
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}
