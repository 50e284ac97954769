package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/scryforge/scrybot/internal/browse"
	"github.com/scryforge/scrybot/internal/msglog"
	"github.com/scryforge/scrybot/internal/session"
)

// collageFileName labels uploaded collage bytes; Telegram requires a name
// for file uploads.
const collageFileName = "collage.jpg"

// Renderer materializes the engine's render instructions as Telegram
// messages. It owns the transport bookkeeping: which message currently
// shows the main view, which shows the arts preview, and what shape each
// has, all kept in the session so pagination can edit in place. Every
// message it emits is registered with the lifecycle tracker.
type Renderer struct {
	api     API
	store   *session.Store
	tracker *msglog.Tracker
	logger  *slog.Logger
}

// RendererOption configures the renderer.
type RendererOption func(*Renderer)

// WithRendererLogger sets a custom logger.
func WithRendererLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) { r.logger = logger }
}

// NewRenderer creates a renderer.
func NewRenderer(api API, store *session.Store, tracker *msglog.Tracker, opts ...RendererOption) (*Renderer, error) {
	if api == nil {
		return nil, fmt.Errorf("api is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}

	r := &Renderer{
		api:     api,
		store:   store,
		tracker: tracker,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Apply executes one render instruction set against a chat: the main view
// message first, then the arts preview. Failures are logged and absorbed;
// a failed edit or delete must not corrupt the session's bookkeeping
// beyond what actually happened on screen.
func (r *Renderer) Apply(ctx context.Context, chatID int64, render browse.Render) {
	key := session.Key(chatID)

	if render.MainAction != browse.ActionNone {
		r.applyMain(ctx, key, chatID, render)
	}
	if render.ArtsAction != browse.ActionNone {
		r.applyArts(ctx, key, chatID, render)
	}
}

func (r *Renderer) applyMain(ctx context.Context, key session.Key, chatID int64, render browse.Render) {
	var prevID int
	var prevShape session.MessageShape
	r.store.Update(key, func(st *session.State) *session.State {
		if st != nil {
			prevID = st.ViewMessageID
			prevShape = st.ViewShape
		}
		return st
	})

	action := render.MainAction
	if action == browse.ActionEdit && prevID == 0 {
		// Nothing on screen to edit; fall back to sending.
		action = browse.ActionSend
	}

	switch action {
	case browse.ActionSend:
		r.sendMain(ctx, key, chatID, render.Main)

	case browse.ActionEdit:
		if err := r.editPayload(chatID, prevID, prevShape, render.Main); err != nil {
			r.logger.Warn("edit failed, replacing message",
				"chat_id", chatID, "message_id", prevID, "error", err)
			r.deleteAndForget(chatID, prevID)
			r.sendMain(ctx, key, chatID, render.Main)
			return
		}
		r.store.Update(key, func(st *session.State) *session.State {
			if st != nil {
				st.ViewShape = render.Main.Shape
			}
			return st
		})

	case browse.ActionReplace:
		if prevID != 0 {
			r.deleteAndForget(chatID, prevID)
		}
		r.sendMain(ctx, key, chatID, render.Main)

	case browse.ActionDelete:
		if prevID != 0 {
			r.deleteAndForget(chatID, prevID)
		}
		r.store.Update(key, func(st *session.State) *session.State {
			if st != nil {
				st.ViewMessageID = 0
				st.ViewShape = session.ShapeNone
			}
			return st
		})

	case browse.ActionNone:
	}
}

func (r *Renderer) applyArts(ctx context.Context, key session.Key, chatID int64, render browse.Render) {
	var prevID int
	r.store.Update(key, func(st *session.State) *session.State {
		if st != nil {
			prevID = st.ArtsMessageID
		}
		return st
	})

	action := render.ArtsAction
	if action == browse.ActionEdit && prevID == 0 {
		action = browse.ActionSend
	}

	switch action {
	case browse.ActionSend:
		id, err := r.sendPayload(chatID, render.Arts)
		if err != nil {
			r.logger.Warn("arts preview send failed", "chat_id", chatID, "error", err)
			return
		}
		r.tracker.Track(chatID, id)
		r.store.Update(key, func(st *session.State) *session.State {
			if st != nil {
				st.ArtsMessageID = id
			}
			return st
		})

	case browse.ActionEdit:
		// The preview is always a photo; a failed edit falls back to a
		// fresh preview message.
		if err := r.editPayload(chatID, prevID, session.ShapePhoto, render.Arts); err != nil {
			r.logger.Warn("arts preview edit failed, replacing",
				"chat_id", chatID, "message_id", prevID, "error", err)
			r.deleteAndForget(chatID, prevID)
			r.applyArts(ctx, key, chatID, browse.Render{Arts: render.Arts, ArtsAction: browse.ActionSend})
		}

	case browse.ActionReplace:
		if prevID != 0 {
			r.deleteAndForget(chatID, prevID)
		}
		r.applyArts(ctx, key, chatID, browse.Render{Arts: render.Arts, ArtsAction: browse.ActionSend})

	case browse.ActionDelete:
		if prevID != 0 {
			r.deleteAndForget(chatID, prevID)
		}
		r.store.Update(key, func(st *session.State) *session.State {
			if st != nil {
				st.ArtsMessageID = 0
			}
			return st
		})

	case browse.ActionNone:
	}
}

// sendMain sends the main payload and records it as the active view
// message.
func (r *Renderer) sendMain(_ context.Context, key session.Key, chatID int64, p *browse.Payload) {
	if p == nil {
		return
	}
	id, err := r.sendPayload(chatID, p)
	if err != nil {
		r.logger.Warn("send failed", "chat_id", chatID, "error", err)
		return
	}
	r.tracker.Track(chatID, id)
	r.store.Update(key, func(st *session.State) *session.State {
		if st != nil {
			st.ViewMessageID = id
			st.ViewShape = p.Shape
		}
		return st
	})
}

// sendPayload sends a payload as a new message and returns its ID.
func (r *Renderer) sendPayload(chatID int64, p *browse.Payload) (int, error) {
	if p == nil {
		return 0, fmt.Errorf("nil payload")
	}

	var sent tgbotapi.Message
	var err error
	switch p.Shape {
	case session.ShapePhoto:
		photo := tgbotapi.NewPhoto(chatID, payloadFile(p))
		photo.Caption = p.Text
		if markup := keyboard(p.Buttons); markup != nil {
			photo.ReplyMarkup = markup
		}
		sent, err = r.api.Send(photo)
	default:
		msg := tgbotapi.NewMessage(chatID, p.Text)
		if markup := keyboard(p.Buttons); markup != nil {
			msg.ReplyMarkup = markup
		}
		sent, err = r.api.Send(msg)
	}
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

// editPayload edits an existing message in place. The caller guarantees
// the shapes match; text edits use EditMessageText, photo edits swap the
// media and caption together.
func (r *Renderer) editPayload(chatID int64, messageID int, prevShape session.MessageShape, p *browse.Payload) error {
	if p == nil {
		return fmt.Errorf("nil payload")
	}
	if prevShape != p.Shape {
		return fmt.Errorf("cannot edit %v message into %v", prevShape, p.Shape)
	}

	markup := keyboard(p.Buttons)

	switch p.Shape {
	case session.ShapePhoto:
		media := tgbotapi.NewInputMediaPhoto(payloadFile(p))
		media.Caption = p.Text
		edit := tgbotapi.EditMessageMediaConfig{
			BaseEdit: tgbotapi.BaseEdit{
				ChatID:      chatID,
				MessageID:   messageID,
				ReplyMarkup: markup,
			},
			Media: media,
		}
		if _, err := r.api.Send(edit); err != nil {
			return fmt.Errorf("edit media: %w", err)
		}
	default:
		edit := tgbotapi.NewEditMessageText(chatID, messageID, p.Text)
		edit.ReplyMarkup = markup
		if _, err := r.api.Send(edit); err != nil {
			return fmt.Errorf("edit text: %w", err)
		}
	}
	return nil
}

// DeleteMessage removes a message. It satisfies msglog.Deleter so the
// cleanup command can reuse the transport.
func (r *Renderer) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	if _, err := r.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// deleteAndForget removes a message from the chat and the tracker. Delete
// failures are logged and swallowed: the message may already be gone.
func (r *Renderer) deleteAndForget(chatID int64, messageID int) {
	if err := r.DeleteMessage(context.Background(), chatID, messageID); err != nil {
		r.logger.Debug("delete failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
	r.tracker.Forget(chatID, messageID)
}

// payloadFile picks the upload form: composed bytes or a remote URL.
func payloadFile(p *browse.Payload) tgbotapi.RequestFileData {
	if len(p.Image) > 0 {
		return tgbotapi.FileBytes{Name: collageFileName, Bytes: p.Image}
	}
	return tgbotapi.FileURL(p.ImageURL)
}

// keyboard converts engine buttons into an inline keyboard. Nil when the
// payload has no buttons, so the message carries no markup at all.
func keyboard(rows [][]browse.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		kb = append(kb, buttons)
	}
	if len(kb) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kb...)
	return &markup
}
