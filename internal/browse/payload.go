package browse

import (
	"github.com/scryforge/scrybot/internal/session"
)

// Button is one inline keyboard button. Data is the encoded callback
// payload the transport echoes back on press.
type Button struct {
	Label string
	Data  string
}

// Payload is everything needed to materialize one chat message.
type Payload struct {
	Shape session.MessageShape
	Text  string // message text, or caption for photo shapes

	// Image carries composed collage bytes; ImageURL points at a single
	// remote image the transport can send directly. At most one is set.
	Image    []byte
	ImageURL string

	Buttons [][]Button
}

// Action tells the renderer how to reconcile a payload with the message
// currently on screen.
type Action int

// Actions, in increasing order of disruption.
const (
	// ActionNone leaves the chat untouched (stale or no-op events).
	ActionNone Action = iota
	// ActionSend emits a new message; nothing is on screen yet.
	ActionSend
	// ActionEdit mutates the existing message in place.
	ActionEdit
	// ActionReplace deletes the existing message and sends a new one.
	ActionReplace
	// ActionDelete removes the existing message without a successor.
	ActionDelete
)

// Render is the engine's full instruction set for one interaction: what
// to do with the main view message, what to do with the arts preview
// message, and an optional short acknowledgment for the button press.
type Render struct {
	Main       *Payload
	MainAction Action

	Arts       *Payload
	ArtsAction Action

	// Notice is shown as a transient callback acknowledgment (toast).
	Notice string
}

// decideAction is the edit-vs-replace decision table. A message can be
// refined in place only when its shape survives; changing shape forces
// delete-and-resend because the transport cannot edit a text message into
// a photo or back.
func decideAction(prev, next session.MessageShape) Action {
	switch {
	case next == session.ShapeNone:
		if prev == session.ShapeNone {
			return ActionNone
		}
		return ActionDelete
	case prev == session.ShapeNone:
		return ActionSend
	case prev == next:
		return ActionEdit
	default:
		return ActionReplace
	}
}
