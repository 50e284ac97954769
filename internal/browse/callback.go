package browse

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback data encoding. Telegram bounds callback data at 64 bytes, so
// the format is a terse "op:seq[:arg]" with provider IDs (36-byte UUIDs)
// as the only long component. Suggestion buttons carry a list index, not
// the card name, which alone can exceed the cap.

// EventKind identifies a navigation event.
type EventKind int

// Navigation events.
const (
	EventUnknown EventKind = iota
	EventSubmitQuery
	EventNext
	EventPrev
	EventChooseItem
	EventToggleDetails
	EventOpenArts
	EventArtsNext
	EventArtsPrev
	EventPickVariant
	EventBack
	EventSelectSuggestion
)

// Event is one inbound interaction, already resolved from transport form.
type Event struct {
	Kind EventKind

	Query string // EventSubmitQuery
	ID    string // EventChooseItem, EventPickVariant
	Index int    // EventSelectSuggestion; position in the stored list

	// Seq is the session sequence the interaction was built against; zero
	// for fresh commands, which always target the current session.
	Seq uint64
}

var kindOps = map[EventKind]string{
	EventNext:             "next",
	EventPrev:             "prev",
	EventChooseItem:       "pick",
	EventToggleDetails:    "togl",
	EventOpenArts:         "arts",
	EventArtsNext:         "anext",
	EventArtsPrev:         "aprev",
	EventPickVariant:      "avar",
	EventBack:             "back",
	EventSelectSuggestion: "sugg",
}

var opKinds = func() map[string]EventKind {
	m := make(map[string]EventKind, len(kindOps))
	for kind, op := range kindOps {
		m[op] = kind
	}
	return m
}()

// EncodeCallback builds the callback data for a button that will raise
// the given event against session sequence seq.
func EncodeCallback(kind EventKind, seq uint64, arg string) string {
	op, ok := kindOps[kind]
	if !ok {
		op = "noop"
	}
	data := op + ":" + strconv.FormatUint(seq, 10)
	if arg != "" {
		data += ":" + arg
	}
	return data
}

// DecodeCallback parses callback data back into an Event. Unknown or
// malformed data yields EventUnknown, which the engine treats as a no-op.
func DecodeCallback(data string) (Event, error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 {
		return Event{}, fmt.Errorf("malformed callback data %q", data)
	}

	kind, ok := opKinds[parts[0]]
	if !ok {
		return Event{}, fmt.Errorf("unknown callback op %q", parts[0])
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("malformed callback seq %q: %w", parts[1], err)
	}

	ev := Event{Kind: kind, Seq: seq, Index: -1}
	if len(parts) == 3 {
		switch kind {
		case EventChooseItem, EventPickVariant:
			ev.ID = parts[2]
		case EventSelectSuggestion:
			idx, err := strconv.Atoi(parts[2])
			if err != nil {
				return Event{}, fmt.Errorf("malformed suggestion index %q: %w", parts[2], err)
			}
			ev.Index = idx
		}
	}
	return ev, nil
}
