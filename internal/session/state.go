// Package session holds per-conversation browsing state and the keyed
// store that serializes access to it. One conversation has at most one
// State; a new top-level query replaces the State wholesale.
package session

import (
	"github.com/scryforge/scrybot/internal/card"
)

// Key identifies one conversation (a Telegram chat).
type Key int64

// View is the active view of a browsing session.
type View int

// View values. Exactly one is active per State.
const (
	ViewNone View = iota
	ViewList
	ViewDetail
	ViewArts
)

// String returns the view name for logs.
func (v View) String() string {
	switch v {
	case ViewNone:
		return "none"
	case ViewList:
		return "list"
	case ViewDetail:
		return "detail"
	case ViewArts:
		return "arts"
	default:
		return "unknown"
	}
}

// MessageShape classifies a rendered chat message for the edit-vs-replace
// decision: a text message can only be edited into a text message, a photo
// into a photo.
type MessageShape int

// Message shapes.
const (
	ShapeNone MessageShape = iota
	ShapeText
	ShapePhoto
)

// State is the browsing session of one conversation.
type State struct {
	Query      string
	TotalCount int

	// Loaded distinguishes "no results" from "never fetched".
	Loaded bool

	// Results caches fetched items by absolute rank. It is sparse: gaps
	// appear when remote pages are fetched non-contiguously.
	Results map[int]card.Card

	// Offset is the absolute start of the displayed window; always a
	// multiple of WindowSize.
	Offset         int
	WindowSize     int
	RemotePageSize int

	// Detail-view state.
	SelectedID  string
	Selected    *card.Card
	ShowFull    bool
	ActiveImage string

	// Suggestions holds the did-you-mean names of a zero-match query, so
	// buttons can reference them by index.
	Suggestions []string

	// Arts is present only while browsing alternate printings.
	Arts *ArtsState

	View View

	// Transport bookkeeping: the message currently showing the main view
	// (list or detail) and the separate arts preview message, if any. The
	// renderer maintains these so pagination can edit in place.
	ViewMessageID int
	ViewShape     MessageShape
	ArtsMessageID int

	// Seq increases on every top-level query for the conversation.
	// Interactions carrying an older Seq are stale and ignored.
	Seq uint64
}

// ArtsState tracks alternate-printing browsing for the selected card.
type ArtsState struct {
	ParentID   string
	Printings  []card.Printing // append-only
	Offset     int
	WindowSize int
	HasMore    bool
	NextPage   string
}

// NewState creates a fresh session for a query. Seq is assigned by the
// store on Put.
func NewState(query string, windowSize, remotePageSize int) *State {
	return &State{
		Query:          query,
		Results:        make(map[int]card.Card),
		WindowSize:     windowSize,
		RemotePageSize: remotePageSize,
		View:           ViewList,
	}
}

// CachedWindow returns the window starting at offset if every index in it
// is already cached, clamped to TotalCount. ok is false when any index in
// the clamped range is missing.
func (s *State) CachedWindow(offset int) ([]card.Card, bool) {
	end := offset + s.WindowSize
	if end > s.TotalCount {
		end = s.TotalCount
	}
	if offset >= end {
		// Clamped to empty: nothing to fetch, nothing to show.
		return nil, true
	}
	window := make([]card.Card, 0, end-offset)
	for i := offset; i < end; i++ {
		c, ok := s.Results[i]
		if !ok {
			return nil, false
		}
		window = append(window, c)
	}
	return window, true
}

// MergePage stores one remote page's items at their absolute ranks and
// refreshes the reported total. Merging the same page twice is a no-op.
func (s *State) MergePage(page int, cards []card.Card, total int) {
	base := (page - 1) * s.RemotePageSize
	for i, c := range cards {
		s.Results[base+i] = c
	}
	s.TotalCount = total
	if len(s.Results) > s.TotalCount {
		// Total shrank under us; drop ranks past the new end.
		for rank := range s.Results {
			if rank >= s.TotalCount {
				delete(s.Results, rank)
			}
		}
	}
}

// CardByID returns the cached card with the given ID, if present.
func (s *State) CardByID(id string) (card.Card, bool) {
	for _, c := range s.Results {
		if c.ID == id {
			return c, true
		}
	}
	return card.Card{}, false
}
