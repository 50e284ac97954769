package browse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/scryforge/scrybot/internal/card"
	"github.com/scryforge/scrybot/internal/session"
)

// User-visible notices for the error taxonomy. Kept as exported constants
// so transport tests can assert on them.
const (
	StaleNotice       = "That view has expired. Run a new search."
	FetchFailedNotice = "Couldn't reach the card catalog. Please try again."
	NoArtsNotice      = "No alternate illustrations found for this card."
)

// Default window sizes: six list items fill a 2x3 collage, five printings
// fill a single collage row.
const (
	DefaultListWindow = 6
	DefaultArtsWindow = 5
)

// Composer builds one composite preview image from thumbnail URLs. The
// second return is how many cells fell back to placeholders.
type Composer interface {
	Compose(ctx context.Context, thumbURLs []string) ([]byte, int, error)
}

// Engine is the navigation state machine. One Handle call is one unit of
// work; the queue guarantees calls for the same conversation never
// overlap, and the session store's per-key lock makes each state
// mutation atomic regardless.
type Engine struct {
	store    *session.Store
	provider card.Provider
	composer Composer
	logger   *slog.Logger

	listWindow int
	artsWindow int
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithWindows overrides the list and arts window sizes.
func WithWindows(list, arts int) EngineOption {
	return func(e *Engine) {
		if list > 0 {
			e.listWindow = list
		}
		if arts > 0 {
			e.artsWindow = arts
		}
	}
}

// NewEngine creates the navigation engine.
func NewEngine(store *session.Store, provider card.Provider, composer Composer, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if composer == nil {
		return nil, fmt.Errorf("composer is required")
	}

	e := &Engine{
		store:      store,
		provider:   provider,
		composer:   composer,
		logger:     slog.Default(),
		listWindow: DefaultListWindow,
		artsWindow: DefaultArtsWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Handle interprets one interaction and returns render instructions.
// Every inbound interaction yields either a rendered payload or a
// user-visible error payload; nothing escapes as a fault.
func (e *Engine) Handle(ctx context.Context, key session.Key, ev Event) Render {
	switch ev.Kind {
	case EventSubmitQuery:
		return e.submitQuery(ctx, key, ev.Query)
	case EventSelectSuggestion:
		return e.selectSuggestion(ctx, key, ev)
	default:
	}

	var render Render
	e.store.Update(key, func(st *session.State) *session.State {
		if st == nil || (ev.Seq != 0 && ev.Seq != st.Seq) {
			e.logger.Debug("stale interaction dropped",
				"chat_id", int64(key), "event_seq", ev.Seq)
			render = Render{Notice: StaleNotice}
			return st
		}
		render = e.dispatch(ctx, st, ev)
		return st
	})
	return render
}

// LookupName resolves a card name (fuzzy) straight into the detail view.
// An inexact miss falls back to autocomplete suggestions.
func (e *Engine) LookupName(ctx context.Context, key session.Key, name string) Render {
	found, err := e.provider.LookupFuzzy(ctx, name)
	if errors.Is(err, card.ErrNotFound) {
		return e.suggestionRender(ctx, key, name)
	}
	if err != nil {
		e.logger.Warn("name lookup failed", "chat_id", int64(key), "error", err)
		return Render{Main: textPayload(FetchFailedNotice), MainAction: ActionSend}
	}
	return e.enterDetail(key, found)
}

// submitQuery starts a fresh session for a top-level query. The previous
// session, including any detail or arts sub-state, is replaced wholesale.
func (e *Engine) submitQuery(ctx context.Context, key session.Key, query string) Render {
	st := session.NewState(query, e.listWindow, e.provider.RemotePageSize())

	window, err := fillWindow(ctx, e.provider, st, 0)
	if errors.Is(err, card.ErrNotFound) {
		// Scryfall answers a zero-match search with 404; that is an empty
		// result, not a provider failure.
		return e.suggestionRender(ctx, key, query)
	}
	if err != nil {
		e.logger.Warn("query fetch failed", "chat_id", int64(key), "query", query, "error", err)
		return Render{Main: textPayload(FetchFailedNotice), MainAction: ActionSend}
	}

	if st.TotalCount == 0 {
		return e.suggestionRender(ctx, key, query)
	}

	// A fresh query always replaces the old view message rather than
	// editing it, even when the shapes match.
	render := e.commitReplacement(key, st)
	render.Main = e.listPayload(ctx, st, window)
	render.MainAction = ActionReplace
	if st.ViewMessageID == 0 {
		render.MainAction = ActionSend
	}
	return render
}

// selectSuggestion resolves a did-you-mean button through the session's
// stored suggestion list, then re-resolves the name through an exact
// lookup and enters the detail view.
func (e *Engine) selectSuggestion(ctx context.Context, key session.Key, ev Event) Render {
	var name string
	e.store.Update(key, func(st *session.State) *session.State {
		if st == nil || (ev.Seq != 0 && ev.Seq != st.Seq) {
			return st
		}
		if ev.Index >= 0 && ev.Index < len(st.Suggestions) {
			name = st.Suggestions[ev.Index]
		}
		return st
	})
	if name == "" {
		return Render{Notice: StaleNotice}
	}

	found, err := e.provider.LookupExact(ctx, name)
	if errors.Is(err, card.ErrNotFound) {
		return Render{Notice: NoResultsNotice(name)}
	}
	if err != nil {
		e.logger.Warn("suggestion lookup failed", "chat_id", int64(key), "name", name, "error", err)
		return Render{Notice: FetchFailedNotice}
	}
	return e.enterDetail(key, found)
}

// enterDetail replaces the session with a single-card detail session.
func (e *Engine) enterDetail(key session.Key, c card.Card) Render {
	st := session.NewState(c.Name, e.listWindow, e.provider.RemotePageSize())
	st.Loaded = true
	st.TotalCount = 1
	st.Results[0] = c
	st.SelectedID = c.ID
	st.Selected = &c
	st.View = session.ViewDetail

	render := e.commitReplacement(key, st)
	render.Main = detailPayload(st)
	render.MainAction = ActionReplace
	return render
}

// commitReplacement swaps in a new session under the key's lock, carrying
// over transport bookkeeping so the renderer knows what is on screen, and
// schedules deletion of an orphaned arts preview.
func (e *Engine) commitReplacement(key session.Key, st *session.State) Render {
	var render Render
	e.store.Update(key, func(cur *session.State) *session.State {
		if cur != nil {
			st.ViewMessageID = cur.ViewMessageID
			st.ViewShape = cur.ViewShape
			if cur.ArtsMessageID != 0 {
				st.ArtsMessageID = cur.ArtsMessageID
				render.ArtsAction = ActionDelete
			}
		}
		return st
	})
	return render
}

// dispatch routes an event against the live session. Unrecognized
// (state, event) pairs leave the view untouched; duplicate or late
// callback delivery must never corrupt state.
func (e *Engine) dispatch(ctx context.Context, st *session.State, ev Event) Render {
	switch st.View {
	case session.ViewList:
		switch ev.Kind {
		case EventNext, EventPrev:
			return e.listNav(ctx, st, ev.Kind)
		case EventChooseItem:
			return e.chooseItem(ctx, st, ev.ID)
		}
	case session.ViewDetail:
		switch ev.Kind {
		case EventToggleDetails:
			st.ShowFull = !st.ShowFull
			return Render{Main: detailPayload(st), MainAction: decideAction(st.ViewShape, detailShape(st))}
		case EventOpenArts:
			return e.openArts(ctx, st)
		case EventBack:
			return e.backToList(ctx, st)
		}
	case session.ViewArts:
		switch ev.Kind {
		case EventArtsNext, EventArtsPrev:
			return e.artsNav(ctx, st, ev.Kind)
		case EventPickVariant:
			return e.pickVariant(st, ev.ID)
		case EventBack:
			st.Arts = nil
			st.View = session.ViewDetail
			return Render{ArtsAction: ActionDelete}
		}
	case session.ViewNone:
	}

	e.logger.Debug("event ignored in current view", "view", st.View.String(), "event", int(ev.Kind))
	return Render{}
}

// listNav pages the result list. The offset commits only after the
// target window is fully cached.
func (e *Engine) listNav(ctx context.Context, st *session.State, kind EventKind) Render {
	offset := st.Offset
	if kind == EventNext {
		offset = nextOffset(st.Offset, st.WindowSize, st.TotalCount)
	} else {
		offset = prevOffset(st.Offset, st.WindowSize)
	}
	if offset == st.Offset {
		// Saturated at an edge; nothing to redraw.
		return Render{}
	}

	window, err := fillWindow(ctx, e.provider, st, offset)
	if err != nil {
		e.logger.Warn("page fetch failed", "query", st.Query, "offset", offset, "error", err)
		return Render{Notice: FetchFailedNotice}
	}
	st.Offset = offset

	payload := e.listPayload(ctx, st, window)
	return Render{Main: payload, MainAction: decideAction(st.ViewShape, payload.Shape)}
}

// chooseItem enters the detail view for a listed card, refetching the
// full record when the cached summary lacks detail fields.
func (e *Engine) chooseItem(ctx context.Context, st *session.State, id string) Render {
	c, ok := st.CardByID(id)
	if !ok {
		return Render{Notice: StaleNotice}
	}

	if c.OracleText == "" && c.PrintsSearchURL == "" {
		full, err := e.provider.LookupExact(ctx, c.Name)
		if err == nil {
			c = full
		} else if !errors.Is(err, card.ErrNotFound) {
			e.logger.Warn("detail fetch failed", "card", c.Name, "error", err)
			return Render{Notice: FetchFailedNotice}
		}
	}

	st.SelectedID = c.ID
	st.Selected = &c
	st.ShowFull = false
	st.ActiveImage = ""
	st.View = session.ViewDetail

	return Render{Main: detailPayload(st), MainAction: decideAction(st.ViewShape, detailShape(st))}
}

// backToList leaves the detail view for the result window it came from.
func (e *Engine) backToList(ctx context.Context, st *session.State) Render {
	window, err := fillWindow(ctx, e.provider, st, st.Offset)
	if err != nil {
		e.logger.Warn("list refetch failed", "query", st.Query, "error", err)
		return Render{Notice: FetchFailedNotice}
	}

	st.Selected = nil
	st.SelectedID = ""
	st.ShowFull = false
	st.ActiveImage = ""
	st.View = session.ViewList

	payload := e.listPayload(ctx, st, window)
	return Render{Main: payload, MainAction: decideAction(st.ViewShape, payload.Shape)}
}

// openArts starts alternate-printing browsing for the selected card as a
// separate preview message under the detail view.
func (e *Engine) openArts(ctx context.Context, st *session.State) Render {
	if st.Selected == nil || st.Selected.PrintsSearchURL == "" {
		return Render{Notice: NoArtsNotice}
	}

	result, err := e.provider.ListPrintings(ctx, st.Selected.PrintsSearchURL)
	if errors.Is(err, card.ErrNotFound) {
		return Render{Notice: NoArtsNotice}
	}
	if err != nil {
		e.logger.Warn("printings fetch failed", "card", st.Selected.Name, "error", err)
		return Render{Notice: FetchFailedNotice}
	}
	if len(result.Printings) == 0 {
		return Render{Notice: NoArtsNotice}
	}

	st.Arts = &session.ArtsState{
		ParentID:   st.Selected.ID,
		Printings:  result.Printings,
		WindowSize: e.artsWindow,
		HasMore:    result.HasMore,
		NextPage:   result.NextPage,
	}
	st.View = session.ViewArts

	window, err := fillArtsWindow(ctx, e.provider, st.Arts)
	if err != nil {
		st.Arts = nil
		st.View = session.ViewDetail
		return Render{Notice: FetchFailedNotice}
	}

	action := ActionSend
	if st.ArtsMessageID != 0 {
		action = ActionEdit
	}
	return Render{Arts: e.artsPayload(ctx, st, window), ArtsAction: action}
}

// artsNav pages the printings preview using cursor fetches; the offset
// commits only after a successful fill.
func (e *Engine) artsNav(ctx context.Context, st *session.State, kind EventKind) Render {
	arts := st.Arts
	if arts == nil {
		return Render{Notice: StaleNotice}
	}

	offset := arts.Offset
	if kind == EventArtsNext {
		offset = artsNextOffset(arts)
	} else {
		offset = prevOffset(arts.Offset, arts.WindowSize)
	}
	if offset == arts.Offset {
		return Render{}
	}

	prevOff := arts.Offset
	arts.Offset = offset
	window, err := fillArtsWindow(ctx, e.provider, arts)
	if err != nil {
		arts.Offset = prevOff
		e.logger.Warn("printings page fetch failed", "card", arts.ParentID, "error", err)
		return Render{Notice: FetchFailedNotice}
	}
	if len(window) == 0 {
		// The cursor ran dry exactly at this window; snap back to the
		// last loaded window.
		arts.Offset = lastWindowStart(len(arts.Printings), arts.WindowSize)
		window, _ = fillArtsWindow(ctx, e.provider, arts)
	}

	return Render{Arts: e.artsPayload(ctx, st, window), ArtsAction: ActionEdit}
}

// pickVariant makes the chosen printing the detail view's active image
// and closes the preview.
func (e *Engine) pickVariant(st *session.State, id string) Render {
	arts := st.Arts
	if arts == nil {
		return Render{Notice: StaleNotice}
	}

	for _, p := range arts.Printings {
		if p.ID != id {
			continue
		}
		if p.ImageURL != "" {
			st.ActiveImage = p.ImageURL
		} else {
			st.ActiveImage = p.ThumbURL
		}
		st.Arts = nil
		st.View = session.ViewDetail
		return Render{
			Main:       detailPayload(st),
			MainAction: decideAction(st.ViewShape, detailShape(st)),
			ArtsAction: ActionDelete,
		}
	}
	return Render{Notice: StaleNotice}
}

// suggestionRender answers a query with zero matches: either autocomplete
// suggestions or an explicit empty-result message.
func (e *Engine) suggestionRender(ctx context.Context, key session.Key, query string) Render {
	names, err := e.provider.Autocomplete(ctx, query)
	if err != nil || len(names) == 0 {
		if err != nil {
			e.logger.Debug("autocomplete failed", "query", query, "error", err)
		}
		return Render{Main: textPayload(NoResultsNotice(query)), MainAction: ActionSend}
	}

	if len(names) > maxSuggestions {
		names = names[:maxSuggestions]
	}

	// Card names can exceed Telegram's 64-byte callback data cap, so the
	// buttons carry an index into the session's suggestion list instead.
	st := session.NewState(query, e.listWindow, e.provider.RemotePageSize())
	st.Suggestions = names
	render := e.commitReplacement(key, st)

	buttons := make([][]Button, 0, len(names))
	for i, name := range names {
		buttons = append(buttons, []Button{{
			Label: name,
			Data:  EncodeCallback(EventSelectSuggestion, st.Seq, strconv.Itoa(i)),
		}})
	}
	payload := textPayload(fmt.Sprintf("No exact matches for %q. Did you mean:", query))
	payload.Buttons = buttons
	render.Main = payload
	render.MainAction = ActionSend
	return render
}
