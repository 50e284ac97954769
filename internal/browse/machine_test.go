package browse_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scryforge/scrybot/internal/browse"
	"github.com/scryforge/scrybot/internal/card"
	"github.com/scryforge/scrybot/internal/scryfall"
	"github.com/scryforge/scrybot/internal/session"
)

// fakeCatalog is a canned card.Provider: a fixed search result set, exact
// names, autocomplete suggestions, and printings keyed by URL or cursor.
type fakeCatalog struct {
	pageSize  int
	cards     []card.Card
	byName    map[string]card.Card
	suggest   []string
	printings map[string]card.PrintingsResult
	fail      bool
}

func (f *fakeCatalog) err(op string) error {
	return &card.FetchError{Op: op, Status: 503}
}

func (f *fakeCatalog) Search(_ context.Context, _ string, page int) (card.SearchResult, error) {
	if f.fail {
		return card.SearchResult{}, f.err("search")
	}
	start := (page - 1) * f.pageSize
	end := start + f.pageSize
	if start > len(f.cards) {
		start = len(f.cards)
	}
	if end > len(f.cards) {
		end = len(f.cards)
	}
	return card.SearchResult{
		Cards:      f.cards[start:end],
		TotalCount: len(f.cards),
		HasMore:    end < len(f.cards),
	}, nil
}

func (f *fakeCatalog) LookupExact(_ context.Context, name string) (card.Card, error) {
	if f.fail {
		return card.Card{}, f.err("named")
	}
	if c, ok := f.byName[name]; ok {
		return c, nil
	}
	return card.Card{}, card.ErrNotFound
}

func (f *fakeCatalog) LookupFuzzy(ctx context.Context, name string) (card.Card, error) {
	return f.LookupExact(ctx, name)
}

func (f *fakeCatalog) Autocomplete(context.Context, string) ([]string, error) {
	if f.fail {
		return nil, f.err("autocomplete")
	}
	return f.suggest, nil
}

func (f *fakeCatalog) ListPrintings(ctx context.Context, url string) (card.PrintingsResult, error) {
	return f.ListPrintingsPage(ctx, url)
}

func (f *fakeCatalog) ListPrintingsPage(_ context.Context, pageURL string) (card.PrintingsResult, error) {
	if f.fail {
		return card.PrintingsResult{}, f.err("printings")
	}
	if result, ok := f.printings[pageURL]; ok {
		return result, nil
	}
	return card.PrintingsResult{}, card.ErrNotFound
}

func (f *fakeCatalog) RemotePageSize() int { return f.pageSize }

// fakeComposer returns fixed bytes so list payloads take the photo shape.
type fakeComposer struct{}

func (fakeComposer) Compose(_ context.Context, thumbURLs []string) ([]byte, int, error) {
	return []byte("collage"), 0, nil
}

func dragonCatalog(n int) *fakeCatalog {
	f := &fakeCatalog{pageSize: 175, byName: map[string]card.Card{}}
	for i := 0; i < n; i++ {
		c := card.Card{
			ID:         fmt.Sprintf("dragon-%d", i),
			Name:       fmt.Sprintf("Dragon %d", i),
			TypeLine:   "Creature — Dragon",
			OracleText: "Flying",
			ThumbURL:   fmt.Sprintf("thumb://dragon-%d", i),
		}
		f.cards = append(f.cards, c)
		f.byName[c.Name] = c
	}
	return f
}

func newTestEngine(t *testing.T, provider card.Provider, opts ...browse.EngineOption) (*browse.Engine, *session.Store) {
	t.Helper()
	store := session.NewStore()
	engine, err := browse.NewEngine(store, provider, fakeComposer{}, opts...)
	require.NoError(t, err)
	return engine, store
}

func buttonLabels(p *browse.Payload) []string {
	var labels []string
	for _, row := range p.Buttons {
		for _, b := range row {
			labels = append(labels, b.Label)
		}
	}
	return labels
}

func TestEngine_PageWalkTwelveResults(t *testing.T) {
	engine, store := newTestEngine(t, dragonCatalog(12), browse.WithWindows(5, 5))
	ctx := context.Background()
	key := session.Key(100)

	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "dragon"})
	require.NotNil(t, render.Main)
	assert.Equal(t, browse.ActionSend, render.MainAction)
	assert.Equal(t, session.ShapePhoto, render.Main.Shape)
	assert.Contains(t, render.Main.Text, "1-5 of 12")
	labels := buttonLabels(render.Main)
	assert.Contains(t, labels, "Next »")
	assert.NotContains(t, labels, "« Prev", "first window has no back edge")

	next := browse.Event{Kind: browse.EventNext, Seq: store.Seq(key)}
	render = engine.Handle(ctx, key, next)
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "6-10 of 12")
	labels = buttonLabels(render.Main)
	assert.Contains(t, labels, "Next »")
	assert.Contains(t, labels, "« Prev")

	render = engine.Handle(ctx, key, next)
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "11-12 of 12", "short final window is clamped")
	labels = buttonLabels(render.Main)
	assert.NotContains(t, labels, "Next »", "last window has no forward edge")
	assert.Contains(t, labels, "« Prev")

	// Forward at the edge is a saturated no-op, not an error.
	render = engine.Handle(ctx, key, next)
	assert.Nil(t, render.Main)
	assert.Empty(t, render.Notice)

	// Two steps back lands exactly on the first window.
	prev := browse.Event{Kind: browse.EventPrev, Seq: store.Seq(key)}
	engine.Handle(ctx, key, prev)
	render = engine.Handle(ctx, key, prev)
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "1-5 of 12")
	assert.Equal(t, 0, store.Get(key).Offset)
}

func TestEngine_NewQueryInvalidatesOldButtons(t *testing.T) {
	engine, store := newTestEngine(t, dragonCatalog(12), browse.WithWindows(5, 5))
	ctx := context.Background()
	key := session.Key(101)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "dragon"})
	oldSeq := store.Seq(key)

	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "dragon again"})
	assert.Equal(t, browse.ActionReplace, render.MainAction, "repeat queries replace, never edit")
	require.Greater(t, store.Seq(key), oldSeq)

	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventNext, Seq: oldSeq})
	assert.Equal(t, browse.StaleNotice, render.Notice)
	assert.Nil(t, render.Main)
	assert.Equal(t, 0, store.Get(key).Offset, "stale press never moves the live session")
}

func TestEngine_ChooseItemAndToggle(t *testing.T) {
	engine, store := newTestEngine(t, dragonCatalog(12), browse.WithWindows(5, 5))
	ctx := context.Background()
	key := session.Key(102)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "dragon"})
	seq := store.Seq(key)

	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventChooseItem, ID: "dragon-2", Seq: seq})
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "Dragon 2")
	assert.NotContains(t, render.Main.Text, "Flying", "detail opens name-only")
	assert.Equal(t, session.ViewDetail, store.Get(key).View)

	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventToggleDetails, Seq: seq})
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "Flying")

	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventToggleDetails, Seq: seq})
	require.NotNil(t, render.Main)
	assert.NotContains(t, render.Main.Text, "Flying", "second toggle hides the text again")

	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventBack, Seq: seq})
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "1-5 of 12", "back restores the window the pick came from")
	assert.Equal(t, session.ViewList, store.Get(key).View)
}

func TestEngine_ChooseUnknownItemIsStale(t *testing.T) {
	engine, store := newTestEngine(t, dragonCatalog(3))
	ctx := context.Background()
	key := session.Key(103)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "dragon"})
	render := engine.Handle(ctx, key, browse.Event{
		Kind: browse.EventChooseItem, ID: "never-listed", Seq: store.Seq(key),
	})
	assert.Equal(t, browse.StaleNotice, render.Notice)
	assert.Equal(t, session.ViewList, store.Get(key).View)
}

func TestEngine_OpenArtsWithoutPrintings(t *testing.T) {
	engine, store := newTestEngine(t, dragonCatalog(3))
	ctx := context.Background()
	key := session.Key(104)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "dragon"})
	seq := store.Seq(key)
	engine.Handle(ctx, key, browse.Event{Kind: browse.EventChooseItem, ID: "dragon-0", Seq: seq})

	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventOpenArts, Seq: seq})
	assert.Equal(t, browse.NoArtsNotice, render.Notice)
	assert.Nil(t, render.Arts)
	assert.Equal(t, session.ViewDetail, store.Get(key).View, "failed open leaves the detail view intact")
}

// artsCatalog is a single card with eight printings served in a page of
// five plus a cursor page of three.
func artsCatalog() *fakeCatalog {
	shivan := card.Card{
		ID:              "shivan-1",
		Name:            "Shivan Dragon",
		OracleText:      "Flying",
		PrintsSearchURL: "prints://shivan",
	}
	f := &fakeCatalog{
		pageSize:  175,
		cards:     []card.Card{shivan},
		byName:    map[string]card.Card{"Shivan Dragon": shivan},
		printings: map[string]card.PrintingsResult{},
	}
	var first, rest []card.Printing
	for i := 0; i < 8; i++ {
		p := card.Printing{
			ID:       fmt.Sprintf("print-%d", i),
			SetName:  fmt.Sprintf("Set %d", i),
			SetCode:  fmt.Sprintf("s%02d", i),
			ThumbURL: fmt.Sprintf("thumb://print-%d", i),
			ImageURL: fmt.Sprintf("image://print-%d", i),
		}
		if i < 5 {
			first = append(first, p)
		} else {
			rest = append(rest, p)
		}
	}
	f.printings["prints://shivan"] = card.PrintingsResult{
		Printings: first, HasMore: true, NextPage: "prints://shivan?page=2",
	}
	f.printings["prints://shivan?page=2"] = card.PrintingsResult{Printings: rest}
	return f
}

func TestEngine_ArtsCursorPaging(t *testing.T) {
	engine, store := newTestEngine(t, artsCatalog(), browse.WithWindows(5, 5))
	ctx := context.Background()
	key := session.Key(105)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "shivan"})
	seq := store.Seq(key)
	engine.Handle(ctx, key, browse.Event{Kind: browse.EventChooseItem, ID: "shivan-1", Seq: seq})

	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventOpenArts, Seq: seq})
	require.NotNil(t, render.Arts)
	assert.Equal(t, browse.ActionSend, render.ArtsAction, "preview is its own message")
	assert.Contains(t, render.Arts.Text, "1-5 of 5+", "unexhausted cursor shows an open-ended count")
	assert.Equal(t, session.ViewArts, store.Get(key).View)

	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventArtsNext, Seq: seq})
	require.NotNil(t, render.Arts)
	assert.Equal(t, browse.ActionEdit, render.ArtsAction)
	assert.Contains(t, render.Arts.Text, "6-8 of 8", "cursor page extends the loaded range")
	assert.NotContains(t, buttonLabels(render.Arts), "Next »")

	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventArtsPrev, Seq: seq})
	require.NotNil(t, render.Arts)
	assert.Contains(t, render.Arts.Text, "1-5 of 8", "exhausted cursor shows the final count")
}

func TestEngine_PickVariantClosesPreview(t *testing.T) {
	engine, store := newTestEngine(t, artsCatalog(), browse.WithWindows(5, 5))
	ctx := context.Background()
	key := session.Key(106)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "shivan"})
	seq := store.Seq(key)
	engine.Handle(ctx, key, browse.Event{Kind: browse.EventChooseItem, ID: "shivan-1", Seq: seq})
	engine.Handle(ctx, key, browse.Event{Kind: browse.EventOpenArts, Seq: seq})

	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventPickVariant, ID: "print-3", Seq: seq})
	require.NotNil(t, render.Main)
	assert.Equal(t, browse.ActionDelete, render.ArtsAction, "picking a variant tears down the preview")
	assert.Equal(t, "image://print-3", render.Main.ImageURL)

	st := store.Get(key)
	assert.Equal(t, session.ViewDetail, st.View)
	assert.Nil(t, st.Arts)
	assert.Equal(t, "image://print-3", st.ActiveImage)
}

func TestEngine_CloseArtsReturnsToDetail(t *testing.T) {
	engine, store := newTestEngine(t, artsCatalog(), browse.WithWindows(5, 5))
	ctx := context.Background()
	key := session.Key(107)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "shivan"})
	seq := store.Seq(key)
	engine.Handle(ctx, key, browse.Event{Kind: browse.EventChooseItem, ID: "shivan-1", Seq: seq})
	engine.Handle(ctx, key, browse.Event{Kind: browse.EventOpenArts, Seq: seq})

	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventBack, Seq: seq})
	assert.Equal(t, browse.ActionDelete, render.ArtsAction)
	assert.Nil(t, render.Main, "the detail message underneath is untouched")
	st := store.Get(key)
	assert.Equal(t, session.ViewDetail, st.View)
	assert.Nil(t, st.Arts)
}

func TestEngine_FetchFailureKeepsState(t *testing.T) {
	catalog := dragonCatalog(12)
	catalog.pageSize = 5 // items 6-10 live on remote page 2
	engine, store := newTestEngine(t, catalog, browse.WithWindows(5, 5))
	ctx := context.Background()
	key := session.Key(108)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "dragon"})
	catalog.fail = true

	// Paging needs items 6-10, which were never cached.
	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventNext, Seq: store.Seq(key)})
	assert.Equal(t, browse.FetchFailedNotice, render.Notice)
	assert.Nil(t, render.Main)

	st := store.Get(key)
	assert.Equal(t, 0, st.Offset, "offset commits only after a successful fill")
	assert.Equal(t, session.ViewList, st.View)

	// Recovery: the same press works once the provider does.
	catalog.fail = false
	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventNext, Seq: store.Seq(key)})
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "6-10 of 12")
}

func TestEngine_EmptyResultsSuggest(t *testing.T) {
	catalog := &fakeCatalog{pageSize: 175, suggest: []string{"Shivan Dragon", "Shivan Wurm"}}
	engine, _ := newTestEngine(t, catalog)
	ctx := context.Background()

	render := engine.Handle(ctx, session.Key(109), browse.Event{Kind: browse.EventSubmitQuery, Query: "shvian"})
	require.NotNil(t, render.Main)
	assert.Equal(t, browse.ActionSend, render.MainAction)
	assert.Contains(t, render.Main.Text, "Did you mean")
	assert.Equal(t, []string{"Shivan Dragon", "Shivan Wurm"}, buttonLabels(render.Main))

	catalog.suggest = nil
	render = engine.Handle(ctx, session.Key(110), browse.Event{Kind: browse.EventSubmitQuery, Query: "zzzz"})
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "No cards found")
	assert.Empty(t, render.Main.Buttons)
}

// Scryfall reports a zero-match search as HTTP 404, which the client maps
// to card.ErrNotFound. Wired end to end, that must land on the suggestion
// path, never on the fetch-failure notice.
func TestEngine_SearchNotFoundSuggests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cards/search":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"object":"error","code":"not_found","status":404}`)
		case "/cards/autocomplete":
			fmt.Fprint(w, `{"object":"catalog","data":["Shivan Dragon"]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	engine, store := newTestEngine(t, scryfall.NewClient(scryfall.WithBaseURL(srv.URL)))
	key := session.Key(117)

	render := engine.Handle(context.Background(), key, browse.Event{
		Kind: browse.EventSubmitQuery, Query: "shvian dargon",
	})
	require.NotNil(t, render.Main)
	assert.NotEqual(t, browse.FetchFailedNotice, render.Main.Text)
	assert.Contains(t, render.Main.Text, "Did you mean")
	assert.Equal(t, []string{"Shivan Dragon"}, store.Get(key).Suggestions)
}

func TestEngine_SuggestionListIsCapped(t *testing.T) {
	catalog := &fakeCatalog{pageSize: 175}
	for i := 0; i < 20; i++ {
		catalog.suggest = append(catalog.suggest, fmt.Sprintf("Name %d", i))
	}
	engine, _ := newTestEngine(t, catalog)

	render := engine.Handle(context.Background(), session.Key(111), browse.Event{Kind: browse.EventSubmitQuery, Query: "name"})
	require.NotNil(t, render.Main)
	assert.Len(t, buttonLabels(render.Main), 8)
}

func TestEngine_LookupName(t *testing.T) {
	catalog := artsCatalog()
	engine, store := newTestEngine(t, catalog)
	ctx := context.Background()
	key := session.Key(112)

	// The fake resolves fuzzy lookups through the exact map, so alias the
	// sloppy spelling first.
	catalog.byName["shivan dragn"] = catalog.byName["Shivan Dragon"]

	render := engine.LookupName(ctx, key, "shivan dragn")
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "Shivan Dragon")
	assert.Equal(t, session.ViewDetail, store.Get(key).View)

	catalog.suggest = []string{"Shivan Dragon"}
	render = engine.LookupName(ctx, session.Key(113), "no such card")
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "Did you mean")
}

func TestEngine_SelectSuggestionEntersDetail(t *testing.T) {
	catalog := &fakeCatalog{
		pageSize: 175,
		byName: map[string]card.Card{
			"Shivan Dragon": {ID: "shivan-1", Name: "Shivan Dragon", OracleText: "Flying"},
		},
		suggest: []string{"Shivan Dragon", "Ghost Card"},
	}
	engine, store := newTestEngine(t, catalog)
	ctx := context.Background()
	key := session.Key(114)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "shvian"})
	seq := store.Seq(key)

	// An index past the stored list is stale, not a crash.
	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventSelectSuggestion, Index: 5, Seq: seq})
	assert.Equal(t, browse.StaleNotice, render.Notice)

	// A suggestion the provider no longer resolves reports the miss.
	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventSelectSuggestion, Index: 1, Seq: seq})
	assert.Equal(t, browse.NoResultsNotice("Ghost Card"), render.Notice)

	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventSelectSuggestion, Index: 0, Seq: seq})
	require.NotNil(t, render.Main)
	assert.Contains(t, render.Main.Text, "Shivan Dragon")
	assert.Equal(t, session.ViewDetail, store.Get(key).View)
}

func TestEngine_SuggestionCallbacksFitTelegramCap(t *testing.T) {
	long := "Okina, Temple to the Grandfathers of the Thousand-Year Storm Reborn"
	catalog := &fakeCatalog{pageSize: 175, suggest: []string{long}}
	engine, store := newTestEngine(t, catalog)
	ctx := context.Background()
	key := session.Key(118)

	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "okina"})
	require.NotNil(t, render.Main)
	require.NotEmpty(t, render.Main.Buttons)
	for _, row := range render.Main.Buttons {
		for _, b := range row {
			assert.LessOrEqual(t, len(b.Data), 64,
				"callback data for %q must fit Telegram's cap", b.Label)
		}
	}
	assert.Equal(t, []string{long}, store.Get(key).Suggestions)
}

func TestEngine_StaleAfterReplacementCarriesArtsDelete(t *testing.T) {
	engine, store := newTestEngine(t, artsCatalog(), browse.WithWindows(5, 5))
	ctx := context.Background()
	key := session.Key(115)

	engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "shivan"})
	seq := store.Seq(key)
	engine.Handle(ctx, key, browse.Event{Kind: browse.EventChooseItem, ID: "shivan-1", Seq: seq})
	engine.Handle(ctx, key, browse.Event{Kind: browse.EventOpenArts, Seq: seq})

	// Simulate the transport having recorded the preview message.
	store.Update(key, func(st *session.State) *session.State {
		st.ArtsMessageID = 777
		return st
	})

	render := engine.Handle(ctx, key, browse.Event{Kind: browse.EventSubmitQuery, Query: "dragon"})
	assert.Equal(t, browse.ActionDelete, render.ArtsAction,
		"a fresh query sweeps away the orphaned preview")

	// Presses against the torn-down arts view are stale.
	render = engine.Handle(ctx, key, browse.Event{Kind: browse.EventArtsNext, Seq: seq})
	assert.Equal(t, browse.StaleNotice, render.Notice)
}

func TestEngine_NoSessionIsStale(t *testing.T) {
	engine, _ := newTestEngine(t, dragonCatalog(1))

	render := engine.Handle(context.Background(), session.Key(116), browse.Event{Kind: browse.EventNext, Seq: 4})
	assert.Equal(t, browse.StaleNotice, render.Notice)
}
