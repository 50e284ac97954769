package browse

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/scryforge/scrybot/internal/card"
	"github.com/scryforge/scrybot/internal/session"
)

// maxSuggestions caps the did-you-mean keyboard.
const maxSuggestions = 8

// NoResultsNotice is the explicit empty-result message for a query.
func NoResultsNotice(query string) string {
	return fmt.Sprintf("No cards found for %q.", query)
}

func textPayload(text string) *Payload {
	return &Payload{Shape: session.ShapeText, Text: text}
}

// listPayload renders one result window: a collage preview, a numbered
// caption, numbered pick buttons, and saturating nav buttons.
func (e *Engine) listPayload(ctx context.Context, st *session.State, window []card.Card) *Payload {
	thumbs := make([]string, len(window))
	for i, c := range window {
		thumbs[i] = c.ThumbURL
	}

	var image []byte
	if len(window) > 0 {
		img, placeholders, err := e.composer.Compose(ctx, thumbs)
		if err != nil {
			e.logger.Warn("collage compose failed, falling back to text", "query", st.Query, "error", err)
		} else {
			if placeholders > 0 {
				e.logger.Info("collage rendered with placeholders",
					"query", st.Query, "placeholders", placeholders, "cells", len(thumbs))
			}
			image = img
		}
	}

	first := st.Offset + 1
	last := st.Offset + len(window)
	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q — %d-%d of %d\n", st.Query, first, last, st.TotalCount)
	for i, c := range window {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Title())
	}

	pickRow := make([]Button, 0, len(window))
	for i, c := range window {
		pickRow = append(pickRow, Button{
			Label: strconv.Itoa(i + 1),
			Data:  EncodeCallback(EventChooseItem, st.Seq, c.ID),
		})
	}

	var navRow []Button
	if st.Offset > 0 {
		navRow = append(navRow, Button{Label: "« Prev", Data: EncodeCallback(EventPrev, st.Seq, "")})
	}
	if st.Offset < lastWindowStart(st.TotalCount, st.WindowSize) {
		navRow = append(navRow, Button{Label: "Next »", Data: EncodeCallback(EventNext, st.Seq, "")})
	}

	buttons := [][]Button{pickRow}
	if len(navRow) > 0 {
		buttons = append(buttons, navRow)
	}

	payload := &Payload{
		Shape:   session.ShapeText,
		Text:    b.String(),
		Buttons: buttons,
	}
	if image != nil {
		payload.Shape = session.ShapePhoto
		payload.Image = image
	}
	return payload
}

// detailShape is the shape detailPayload will produce for the state.
func detailShape(st *session.State) session.MessageShape {
	if st.Selected != nil && (st.ActiveImage != "" || st.Selected.HasImage()) {
		return session.ShapePhoto
	}
	return session.ShapeText
}

// detailPayload renders the single-card view, name-only or full text
// depending on the toggle.
func detailPayload(st *session.State) *Payload {
	c := st.Selected
	if c == nil {
		return textPayload("Nothing selected. Run a new search.")
	}

	var b strings.Builder
	b.WriteString(c.Title())
	if c.SetName != "" {
		fmt.Fprintf(&b, "\n%s (%s)", c.SetName, strings.ToUpper(c.SetCode))
		if c.Rarity != "" {
			fmt.Fprintf(&b, " · %s", c.Rarity)
		}
	}
	if st.ShowFull && c.OracleText != "" {
		b.WriteString("\n\n")
		b.WriteString(c.OracleText)
	}

	toggleLabel := "Show text"
	if st.ShowFull {
		toggleLabel = "Hide text"
	}
	row := []Button{{Label: toggleLabel, Data: EncodeCallback(EventToggleDetails, st.Seq, "")}}
	if c.PrintsSearchURL != "" {
		row = append(row, Button{Label: "Alt arts", Data: EncodeCallback(EventOpenArts, st.Seq, "")})
	}

	buttons := [][]Button{row}
	if st.TotalCount > 1 {
		buttons = append(buttons, []Button{{Label: "« Results", Data: EncodeCallback(EventBack, st.Seq, "")}})
	}

	payload := &Payload{
		Shape:   detailShape(st),
		Text:    b.String(),
		Buttons: buttons,
	}
	if payload.Shape == session.ShapePhoto {
		if st.ActiveImage != "" {
			payload.ImageURL = st.ActiveImage
		} else if c.ImageURL != "" {
			payload.ImageURL = c.ImageURL
		} else {
			payload.ImageURL = c.ThumbURL
		}
	}
	return payload
}

// artsPayload renders one window of alternate printings as a collage
// preview with numbered pick buttons.
func (e *Engine) artsPayload(ctx context.Context, st *session.State, window []card.Printing) *Payload {
	arts := st.Arts
	name := ""
	if st.Selected != nil {
		name = st.Selected.Name
	}

	thumbs := make([]string, len(window))
	for i, p := range window {
		thumbs[i] = p.ThumbURL
	}
	var image []byte
	if len(window) > 0 {
		img, placeholders, err := e.composer.Compose(ctx, thumbs)
		if err != nil {
			e.logger.Warn("arts collage compose failed", "card", name, "error", err)
		} else {
			if placeholders > 0 {
				e.logger.Info("arts collage rendered with placeholders",
					"card", name, "placeholders", placeholders, "cells", len(thumbs))
			}
			image = img
		}
	}

	total := strconv.Itoa(len(arts.Printings))
	if arts.HasMore {
		total += "+"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Printings of %s — %d-%d of %s\n", name, arts.Offset+1, arts.Offset+len(window), total)
	for i, p := range window {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Label())
	}

	pickRow := make([]Button, 0, len(window))
	for i, p := range window {
		pickRow = append(pickRow, Button{
			Label: strconv.Itoa(i + 1),
			Data:  EncodeCallback(EventPickVariant, st.Seq, p.ID),
		})
	}

	var navRow []Button
	if arts.Offset > 0 {
		navRow = append(navRow, Button{Label: "« Prev", Data: EncodeCallback(EventArtsPrev, st.Seq, "")})
	}
	if arts.HasMore || arts.Offset < lastWindowStart(len(arts.Printings), arts.WindowSize) {
		navRow = append(navRow, Button{Label: "Next »", Data: EncodeCallback(EventArtsNext, st.Seq, "")})
	}

	buttons := [][]Button{pickRow}
	if len(navRow) > 0 {
		buttons = append(buttons, navRow)
	}
	buttons = append(buttons, []Button{{Label: "Close", Data: EncodeCallback(EventBack, st.Seq, "")}})

	payload := &Payload{
		Shape:   session.ShapeText,
		Text:    b.String(),
		Buttons: buttons,
	}
	if image != nil {
		payload.Shape = session.ShapePhoto
		payload.Image = image
	}
	return payload
}
