// Package card defines the normalized card catalog data model and the
// provider boundary used by the browsing engine. Remote payload quirks
// (optional fields, multi-face cards) are resolved before values of these
// types exist; nothing downstream branches on raw payload shape.
package card

import "strings"

// Card is one normalized catalog entry. Optional fields are empty strings.
type Card struct {
	ID              string
	Name            string
	ManaCost        string
	TypeLine        string
	OracleText      string
	SetName         string
	SetCode         string
	CollectorNumber string
	Rarity          string

	// ThumbURL is a small image suitable for collage cells; ImageURL is the
	// full-size card image. Either may be empty for cards with no scan.
	ThumbURL string
	ImageURL string

	// PrintsSearchURL is the provider endpoint listing alternate printings
	// of this card. Empty when the provider exposes none.
	PrintsSearchURL string
	ScryfallURL     string
}

// HasImage reports whether the card has any renderable image.
func (c Card) HasImage() bool {
	return c.ImageURL != "" || c.ThumbURL != ""
}

// Title returns the one-line list representation of the card.
func (c Card) Title() string {
	var b strings.Builder
	b.WriteString(c.Name)
	if c.ManaCost != "" {
		b.WriteString(" ")
		b.WriteString(c.ManaCost)
	}
	if c.TypeLine != "" {
		b.WriteString(" — ")
		b.WriteString(c.TypeLine)
	}
	return b.String()
}

// Printing is one alternate illustration/printing of a card.
type Printing struct {
	ID              string
	SetName         string
	SetCode         string
	CollectorNumber string
	ThumbURL        string
	ImageURL        string
}

// Label returns the short caption used under a printing cell.
func (p Printing) Label() string {
	if p.CollectorNumber == "" {
		return p.SetName
	}
	return p.SetName + " #" + p.CollectorNumber
}

// SearchResult is one remote page of search matches.
type SearchResult struct {
	Cards      []Card
	TotalCount int
	HasMore    bool
}

// PrintingsResult is one cursor page of alternate printings.
type PrintingsResult struct {
	Printings []Printing
	HasMore   bool
	// NextPage is the opaque continuation for the following page; empty
	// when HasMore is false.
	NextPage string
}
