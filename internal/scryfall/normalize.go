package scryfall

import (
	"strings"

	"github.com/scryforge/scrybot/internal/card"
)

// listPayload is the raw shape of Scryfall list responses (search results
// and printings pages share it).
type listPayload struct {
	TotalCards int           `json:"total_cards"`
	HasMore    bool          `json:"has_more"`
	NextPage   string        `json:"next_page"`
	Data       []cardPayload `json:"data"`
}

// cardPayload is the raw, loosely-typed card shape. Single-face cards carry
// image_uris and oracle text at the top level; multi-face cards carry them
// per face instead. normalize collapses both shapes into one card.Card.
type cardPayload struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	ManaCost        string        `json:"mana_cost"`
	TypeLine        string        `json:"type_line"`
	OracleText      string        `json:"oracle_text"`
	SetName         string        `json:"set_name"`
	Set             string        `json:"set"`
	CollectorNumber string        `json:"collector_number"`
	Rarity          string        `json:"rarity"`
	ImageURIs       *imageURIs    `json:"image_uris"`
	CardFaces       []facePayload `json:"card_faces"`
	PrintsSearchURI string        `json:"prints_search_uri"`
	ScryfallURI     string        `json:"scryfall_uri"`
}

type facePayload struct {
	Name       string     `json:"name"`
	ManaCost   string     `json:"mana_cost"`
	TypeLine   string     `json:"type_line"`
	OracleText string     `json:"oracle_text"`
	ImageURIs  *imageURIs `json:"image_uris"`
}

type imageURIs struct {
	Small  string `json:"small"`
	Normal string `json:"normal"`
	Large  string `json:"large"`
}

func (p cardPayload) normalize() card.Card {
	c := card.Card{
		ID:              p.ID,
		Name:            p.Name,
		ManaCost:        p.ManaCost,
		TypeLine:        p.TypeLine,
		OracleText:      p.OracleText,
		SetName:         p.SetName,
		SetCode:         p.Set,
		CollectorNumber: p.CollectorNumber,
		Rarity:          p.Rarity,
		PrintsSearchURL: p.PrintsSearchURI,
		ScryfallURL:     p.ScryfallURI,
	}
	if p.ImageURIs != nil {
		c.ThumbURL = p.ImageURIs.Small
		c.ImageURL = p.ImageURIs.pick()
	}

	// Multi-face cards keep per-face fields; fold them into the flat shape
	// using the front face's image and the joined rules text.
	if len(p.CardFaces) > 0 {
		front := p.CardFaces[0]
		if c.ManaCost == "" {
			c.ManaCost = front.ManaCost
		}
		if c.ThumbURL == "" && front.ImageURIs != nil {
			c.ThumbURL = front.ImageURIs.Small
			c.ImageURL = front.ImageURIs.pick()
		}
		if c.OracleText == "" {
			texts := make([]string, 0, len(p.CardFaces))
			for _, face := range p.CardFaces {
				if face.OracleText == "" {
					continue
				}
				texts = append(texts, face.Name+"\n"+face.OracleText)
			}
			c.OracleText = strings.Join(texts, "\n//\n")
		}
	}
	return c
}

func (p cardPayload) normalizePrinting() card.Printing {
	pr := card.Printing{
		ID:              p.ID,
		SetName:         p.SetName,
		SetCode:         p.Set,
		CollectorNumber: p.CollectorNumber,
	}
	if p.ImageURIs != nil {
		pr.ThumbURL = p.ImageURIs.Small
		pr.ImageURL = p.ImageURIs.pick()
	} else if len(p.CardFaces) > 0 && p.CardFaces[0].ImageURIs != nil {
		pr.ThumbURL = p.CardFaces[0].ImageURIs.Small
		pr.ImageURL = p.CardFaces[0].ImageURIs.pick()
	}
	return pr
}

// pick returns the best full-size image available.
func (u *imageURIs) pick() string {
	switch {
	case u.Normal != "":
		return u.Normal
	case u.Large != "":
		return u.Large
	default:
		return u.Small
	}
}
