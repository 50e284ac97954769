package browse

import (
	"context"
	"fmt"

	"github.com/scryforge/scrybot/internal/card"
	"github.com/scryforge/scrybot/internal/session"
)

// fillArtsWindow returns the printings window at arts.Offset, fetching
// further cursor pages only when the window reaches past what is loaded
// and the provider reports more. The printings list is append-only; the
// continuation is opaque and never subject to offset arithmetic.
func fillArtsWindow(ctx context.Context, provider card.Provider, arts *session.ArtsState) ([]card.Printing, error) {
	for arts.Offset+arts.WindowSize > len(arts.Printings) && arts.HasMore {
		result, err := provider.ListPrintingsPage(ctx, arts.NextPage)
		if err != nil {
			return nil, fmt.Errorf("fetch printings page: %w", err)
		}
		arts.HasMore = result.HasMore
		arts.NextPage = result.NextPage
		if len(result.Printings) == 0 {
			// Defensive: a provider claiming more but delivering none
			// would otherwise spin here.
			arts.HasMore = false
			break
		}
		arts.Printings = append(arts.Printings, result.Printings...)
	}

	end := arts.Offset + arts.WindowSize
	if end > len(arts.Printings) {
		end = len(arts.Printings)
	}
	if arts.Offset >= end {
		return nil, nil
	}
	return arts.Printings[arts.Offset:end], nil
}

// artsNextOffset advances one window over the loaded-so-far printings,
// saturating at the last loaded window. More remote pages extend the
// reachable range on the next fill.
func artsNextOffset(arts *session.ArtsState) int {
	next := arts.Offset + arts.WindowSize
	last := lastWindowStart(len(arts.Printings), arts.WindowSize)
	if next > last && !arts.HasMore {
		return last
	}
	return next
}
