// Package browse implements the browsing engine: pagination over the
// remote catalog, the view state machine, and payload construction. It
// translates between the provider's coarse page size and the small
// windows shown in chat.
package browse

import (
	"context"
	"fmt"

	"github.com/scryforge/scrybot/internal/card"
	"github.com/scryforge/scrybot/internal/session"
)

// maxWindowFetches bounds remote fetches per window fill. A window is
// never wider than one remote page, so it spans at most two of them; the
// third attempt only exists to fail loudly instead of looping.
const maxWindowFetches = 3

// fillWindow ensures every rank of the window at offset is cached and
// returns exactly that slice, clamped to the reported total. A window
// straddling a remote page boundary fetches both pages and stitches them.
// On provider error the cache, total, and offset are left untouched; the
// caller commits the offset only after a successful fill.
func fillWindow(ctx context.Context, provider card.Provider, st *session.State, offset int) ([]card.Card, error) {
	for attempt := 0; attempt < maxWindowFetches; attempt++ {
		if st.Loaded {
			if window, ok := st.CachedWindow(offset); ok {
				return window, nil
			}
		}

		page := missingPage(st, offset)
		result, err := provider.Search(ctx, st.Query, page)
		if err != nil {
			return nil, fmt.Errorf("fill window at offset %d: %w", offset, err)
		}
		st.MergePage(page, result.Cards, result.TotalCount)
		st.Loaded = true

		if result.TotalCount == 0 {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("window at offset %d still incomplete after %d fetches", offset, maxWindowFetches)
}

// missingPage returns the 1-based remote page holding the first uncached
// rank of the window at offset.
func missingPage(st *session.State, offset int) int {
	end := offset + st.WindowSize
	if st.Loaded && end > st.TotalCount {
		end = st.TotalCount
	}
	for rank := offset; rank < end; rank++ {
		if _, ok := st.Results[rank]; !ok {
			return rank/st.RemotePageSize + 1
		}
	}
	return offset/st.RemotePageSize + 1
}

// lastWindowStart is the largest valid window offset: the start of the
// window containing the final item. Offsets stay multiples of the window
// size, so the last window may be short.
func lastWindowStart(total, windowSize int) int {
	if total <= 0 || windowSize <= 0 {
		return 0
	}
	return (total - 1) / windowSize * windowSize
}

// nextOffset advances one window, saturating at the last window.
func nextOffset(offset, windowSize, total int) int {
	next := offset + windowSize
	if last := lastWindowStart(total, windowSize); next > last {
		return last
	}
	return next
}

// prevOffset retreats one window, saturating at zero.
func prevOffset(offset, windowSize int) int {
	prev := offset - windowSize
	if prev < 0 {
		return 0
	}
	return prev
}
