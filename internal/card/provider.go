package card

import "context"

// Provider abstracts the remote card-search service. All calls may block on
// the network and honor ctx cancellation; implementations apply their own
// timeouts and pacing.
//
// Search is offset/page-number paginated (page is 1-based, pages carry
// RemotePageSize items). Printings listings are cursor-paginated; callers
// must treat PrintingsResult.NextPage as opaque and never apply page
// arithmetic to it.
type Provider interface {
	// Search returns one remote page of matches for a free-text query.
	Search(ctx context.Context, query string, page int) (SearchResult, error)

	// LookupExact resolves a card by its exact name.
	LookupExact(ctx context.Context, name string) (Card, error)

	// LookupFuzzy resolves a card by approximate name.
	LookupFuzzy(ctx context.Context, name string) (Card, error)

	// Autocomplete returns up to 20 card names matching a prefix.
	Autocomplete(ctx context.Context, prefix string) ([]string, error)

	// ListPrintings returns the first cursor page of printings for a card,
	// using the card's prints endpoint.
	ListPrintings(ctx context.Context, printsURL string) (PrintingsResult, error)

	// ListPrintingsPage returns a subsequent cursor page.
	ListPrintingsPage(ctx context.Context, continuation string) (PrintingsResult, error)

	// RemotePageSize reports how many items the provider packs into one
	// search page.
	RemotePageSize() int
}

// ImageFetcher fetches raw image bytes for thumbnails and full scans.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}
