// Package scryfall implements the card.Provider boundary against the
// Scryfall REST API. All payload normalization happens here; the rest of
// the engine only ever sees card.Card and card.Printing values.
package scryfall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/scryforge/scrybot/internal/card"
)

const (
	// DefaultBaseURL is the production Scryfall API endpoint.
	DefaultBaseURL = "https://api.scryfall.com"

	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 5 * time.Second

	// remotePageSize is fixed by Scryfall for /cards/search.
	remotePageSize = 175

	// requestsPerSecond paces outbound calls; Scryfall asks clients to
	// stay under 10 req/s.
	requestsPerSecond = 8

	// maxImageBytes caps a fetched image body.
	maxImageBytes = 10 << 20

	userAgent = "scrybot/1.0"
)

// Client talks to the Scryfall API. It is safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (used in tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Scryfall API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RemotePageSize reports Scryfall's fixed search page size.
func (c *Client) RemotePageSize() int {
	return remotePageSize
}

// Search returns one remote page of matches for a free-text query.
// Pages are 1-based, matching the provider.
func (c *Client) Search(ctx context.Context, query string, page int) (card.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))

	var list listPayload
	if err := c.getJSON(ctx, "search", c.baseURL+"/cards/search?"+q.Encode(), &list); err != nil {
		return card.SearchResult{}, err
	}

	result := card.SearchResult{
		Cards:      make([]card.Card, 0, len(list.Data)),
		TotalCount: list.TotalCards,
		HasMore:    list.HasMore,
	}
	for _, raw := range list.Data {
		result.Cards = append(result.Cards, raw.normalize())
	}
	return result, nil
}

// LookupExact resolves a card by exact name.
func (c *Client) LookupExact(ctx context.Context, name string) (card.Card, error) {
	return c.lookupNamed(ctx, "exact", name)
}

// LookupFuzzy resolves a card by approximate name.
func (c *Client) LookupFuzzy(ctx context.Context, name string) (card.Card, error) {
	return c.lookupNamed(ctx, "fuzzy", name)
}

func (c *Client) lookupNamed(ctx context.Context, mode, name string) (card.Card, error) {
	q := url.Values{}
	q.Set(mode, name)

	var raw cardPayload
	if err := c.getJSON(ctx, "named", c.baseURL+"/cards/named?"+q.Encode(), &raw); err != nil {
		return card.Card{}, err
	}
	return raw.normalize(), nil
}

// Autocomplete returns card name completions for a prefix.
func (c *Client) Autocomplete(ctx context.Context, prefix string) ([]string, error) {
	q := url.Values{}
	q.Set("q", prefix)

	var payload struct {
		Data []string `json:"data"`
	}
	if err := c.getJSON(ctx, "autocomplete", c.baseURL+"/cards/autocomplete?"+q.Encode(), &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// ListPrintings returns the first cursor page of printings for a card.
func (c *Client) ListPrintings(ctx context.Context, printsURL string) (card.PrintingsResult, error) {
	if printsURL == "" {
		return card.PrintingsResult{}, fmt.Errorf("list printings: %w", card.ErrNotFound)
	}
	return c.printingsPage(ctx, printsURL)
}

// ListPrintingsPage returns a subsequent cursor page. The continuation is
// the opaque next-page value from a previous result.
func (c *Client) ListPrintingsPage(ctx context.Context, continuation string) (card.PrintingsResult, error) {
	if continuation == "" {
		return card.PrintingsResult{}, fmt.Errorf("list printings page: empty continuation")
	}
	return c.printingsPage(ctx, continuation)
}

func (c *Client) printingsPage(ctx context.Context, pageURL string) (card.PrintingsResult, error) {
	var list listPayload
	if err := c.getJSON(ctx, "printings", pageURL, &list); err != nil {
		return card.PrintingsResult{}, err
	}

	result := card.PrintingsResult{
		Printings: make([]card.Printing, 0, len(list.Data)),
		HasMore:   list.HasMore,
		NextPage:  list.NextPage,
	}
	for _, raw := range list.Data {
		result.Printings = append(result.Printings, raw.normalizePrinting())
	}
	return result, nil
}

// FetchImage downloads raw image bytes for a card scan or thumbnail.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	body, err := c.get(ctx, "image", imageURL)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// getJSON performs a GET and decodes the JSON body into out. Transport
// failures and 5xx responses are retried once; the caller sees at most one
// FetchError for the pair.
func (c *Client) getJSON(ctx context.Context, op, rawURL string, out any) error {
	body, err := c.get(ctx, op, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &card.FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	body, status, err := c.doOnce(ctx, rawURL)
	if retryable(status, err) {
		c.logger.Debug("retrying provider call", "op", op, "status", status, "error", err)
		body, status, err = c.doOnce(ctx, rawURL)
	}
	if err != nil {
		return nil, &card.FetchError{Op: op, Err: err}
	}

	switch {
	case status == http.StatusOK:
		return body, nil
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", op, card.ErrNotFound)
	default:
		return nil, &card.FetchError{Op: op, Status: status}
	}
}

func (c *Client) doOnce(ctx context.Context, rawURL string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json;q=0.9,*/*;q=0.8")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http get: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// retryable reports whether a first attempt warrants the single automatic
// retry: transport-level failures and server-side errors only.
func retryable(status int, err error) bool {
	if err != nil {
		return true
	}
	return status >= http.StatusInternalServerError
}
