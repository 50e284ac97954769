// Package collage composes a single preview image out of several card
// thumbnails laid out on a fixed grid. The renderer is stateless and
// deterministic: identical inputs produce identical bytes, and a failed
// thumbnail only ever costs its own cell.
package collage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"github.com/scryforge/scrybot/internal/card"
)

const (
	// Cell dimensions match the provider's small thumbnail aspect.
	defaultCellWidth  = 146
	defaultCellHeight = 204

	// defaultMaxColumns keeps windows of 4-6 items on two rows.
	defaultMaxColumns = 3

	// defaultConcurrency bounds parallel thumbnail fetches per collage.
	defaultConcurrency = 4

	badgeWidth  = 18
	badgeHeight = 16
)

var (
	placeholderColor = color.NRGBA{R: 0x2b, G: 0x2b, B: 0x31, A: 0xff}
	backgroundColor  = color.NRGBA{R: 0x11, G: 0x11, B: 0x14, A: 0xff}
	badgeColor       = color.NRGBA{A: 0xc8}
)

// Renderer builds collages from a thumbnail fetcher.
type Renderer struct {
	fetcher     card.ImageFetcher
	logger      *slog.Logger
	cellWidth   int
	cellHeight  int
	maxColumns  int
	concurrency int
}

// Option configures the renderer.
type Option func(*Renderer)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

// WithCellSize overrides the per-cell pixel dimensions.
func WithCellSize(width, height int) Option {
	return func(r *Renderer) {
		r.cellWidth = width
		r.cellHeight = height
	}
}

// WithConcurrency bounds parallel thumbnail fetches.
func WithConcurrency(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRenderer creates a collage renderer.
func NewRenderer(fetcher card.ImageFetcher, opts ...Option) (*Renderer, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	r := &Renderer{
		fetcher:     fetcher,
		logger:      slog.Default(),
		cellWidth:   defaultCellWidth,
		cellHeight:  defaultCellHeight,
		maxColumns:  defaultMaxColumns,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Compose fetches every thumbnail concurrently (bounded), scales and
// crops each into its grid cell, stamps a 1-based index badge, and
// returns the encoded image. Cells whose fetch or decode fails get a
// neutral placeholder; the second return counts them. Compose fails only
// when given no cells or when encoding itself fails.
func (r *Renderer) Compose(ctx context.Context, thumbURLs []string) ([]byte, int, error) {
	n := len(thumbURLs)
	if n == 0 {
		return nil, 0, fmt.Errorf("compose: no cells")
	}

	cells := make([]image.Image, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, rawURL := range thumbURLs {
		if rawURL == "" {
			continue
		}
		i, rawURL := i, rawURL
		g.Go(func() error {
			// Failures fill a placeholder; they never cancel siblings.
			data, err := r.fetcher.FetchImage(gctx, rawURL)
			if err != nil {
				r.logger.Debug("thumbnail fetch failed", "url", rawURL, "error", err)
				return nil
			}
			img, err := imaging.Decode(bytes.NewReader(data))
			if err != nil {
				r.logger.Debug("thumbnail decode failed", "url", rawURL, "error", err)
				return nil
			}
			cells[i] = imaging.Fill(img, r.cellWidth, r.cellHeight, imaging.Center, imaging.Lanczos)
			return nil
		})
	}
	_ = g.Wait()

	cols := n
	if cols > r.maxColumns {
		cols = r.maxColumns
	}
	rows := (n + cols - 1) / cols

	canvas := imaging.New(cols*r.cellWidth, rows*r.cellHeight, backgroundColor)
	placeholders := 0
	for i := 0; i < n; i++ {
		x := (i % cols) * r.cellWidth
		y := (i / cols) * r.cellHeight
		if cells[i] != nil {
			canvas = imaging.Paste(canvas, cells[i], image.Pt(x, y))
		} else {
			placeholders++
			fillRect(canvas, image.Rect(x, y, x+r.cellWidth, y+r.cellHeight), placeholderColor)
		}
		r.stampBadge(canvas, x, y, i+1)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, placeholders, fmt.Errorf("encode collage: %w", err)
	}
	return buf.Bytes(), placeholders, nil
}

// stampBadge draws the 1-based cell rank in the cell's top-left corner.
func (r *Renderer) stampBadge(canvas *image.NRGBA, x, y, rank int) {
	label := strconv.Itoa(rank)
	w := badgeWidth
	if len(label) > 1 {
		w += (len(label) - 1) * basicfont.Face7x13.Advance
	}
	fillRect(canvas, image.Rect(x, y, x+w, y+badgeHeight), badgeColor)

	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x+5, y+12),
	}
	d.DrawString(label)
}

func fillRect(canvas *image.NRGBA, rect image.Rectangle, c color.NRGBA) {
	draw.Draw(canvas, rect, image.NewUniform(c), image.Point{}, draw.Over)
}
