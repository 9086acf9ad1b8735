package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quipkit/quipkit/internal/core"
)

// ErrPageLimitExceeded is returned when a server keeps issuing cursors past
// the configured page cap.
var ErrPageLimitExceeded = errors.New("page limit exceeded")

// PageFunc fetches the page at cursor. An empty cursor requests the first page.
type PageFunc func(ctx context.Context, cursor string, limit int) (core.Page, error)

// Paginator assembles cursor-chained pages into one result. Pages of a single
// resource are fetched strictly in sequence.
type Paginator struct {
	// MaxPages bounds the number of requests; zero means no bound.
	MaxPages int
}

// FetchAll fetches every page with no page cap.
func FetchAll(ctx context.Context, fetch PageFunc, limit int) (string, error) {
	return Paginator{}.FetchAll(ctx, fetch, limit)
}

// FetchAll requests pages until the returned cursor is empty and concatenates
// their content in the order received. limit is forwarded as a page size hint.
func (p Paginator) FetchAll(ctx context.Context, fetch PageFunc, limit int) (string, error) {
	if fetch == nil {
		return "", errors.New("page function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		builder strings.Builder
		cursor  string
		pages   int
	)

	for {
		if p.MaxPages > 0 && pages >= p.MaxPages {
			return builder.String(), fmt.Errorf("%w: stopped after %d pages", ErrPageLimitExceeded, pages)
		}

		page, err := fetch(ctx, cursor, limit)
		if err != nil {
			return builder.String(), fmt.Errorf("fetch page %d: %w", pages+1, err)
		}
		pages++
		builder.WriteString(page.Content)

		if page.NextCursor == "" {
			return builder.String(), nil
		}
		cursor = page.NextCursor
	}
}
