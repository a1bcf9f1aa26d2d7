package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the largest page the upstream list endpoints serve.
const DefaultPageSize = 100

// Config holds walker configuration
type Config struct {
	// PageSize is the limit requested per page
	PageSize int

	// MaxItems stops the walk once this many items are collected (0 = no cap)
	MaxItems int

	// Timeout per page fetch (0 = only the caller's context applies)
	Timeout time.Duration

	// OnProgress is called with the running item count after every non-empty page
	OnProgress func(total int)
}

// DefaultConfig returns the walker defaults for the upstream API
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
	}
}

// PageFunc fetches one page of at most limit items starting at offset.
type PageFunc[T any] func(ctx context.Context, limit, offset int) ([]T, error)

// Collect fetches pages sequentially and returns every item collected.
// When a page fetch fails or ctx ends, the items gathered so far are
// returned together with the error.
func Collect[T any](ctx context.Context, fetch PageFunc[T], cfg Config) ([]T, error) {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxItems < 0 {
		cfg.MaxItems = 0
	}

	start := time.Now()
	var items []T
	pages := 0

	for offset := 0; ; offset += cfg.PageSize {
		if err := ctx.Err(); err != nil {
			return items, fmt.Errorf("collect stopped at offset %d (partial data: %d items): %w", offset, len(items), err)
		}

		limit := cfg.PageSize
		if cfg.MaxItems > 0 && cfg.MaxItems-len(items) < limit {
			limit = cfg.MaxItems - len(items)
		}

		page, err := fetchPage(ctx, fetch, cfg.Timeout, limit, offset)
		if err != nil {
			log.Warn().
				Err(err).
				Int("offset", offset).
				Int("collected", len(items)).
				Msg("Page fetch failed - returning partial results")
			return items, fmt.Errorf("fetch page at offset %d (partial data: %d items): %w", offset, len(items), err)
		}
		pages++

		items = append(items, page...)
		if cfg.MaxItems > 0 && len(items) > cfg.MaxItems {
			items = items[:cfg.MaxItems]
		}
		if len(page) > 0 && cfg.OnProgress != nil {
			cfg.OnProgress(len(items))
		}

		if len(page) < limit || (cfg.MaxItems > 0 && len(items) >= cfg.MaxItems) {
			break
		}
	}

	log.Debug().
		Int("pages", pages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Collect complete")

	return items, nil
}

func fetchPage[T any](ctx context.Context, fetch PageFunc[T], timeout time.Duration, limit, offset int) ([]T, error) {
	if timeout <= 0 {
		return fetch(ctx, limit, offset)
	}
	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fetch(pageCtx, limit, offset)
}
