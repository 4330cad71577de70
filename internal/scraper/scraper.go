package scraper

import (
	"context"

	"relaybot/internal/domain"
)

// Scraper returns the recent timeline of an account, newest first, without
// replies.
type Scraper interface {
	Scrape(ctx context.Context, account string) ([]domain.Post, error)
}
