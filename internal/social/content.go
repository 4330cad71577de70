package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"relaybot/internal/config"
	"relaybot/internal/domain"
	"relaybot/internal/scraper"
)

var ErrUnknownCategory = errors.New("unknown category")

// Content answers timeline queries for the followed accounts and the
// operator's own account. It keeps no state between calls.
type Content struct {
	scraper scraper.Scraper
	cfg     config.TwitterConfig
	log     zerolog.Logger
	now     func() time.Time
}

func NewContent(s scraper.Scraper, cfg config.TwitterConfig, log zerolog.Logger) *Content {
	return &Content{
		scraper: s,
		cfg:     cfg,
		log:     log.With().Str("component", "content").Logger(),
		now:     time.Now,
	}
}

// Categories returns the configured category labels, sorted.
func (c *Content) Categories() []string {
	out := make([]string, 0, len(c.cfg.Users))
	for k := range c.cfg.Users {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Content) HasCategory(name string) bool {
	_, ok := c.cfg.Users[name]
	return ok
}

func (c *Content) DefaultCategory() string {
	return c.cfg.DefaultCategory
}

// LatestPosts returns posts of every account in category created within the
// content window. Accounts that fail are logged and skipped; an error is
// returned only when all of them failed.
func (c *Content) LatestPosts(ctx context.Context, category string) ([]domain.Post, error) {
	accounts, ok := c.cfg.Users[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	var (
		posts  []domain.Post
		failed int
	)
	for _, account := range accounts {
		got, err := c.fetch(ctx, account, c.cfg.ContentWindow, 0)
		if err != nil {
			failed++
			c.log.Error().Err(err).Str("account", account).Str("category", category).Msg("timeline fetch failed")
			continue
		}
		posts = append(posts, got...)
	}
	if len(accounts) > 0 && failed == len(accounts) {
		return nil, fmt.Errorf("all %d accounts of %q failed", failed, category)
	}
	return posts, nil
}

// OwnPosts returns the operator account posts within window.
func (c *Content) OwnPosts(ctx context.Context, window time.Duration) ([]domain.Post, error) {
	return c.fetch(ctx, c.cfg.PersonalUsername, window, 0)
}

// SeedPosts returns the operator account history without a recency filter,
// capped at the configured seed limit.
func (c *Content) SeedPosts(ctx context.Context) ([]domain.Post, error) {
	return c.fetch(ctx, c.cfg.PersonalUsername, 0, c.cfg.SeedLimit)
}

// fetch filters account posts to those newer than now-window (window <= 0
// keeps all) and keeps at most limit of them (limit <= 0 is no cap).
func (c *Content) fetch(ctx context.Context, account string, window time.Duration, limit int) ([]domain.Post, error) {
	posts, err := c.scraper.Scrape(ctx, account)
	if err != nil {
		return nil, err
	}

	cutoff := c.now().Add(-window)
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if window > 0 && !p.CreatedAt.After(cutoff) {
			continue
		}
		if p.Text == "" {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
