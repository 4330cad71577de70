package scraper

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"relaybot/internal/domain"
)

// Nitter reads account timelines from the RSS feed of a Nitter instance.
type Nitter struct {
	base   string
	client *http.Client
	parser *gofeed.Parser
	now    func() time.Time
}

// NewNitter accepts either a bare host ("nitter.net") or a full base URL.
func NewNitter(instance string) *Nitter {
	base := strings.TrimRight(instance, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Nitter{
		base:   base,
		client: &http.Client{Timeout: 15 * time.Second},
		parser: gofeed.NewParser(),
		now:    time.Now,
	}
}

func (n *Nitter) Scrape(ctx context.Context, account string) ([]domain.Post, error) {
	account = strings.TrimPrefix(strings.TrimSpace(account), "@")
	if account == "" {
		return nil, fmt.Errorf("empty account")
	}
	feedURL := fmt.Sprintf("%s/%s/rss", n.base, url.PathEscape(account))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("@%s: HTTP %d", account, resp.StatusCode)
	}

	feed, err := n.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("@%s: parse feed: %w", account, err)
	}

	posts := make([]domain.Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		if isReply(item.Title) {
			continue
		}

		createdAt := n.now()
		if item.PublishedParsed != nil {
			createdAt = *item.PublishedParsed
		}

		posts = append(posts, domain.Post{
			ID:        postID(item),
			Author:    account,
			Text:      strings.TrimSpace(item.Title),
			Link:      item.Link,
			Source:    domain.SourceTwitter,
			CreatedAt: createdAt,
		})
	}

	return posts, nil
}

// Nitter prefixes replies with "R to @handle:".
func isReply(title string) bool {
	return strings.HasPrefix(strings.TrimSpace(title), "R to @")
}

// postID takes the status id from the item link or GUID
// (".../status/<id>#m") and falls back to a hash of the GUID.
func postID(item *gofeed.Item) string {
	for _, s := range []string{item.GUID, item.Link} {
		if id := statusID(s); id != "" {
			return id
		}
	}
	return generateID(item.GUID + item.Link)
}

func statusID(s string) string {
	i := strings.LastIndex(s, "/status/")
	if i < 0 {
		return ""
	}
	id := s[i+len("/status/"):]
	if j := strings.IndexAny(id, "#?/"); j >= 0 {
		id = id[:j]
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id
}

func generateID(guid string) string {
	hash := md5.Sum([]byte(guid))
	return fmt.Sprintf("%x", hash)[:12]
}
