package domain

import "time"

// Message is a chat message fetched from the channel history.
type Message struct {
	ID       string // Slack ts, unique per channel
	Text     string
	ThreadTS string
	User     string
}

// Post is an item from a social account timeline.
type Post struct {
	ID        string
	Author    string
	Text      string
	Link      string
	Source    Source
	CreatedAt time.Time
}

type Source string

const (
	SourceTwitter Source = "twitter"
	SourceSlack   Source = "slack"
)
