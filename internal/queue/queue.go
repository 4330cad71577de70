package queue

import (
	"context"
	"time"

	"relaybot/internal/domain"
)

// Event kinds published for downstream consumers.
const (
	EventPostForwarded  = "post_forwarded"
	EventTweetPublished = "tweet_published"
)

// Event records a side effect the bot performed.
type Event struct {
	Kind   string        `json:"kind"`
	Source domain.Source `json:"source"`
	ID     string        `json:"id,omitempty"`
	Author string        `json:"author,omitempty"`
	Text   string        `json:"text"`
	At     time.Time     `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
