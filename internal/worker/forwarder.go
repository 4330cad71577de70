package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"relaybot/internal/chat"
	"relaybot/internal/dedup"
	"relaybot/internal/domain"
	"relaybot/internal/queue"
)

type PostSource interface {
	OwnPosts(ctx context.Context, window time.Duration) ([]domain.Post, error)
	SeedPosts(ctx context.Context) ([]domain.Post, error)
}

// Forwarder mirrors new posts of the operator account into the channel.
type Forwarder struct {
	source    PostSource
	sender    chat.Sender
	publisher queue.Publisher
	seen      *dedup.Set
	window    time.Duration
	interval  time.Duration
	log       zerolog.Logger
}

func NewForwarder(src PostSource, s chat.Sender, p queue.Publisher, seen *dedup.Set, window, interval time.Duration, log zerolog.Logger) *Forwarder {
	if interval <= 0 {
		interval = time.Second
	}
	if p == nil {
		p = queue.Nop{}
	}
	return &Forwarder{
		source:    src,
		sender:    s,
		publisher: p,
		seen:      seen,
		window:    window,
		interval:  interval,
		log:       log.With().Str("component", "forwarder").Logger(),
	}
}

func (w *Forwarder) Start(ctx context.Context) error {
	w.seed(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("forwarder stopped")
			return nil
		case <-ticker.C:
			w.forward(ctx)
		}
	}
}

func (w *Forwarder) Seen() int {
	return w.seen.Len()
}

// seed records existing history so it is not announced again.
func (w *Forwarder) seed(ctx context.Context) {
	posts, err := w.source.SeedPosts(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("seed fetch failed, starting with empty history")
		return
	}
	for _, p := range posts {
		w.seen.Add(p.ID)
	}
	w.log.Info().Int("seeded", len(posts)).Msg("forwarder seeded")
}

func (w *Forwarder) forward(ctx context.Context) {
	posts, err := w.source.OwnPosts(ctx, w.window)
	if err != nil {
		w.log.Error().Err(err).Msg("timeline fetch failed")
		return
	}

	newCount := 0
	for _, p := range posts {
		if w.seen.Has(p.ID) {
			continue
		}
		newCount++

		if !w.sender.Send(ctx, chat.Outgoing{Text: FormatPost(p)}) {
			w.log.Warn().Str("post_id", p.ID).Msg("forwarding post failed")
		}
		if err := w.publisher.Publish(ctx, queue.Event{
			Kind:   queue.EventPostForwarded,
			Source: p.Source,
			ID:     p.ID,
			Author: p.Author,
			Text:   p.Text,
			At:     time.Now(),
		}); err != nil {
			w.log.Warn().Err(err).Str("post_id", p.ID).Msg("relay event not published")
		}
		w.seen.Add(p.ID)
	}

	if newCount > 0 {
		w.log.Debug().Int("fetched", len(posts)).Int("new", newCount).Int("seen_total", w.seen.Len()).Msg("forward pass")
	}
}

// FormatPost renders a post as a chat message.
func FormatPost(p domain.Post) string {
	return fmt.Sprintf("From: %s\nTweet: %s", p.Author, p.Text)
}
