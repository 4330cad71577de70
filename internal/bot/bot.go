// Package bot holds the chat-facing command handlers.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"relaybot/internal/chat"
	"relaybot/internal/commands"
	"relaybot/internal/domain"
	"relaybot/internal/queue"
	"relaybot/internal/social"
	"relaybot/internal/worker"
)

const (
	nowLayout       = "Current time - 02/01/2006 15:04:05"
	fallbackContent = "python"
)

// ContentSource answers `!new-content` queries.
type ContentSource interface {
	HasCategory(name string) bool
	DefaultCategory() string
	LatestPosts(ctx context.Context, category string) ([]domain.Post, error)
}

type Bot struct {
	sender    chat.Sender
	directory chat.Directory
	content   ContentSource
	publisher social.Publisher
	events    queue.Publisher
	tokens    func() []string
	now       func() time.Time
	log       zerolog.Logger
}

func New(s chat.Sender, dir chat.Directory, content ContentSource, pub social.Publisher, events queue.Publisher, log zerolog.Logger) *Bot {
	if events == nil {
		events = queue.Nop{}
	}
	return &Bot{
		sender:    s,
		directory: dir,
		content:   content,
		publisher: pub,
		events:    events,
		tokens:    func() []string { return nil },
		now:       time.Now,
		log:       log.With().Str("component", "bot").Logger(),
	}
}

// Register adds every command of the bot to reg.
func (b *Bot) Register(reg *commands.Registry) {
	reg.Register([]string{"!now"}, b.handleNow)
	reg.Register([]string{"!new-content"}, b.handleNewContent)
	reg.Register([]string{"!tweet"}, b.handleTweet)
	reg.Register([]string{"!channels"}, b.handleChannels)
	reg.Register([]string{"!help"}, b.handleHelp)
	b.tokens = func() []string { return reg.Entries().Tokens() }
}

func (b *Bot) say(ctx context.Context, text string) {
	if !b.sender.Send(ctx, chat.Outgoing{Text: text}) {
		b.log.Warn().Msg("reply not delivered")
	}
}

func (b *Bot) handleNow(ctx context.Context, req commands.Request) error {
	ok := b.sender.Send(ctx, chat.Outgoing{
		Text:     b.now().Format(nowLayout),
		ThreadTS: req.Message.ID,
	})
	if !ok {
		return errors.New("current time not delivered")
	}
	return nil
}

func (b *Bot) handleNewContent(ctx context.Context, req commands.Request) error {
	def := b.content.DefaultCategory()
	if def == "" {
		def = fallbackContent
	}
	category := req.ArgOr(def)

	if !b.content.HasCategory(category) {
		b.say(ctx, fmt.Sprintf("Invalid language - '%s'", category))
		return nil
	}

	b.say(ctx, fmt.Sprintf("Searching new content for %s...", category))

	posts, err := b.content.LatestPosts(ctx, category)
	if err != nil {
		b.say(ctx, fmt.Sprintf("There is no new content for %s", category))
		return fmt.Errorf("latest posts for %s: %w", category, err)
	}
	if len(posts) == 0 {
		b.say(ctx, fmt.Sprintf("There is no new content for %s", category))
		return nil
	}
	for _, p := range posts {
		b.say(ctx, worker.FormatPost(p))
	}
	b.log.Debug().Str("category", category).Int("posts", len(posts)).Msg("content delivered")
	return nil
}

func (b *Bot) handleTweet(ctx context.Context, req commands.Request) error {
	if req.Arg == nil {
		b.say(ctx, "Please provide a message after !tweet.")
		return nil
	}
	text := *req.Arg

	if !b.publisher.Publish(ctx, text) {
		b.say(ctx, "Didn't manage to publish a new tweet.")
		return nil
	}

	b.say(ctx, fmt.Sprintf("The tweet '%s' has been published successfully.", text))
	if err := b.events.Publish(ctx, queue.Event{
		Kind:   queue.EventTweetPublished,
		Source: domain.SourceTwitter,
		Author: req.Message.User,
		Text:   text,
		At:     b.now(),
	}); err != nil {
		b.log.Warn().Err(err).Msg("relay event not published")
	}
	return nil
}

func (b *Bot) handleChannels(ctx context.Context, _ commands.Request) error {
	channels, ok := b.directory.Channels(ctx)
	if !ok {
		b.say(ctx, "Couldn't list channels.")
		return nil
	}
	if len(channels) == 0 {
		b.say(ctx, "No channels visible.")
		return nil
	}

	names := make([]string, 0, len(channels))
	for _, c := range channels {
		names = append(names, "#"+c.Name)
	}
	b.say(ctx, "Channels: "+strings.Join(names, ", "))
	return nil
}

func (b *Bot) handleHelp(ctx context.Context, _ commands.Request) error {
	b.say(ctx, "Available commands: "+strings.Join(b.tokens(), ", "))
	return nil
}
