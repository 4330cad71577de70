// Package app wires the bot together and supervises its loops.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"relaybot/internal/api"
	"relaybot/internal/bot"
	"relaybot/internal/chat"
	"relaybot/internal/commands"
	"relaybot/internal/config"
	"relaybot/internal/dedup"
	"relaybot/internal/queue"
	"relaybot/internal/scraper"
	"relaybot/internal/social"
	"relaybot/internal/transport"
	"relaybot/internal/worker"
)

type App struct {
	cfg        *config.Config
	log        zerolog.Logger
	slack      *chat.Slack
	content    *social.Content
	events     queue.Publisher
	commands   commands.Snapshot
	messages   *dedup.Set
	posts      *dedup.Set
	poller     *worker.Poller
	forwarder  *worker.Forwarder
	announcer  *worker.Announcer
	server     *api.Server
	publishing bool
	startedAt  time.Time
}

// New builds every component from cfg. Nothing is started.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		cfg:        cfg,
		log:        log.With().Str("component", "app").Logger(),
		messages:   dedup.New(cfg.Dedup.MessageTTL),
		posts:      dedup.New(cfg.Dedup.PostTTL),
		publishing: cfg.Twitter.HasCredentials(),
	}

	client := transport.New(cfg.Transport, log, transport.WithHeaders(chat.Headers(cfg.Slack)))
	a.slack = chat.NewSlack(client, cfg.Slack, log)

	a.content = social.NewContent(scraper.NewNitter(cfg.Twitter.NitterInstance), cfg.Twitter, log)
	twitter := social.NewTwitter(cfg.Twitter, log)

	a.events = queue.Nop{}
	if len(cfg.Queue.Brokers) > 0 {
		k, err := queue.NewKafka(cfg.Queue.Brokers, cfg.Queue.Topic)
		if err != nil {
			return nil, fmt.Errorf("relay events: %w", err)
		}
		a.events = k
		a.log.Info().Strs("brokers", cfg.Queue.Brokers).Str("topic", cfg.Queue.Topic).Msg("relay events enabled")
	}

	reg := commands.NewRegistry(log)
	bot.New(a.slack, a.slack, a.content, twitter, a.events, log).Register(reg)
	a.commands = reg.Entries()

	a.poller = worker.NewPoller(a.slack, a.commands, a.messages, cfg.Slack.PollInterval, log)
	a.forwarder = worker.NewForwarder(a.content, a.slack, a.events, a.posts,
		cfg.Twitter.ForwardWindow, cfg.Twitter.PollInterval, log)
	if cfg.Announcer.Enabled {
		a.announcer = worker.NewAnnouncer(a.slack, cfg.Announcer.Interval, log)
	}
	if cfg.Server.Port != "" {
		a.server = api.NewServer(a, log)
	}

	return a, nil
}

// Run starts the loops and blocks until ctx is cancelled or one of them
// fails.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.events.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing relay events")
		}
	}()

	a.startedAt = time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.guard(gctx, "poller", a.poller.Start))
	g.Go(a.guard(gctx, "forwarder", a.forwarder.Start))
	if a.announcer != nil {
		g.Go(a.guard(gctx, "announcer", a.announcer.Start))
	}
	if a.server != nil {
		addr := a.cfg.Server.Port
		if !strings.Contains(addr, ":") {
			addr = ":" + addr
		}
		g.Go(a.guard(gctx, "status server", func(ctx context.Context) error {
			return a.server.Start(ctx, addr)
		}))
	}

	a.log.Info().
		Str("channel", a.cfg.Slack.DefaultChannel).
		Strs("commands", a.commands.Tokens()).
		Bool("publishing", a.publishing).
		Msg("bot started")

	err := g.Wait()
	if err != nil {
		a.log.Error().Err(err).Msg("bot stopped with error")
		return err
	}
	a.log.Info().Msg("bot stopped")
	return nil
}

// guard runs fn and turns a panic into an error. Cancellation is a clean
// stop.
func (a *App) guard(ctx context.Context, name string, fn func(context.Context) error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				a.log.Error().Str("task", name).Interface("panic", r).Str("stack", string(debug.Stack())).Msg("task panicked")
				err = fmt.Errorf("%s panicked: %v", name, r)
			}
		}()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// Channels lists the channels visible to the bot token.
func (a *App) Channels(ctx context.Context) ([]slack.Channel, bool) {
	return a.slack.Channels(ctx)
}

func (a *App) Status() api.Status {
	return api.Status{
		StartedAt:    a.startedAt,
		Commands:     a.commands.Tokens(),
		Categories:   a.content.Categories(),
		SeenMessages: a.messages.Len(),
		SeenPosts:    a.posts.Len(),
		Publishing:   a.publishing,
	}
}
