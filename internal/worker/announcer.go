package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"relaybot/internal/chat"
)

const announceLayout = "Current time - 02/01/2006 15:04:05 (Scheduled hourly timer)"

// Announcer posts the current time once at start and then every interval.
type Announcer struct {
	sender   chat.Sender
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewAnnouncer(s chat.Sender, interval time.Duration, log zerolog.Logger) *Announcer {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Announcer{
		sender:   s,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "announcer").Logger(),
	}
}

func (a *Announcer) Start(ctx context.Context) error {
	c := cron.New()
	c.Schedule(cron.Every(a.interval), cron.FuncJob(func() { a.announce(ctx) }))

	a.announce(ctx)
	c.Start()
	a.log.Info().Dur("interval", a.interval).Msg("announcer started")

	<-ctx.Done()
	<-c.Stop().Done()
	a.log.Info().Msg("announcer stopped")
	return nil
}

func (a *Announcer) announce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	text := a.now().Format(announceLayout)
	if !a.sender.Send(ctx, chat.Outgoing{Text: text}) {
		a.log.Warn().Msg("scheduled announcement not sent")
	}
}
