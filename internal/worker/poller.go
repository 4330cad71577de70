package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"relaybot/internal/chat"
	"relaybot/internal/commands"
	"relaybot/internal/dedup"
	"relaybot/internal/domain"
)

// Poller watches the channel for command messages and runs their handlers.
type Poller struct {
	history  chat.History
	commands commands.Snapshot
	seen     *dedup.Set
	interval time.Duration
	log      zerolog.Logger
}

func NewPoller(h chat.History, cmds commands.Snapshot, seen *dedup.Set, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		history:  h,
		commands: cmds,
		seen:     seen,
		interval: interval,
		log:      log.With().Str("component", "poller").Logger(),
	}
}

func (w *Poller) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info().Strs("commands", w.commands.Tokens()).Dur("interval", w.interval).Msg("message poller started")

	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("message poller stopped")
			return nil
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// Seen returns how many message ids are currently recorded.
func (w *Poller) Seen() int {
	return w.seen.Len()
}

func (w *Poller) poll(ctx context.Context) {
	messages, ok := w.history.LatestMessages(ctx)
	if !ok || len(messages) == 0 {
		return
	}

	for _, msg := range messages {
		if w.seen.Has(msg.ID) {
			continue
		}
		entry, token, ok := w.commands.Match(msg.Text)
		if !ok {
			continue
		}

		w.dispatch(ctx, msg, entry, token)
		w.seen.Add(msg.ID)
	}
}

// dispatch runs one handler. Errors and panics are logged and swallowed so
// a single bad command cannot stop the loop.
func (w *Poller) dispatch(ctx context.Context, msg domain.Message, entry commands.Entry, token string) {
	req := commands.Request{
		Message: msg,
		Command: token,
		Arg:     commands.Argument(msg.Text, token),
		ID:      uuid.NewString(),
	}
	log := w.log.With().Str("command", token).Str("message_id", msg.ID).Str("req_id", req.ID).Logger()
	log.Info().Msg("command received")

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("command handler panicked")
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return entry.Handler(ctx, req)
	}()
	if err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("command failed")
		return
	}
	log.Debug().Dur("took", time.Since(start)).Msg("command handled")
}
