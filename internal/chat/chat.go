package chat

import (
	"context"

	"github.com/slack-go/slack"

	"relaybot/internal/domain"
)

// Outgoing is a message to post. Empty Channel means the default channel.
type Outgoing struct {
	Channel  string
	Text     string
	ThreadTS string
}

type Sender interface {
	Send(ctx context.Context, msg Outgoing) bool
}

type History interface {
	LatestMessages(ctx context.Context) ([]domain.Message, bool)
}

type Directory interface {
	Channels(ctx context.Context) ([]slack.Channel, bool)
}
