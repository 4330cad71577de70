package chat

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"relaybot/internal/config"
	"relaybot/internal/domain"
	"relaybot/internal/transport"
)

// Requester is the slice of the transport client the Slack client needs.
type Requester interface {
	PerformRequest(ctx context.Context, method, endpoint string, params url.Values) *transport.Result
}

type Slack struct {
	req     Requester
	cfg     config.SlackConfig
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time
}

type historyResponse struct {
	slack.SlackResponse
	Messages []slack.Message `json:"messages"`
}

type channelsResponse struct {
	slack.SlackResponse
	Channels []slack.Channel `json:"channels"`
}

type postResponse struct {
	slack.SlackResponse
	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
}

func NewSlack(req Requester, cfg config.SlackConfig, log zerolog.Logger) *Slack {
	s := &Slack{
		req: req,
		cfg: cfg,
		log: log.With().Str("component", "slack").Logger(),
		now: time.Now,
	}
	if cfg.SendRatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerSec), cfg.SendRatePerSec+2)
	}
	return s
}

// Headers returns the default request headers plus the bot bearer token.
func Headers(cfg config.SlackConfig) map[string]string {
	h := make(map[string]string, len(cfg.DefaultHeaders)+1)
	for k, v := range cfg.DefaultHeaders {
		h[k] = v
	}
	h["Authorization"] = "Bearer " + cfg.BotToken
	return h
}

// Send posts msg. A thread reply is also broadcast to the channel.
func (s *Slack) Send(ctx context.Context, msg Outgoing) bool {
	channel := msg.Channel
	if channel == "" {
		channel = s.cfg.DefaultChannel
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn().Err(err).Str("channel", channel).Msg("send aborted while rate limited")
			return false
		}
	}

	params := url.Values{
		"channel": {channel},
		"text":    {msg.Text},
	}
	if msg.ThreadTS != "" {
		params.Set("thread_ts", msg.ThreadTS)
		params.Set("reply_broadcast", "true")
	}

	res := s.req.PerformRequest(ctx, http.MethodPost, s.cfg.PostMessageURL, params)
	if res == nil {
		return false
	}

	var ack postResponse
	if err := res.Decode(&ack); err != nil || !ack.Ok {
		s.log.Error().Err(err).Str("channel", channel).Str("slack_error", ack.Error).Msg("message rejected")
		return false
	}

	s.log.Info().Str("channel", channel).Str("ts", ack.Timestamp).Str("text", msg.Text).Msg("message sent")
	return true
}

// LatestMessages returns the default channel messages posted within the
// configured lookback. The bool is false when the fetch failed.
func (s *Slack) LatestMessages(ctx context.Context) ([]domain.Message, bool) {
	oldest := s.now().Add(-s.cfg.Lookback)
	params := url.Values{
		"channel":   {s.cfg.DefaultChannel},
		"inclusive": {"true"},
		"oldest":    {formatTS(oldest)},
	}

	res := s.req.PerformRequest(ctx, http.MethodGet, s.cfg.GetMessagesURL, params)
	if res == nil {
		return nil, false
	}

	var hist historyResponse
	if err := res.Decode(&hist); err != nil {
		s.log.Error().Err(err).Msg("unexpected history response")
		return nil, false
	}
	if !hist.Ok {
		s.log.Error().Str("slack_error", hist.Error).Msg("history request rejected")
		return nil, false
	}

	out := make([]domain.Message, 0, len(hist.Messages))
	for _, m := range hist.Messages {
		if m.Timestamp == "" {
			continue
		}
		out = append(out, domain.Message{
			ID:       m.Timestamp,
			Text:     m.Text,
			ThreadTS: m.ThreadTimestamp,
			User:     m.User,
		})
	}
	return out, true
}

// Channels lists the conversations visible to the bot.
func (s *Slack) Channels(ctx context.Context) ([]slack.Channel, bool) {
	res := s.req.PerformRequest(ctx, http.MethodGet, s.cfg.ListChannelsURL, nil)
	if res == nil {
		return nil, false
	}

	var list channelsResponse
	if err := res.Decode(&list); err != nil || !list.Ok {
		s.log.Error().Err(err).Str("slack_error", list.Error).Msg("channel list rejected")
		return nil, false
	}
	return list.Channels, true
}

// formatTS renders t the way Slack writes message timestamps.
func formatTS(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}
