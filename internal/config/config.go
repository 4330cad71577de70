package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "RELAYBOT_"

var (
	ErrMissingSlackToken   = errors.New("slack.bot_token is required")
	ErrMissingChannel      = errors.New("slack.default_channel_id is required")
	ErrMissingEndpoint     = errors.New("slack endpoint url is required")
	ErrMissingPersonalUser = errors.New("twitter.personal_username is required")
	ErrTTLTooShort         = errors.New("dedup ttl must exceed the fetch window")
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Slack     SlackConfig     `koanf:"slack"`
	Twitter   TwitterConfig   `koanf:"twitter"`
	Transport TransportConfig `koanf:"transport"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Announcer AnnouncerConfig `koanf:"announcer"`
	Server    ServerConfig    `koanf:"server"`
	Queue     QueueConfig     `koanf:"queue"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SlackConfig struct {
	BotToken        string            `koanf:"bot_token"`
	DefaultChannel  string            `koanf:"default_channel_id"`
	PostMessageURL  string            `koanf:"post_message_url"`
	GetMessagesURL  string            `koanf:"get_messages_url"`
	ListChannelsURL string            `koanf:"list_channels_url"`
	DefaultHeaders  map[string]string `koanf:"default_headers"`
	Lookback        time.Duration     `koanf:"lookback"`
	PollInterval    time.Duration     `koanf:"poll_interval"`
	SendRatePerSec  int               `koanf:"send_rate_per_sec"`
}

type TwitterConfig struct {
	APIKey            string              `koanf:"api_key"`
	APIKeySecret      string              `koanf:"api_key_secret"`
	AccessToken       string              `koanf:"access_token"`
	AccessTokenSecret string              `koanf:"access_token_secret"`
	PersonalUsername  string              `koanf:"personal_username"`
	PublishURL        string              `koanf:"publish_url"`
	NitterInstance    string              `koanf:"nitter_instance"`
	Users             map[string][]string `koanf:"users"`
	DefaultCategory   string              `koanf:"default_category"`
	ForwardWindow     time.Duration       `koanf:"forward_window"`
	ContentWindow     time.Duration       `koanf:"content_window"`
	PollInterval      time.Duration       `koanf:"poll_interval"`
	SeedLimit         int                 `koanf:"seed_limit"`
}

// HasCredentials reports whether all four OAuth fields are set.
func (c TwitterConfig) HasCredentials() bool {
	return c.APIKey != "" && c.APIKeySecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

type TransportConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	Delay       time.Duration `koanf:"delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
	Jitter      time.Duration `koanf:"jitter"`
	Timeout     time.Duration `koanf:"timeout"`
}

type DedupConfig struct {
	MessageTTL time.Duration `koanf:"message_ttl"`
	PostTTL    time.Duration `koanf:"post_ttl"`
}

type AnnouncerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

type QueueConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":                "info",
		"log.format":               "console",
		"slack.post_message_url":   "https://slack.com/api/chat.postMessage",
		"slack.get_messages_url":   "https://slack.com/api/conversations.history",
		"slack.list_channels_url":  "https://slack.com/api/conversations.list",
		"slack.lookback":           "5s",
		"slack.poll_interval":      "1s",
		"slack.send_rate_per_sec":  1,
		"twitter.publish_url":      "https://api.twitter.com/2/tweets",
		"twitter.nitter_instance":  "nitter.net",
		"twitter.default_category": "python",
		"twitter.forward_window":   "5m",
		"twitter.content_window":   "1h",
		"twitter.poll_interval":    "1s",
		"twitter.seed_limit":       200,
		"transport.max_attempts":   3,
		"transport.delay":          "2s",
		"transport.max_delay":      "10s",
		"transport.jitter":         "2s",
		"transport.timeout":        "30s",
		"dedup.message_ttl":        "1m",
		"dedup.post_ttl":           "15m",
		"announcer.enabled":        true,
		"announcer.interval":       "1h",
		"queue.topic":              "relaybot.events",
	}
}

// Load reads defaults, then the YAML file at path (skipped when path is empty
// or missing), then a .env file, then RELAYBOT_* environment variables.
// Nested keys in the environment use a double underscore:
// RELAYBOT_SLACK__BOT_TOKEN sets slack.bot_token.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks what the bot cannot start without.
func (c *Config) Validate() error {
	if c.Slack.BotToken == "" {
		return ErrMissingSlackToken
	}
	if c.Slack.DefaultChannel == "" {
		return ErrMissingChannel
	}
	for name, u := range map[string]string{
		"post_message_url":  c.Slack.PostMessageURL,
		"get_messages_url":  c.Slack.GetMessagesURL,
		"list_channels_url": c.Slack.ListChannelsURL,
	} {
		if u == "" {
			return fmt.Errorf("%w: slack.%s", ErrMissingEndpoint, name)
		}
	}
	if c.Twitter.PersonalUsername == "" {
		return ErrMissingPersonalUser
	}
	if c.Dedup.MessageTTL <= c.Slack.Lookback {
		return fmt.Errorf("%w: message_ttl %s <= lookback %s", ErrTTLTooShort, c.Dedup.MessageTTL, c.Slack.Lookback)
	}
	if c.Dedup.PostTTL <= c.Twitter.ForwardWindow {
		return fmt.Errorf("%w: post_ttl %s <= forward_window %s", ErrTTLTooShort, c.Dedup.PostTTL, c.Twitter.ForwardWindow)
	}
	return nil
}
