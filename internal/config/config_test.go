package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
slack:
  bot_token: xoxb-file
  default_channel_id: C0001
twitter:
  personal_username: me
  users:
    python:
      - gvanrossum
      - ThePSF
    go:
      - golang
announcer:
  interval: 30m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "xoxb-file", cfg.Slack.BotToken)
	assert.Equal(t, "https://slack.com/api/chat.postMessage", cfg.Slack.PostMessageURL)
	assert.Equal(t, 5*time.Second, cfg.Slack.Lookback)
	assert.Equal(t, time.Second, cfg.Slack.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Twitter.ForwardWindow)
	assert.Equal(t, time.Hour, cfg.Twitter.ContentWindow)
	assert.Equal(t, "python", cfg.Twitter.DefaultCategory)
	assert.Equal(t, 3, cfg.Transport.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Announcer.Interval)
	assert.True(t, cfg.Announcer.Enabled)
	assert.Equal(t, []string{"gvanrossum", "ThePSF"}, cfg.Twitter.Users["python"])
	assert.Equal(t, []string{"golang"}, cfg.Twitter.Users["go"])
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("RELAYBOT_SLACK__BOT_TOKEN", "xoxb-env")
	t.Setenv("RELAYBOT_TWITTER__SEED_LIMIT", "10")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "xoxb-env", cfg.Slack.BotToken)
	assert.Equal(t, 10, cfg.Twitter.SeedLimit)
	assert.Equal(t, "C0001", cfg.Slack.DefaultChannel)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingSlackToken)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "slack: [unclosed"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{name: "no channel", mutate: func(c *Config) { c.Slack.DefaultChannel = "" }, want: ErrMissingChannel},
		{name: "no endpoint", mutate: func(c *Config) { c.Slack.GetMessagesURL = "" }, want: ErrMissingEndpoint},
		{name: "no personal user", mutate: func(c *Config) { c.Twitter.PersonalUsername = "" }, want: ErrMissingPersonalUser},
		{name: "message ttl below lookback", mutate: func(c *Config) { c.Dedup.MessageTTL = time.Second }, want: ErrTTLTooShort},
		{name: "post ttl below window", mutate: func(c *Config) { c.Dedup.PostTTL = time.Minute }, want: ErrTTLTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestHasCredentials(t *testing.T) {
	c := TwitterConfig{APIKey: "k", APIKeySecret: "s", AccessToken: "t"}
	assert.False(t, c.HasCredentials())
	c.AccessTokenSecret = "ts"
	assert.True(t, c.HasCredentials())
}
