package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaybot/internal/config"
)

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>me / Nitter</title><link>https://nitter.example/me</link></channel></rss>`

type fakeBackend struct {
	server *httptest.Server

	mu     sync.Mutex
	posted []url.Values
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		b.mu.Lock()
		b.posted = append(b.posted, r.PostForm)
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C1", "ts": "1700000009.000100"})
	})
	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"messages":[{"ts":"1700000000.000100","text":"!now","user":"U1"},{"ts":"1700000000.000200","text":"chatter"}]}`)
	})
	mux.HandleFunc("/conversations.list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"channels":[{"id":"C1","name":"general"}]}`)
	})
	mux.HandleFunc("/me/rss", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, emptyFeed)
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) Posted() []url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]url.Values(nil), b.posted...)
}

func testConfig(base string) *config.Config {
	return &config.Config{
		Slack: config.SlackConfig{
			BotToken:        "xoxb-test",
			DefaultChannel:  "C1",
			PostMessageURL:  base + "/chat.postMessage",
			GetMessagesURL:  base + "/conversations.history",
			ListChannelsURL: base + "/conversations.list",
			Lookback:        5 * time.Second,
			PollInterval:    10 * time.Millisecond,
		},
		Twitter: config.TwitterConfig{
			PersonalUsername: "me",
			NitterInstance:   base,
			Users:            map[string][]string{"python": {"me"}},
			DefaultCategory:  "python",
			ForwardWindow:    5 * time.Minute,
			ContentWindow:    time.Hour,
			PollInterval:     10 * time.Millisecond,
		},
		Transport: config.TransportConfig{
			MaxAttempts: 1,
			Delay:       10 * time.Millisecond,
			Timeout:     2 * time.Second,
		},
		Dedup: config.DedupConfig{MessageTTL: time.Minute, PostTTL: 15 * time.Minute},
	}
}

func TestRunAnswersCommandsAndStopsCleanly(t *testing.T) {
	b := newFakeBackend(t)
	a, err := New(testConfig(b.server.URL), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(b.Posted()) >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	posted := b.Posted()
	require.Len(t, posted, 1, "!now is answered once")
	assert.True(t, strings.HasPrefix(posted[0].Get("text"), "Current time - "))
	assert.Equal(t, "1700000000.000100", posted[0].Get("thread_ts"))
	assert.Equal(t, "true", posted[0].Get("reply_broadcast"))

	st := a.Status()
	assert.Equal(t, 1, st.SeenMessages)
	assert.Equal(t, []string{"python"}, st.Categories)
	assert.Contains(t, st.Commands, "!tweet")
	assert.False(t, st.Publishing)
	assert.False(t, st.StartedAt.IsZero())
}

func TestChannels(t *testing.T) {
	b := newFakeBackend(t)
	a, err := New(testConfig(b.server.URL), zerolog.Nop())
	require.NoError(t, err)

	channels, ok := a.Channels(context.Background())
	require.True(t, ok)
	require.Len(t, channels, 1)
	assert.Equal(t, "general", channels[0].Name)
}

func TestGuard(t *testing.T) {
	a := &App{log: zerolog.Nop()}
	ctx := context.Background()

	err := a.guard(ctx, "boom", func(context.Context) error { panic("bad") })()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom panicked")

	err = a.guard(ctx, "cancel", func(context.Context) error { return context.Canceled })()
	assert.NoError(t, err)

	failure := errors.New("listen failed")
	err = a.guard(ctx, "server", func(context.Context) error { return failure })()
	assert.ErrorIs(t, err, failure)
}

func TestOptionalComponents(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, a.announcer)
	assert.Nil(t, a.server)

	cfg.Announcer = config.AnnouncerConfig{Enabled: true, Interval: time.Hour}
	cfg.Server.Port = "0"
	a, err = New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, a.announcer)
	assert.NotNil(t, a.server)
}
