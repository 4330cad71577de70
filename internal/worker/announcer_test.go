package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncerSendsOnStart(t *testing.T) {
	s := &fakeSender{}
	a := NewAnnouncer(s, time.Hour, zerolog.Nop())
	a.now = func() time.Time { return time.Date(2024, 5, 3, 9, 4, 5, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	assert.Eventually(t, func() bool { return len(s.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("announcer did not stop")
	}

	sent := s.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Current time - 03/05/2024 09:04:05 (Scheduled hourly timer)", sent[0].Text)
}

func TestAnnouncerSkipsAfterCancel(t *testing.T) {
	s := &fakeSender{}
	a := NewAnnouncer(s, 0, zerolog.Nop())
	assert.Equal(t, time.Hour, a.interval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.announce(ctx)
	assert.Empty(t, s.Sent())
}
