package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"relaybot/internal/chat"
	"relaybot/internal/domain"
	"relaybot/internal/queue"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []chat.Outgoing
	fail bool
}

func (f *fakeSender) Send(_ context.Context, msg chat.Outgoing) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return !f.fail
}

func (f *fakeSender) Sent() []chat.Outgoing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Outgoing(nil), f.sent...)
}

// fakeHistory returns batches in order and then the last batch forever.
type fakeHistory struct {
	mu      sync.Mutex
	batches [][]domain.Message
	fail    bool
	calls   int
}

func (f *fakeHistory) LatestMessages(context.Context) ([]domain.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, false
	}
	if len(f.batches) == 0 {
		return nil, true
	}
	b := f.batches[0]
	if len(f.batches) > 1 {
		f.batches = f.batches[1:]
	}
	return b, true
}

type fakeSource struct {
	mu      sync.Mutex
	seed    []domain.Post
	seedErr error
	own     []domain.Post
	ownErr  error
	windows []time.Duration
}

func (f *fakeSource) OwnPosts(_ context.Context, window time.Duration) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, window)
	return f.own, f.ownErr
}

func (f *fakeSource) SeedPosts(context.Context) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seed, f.seedErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

var errBoom = errors.New("boom")

func msg(id, text string) domain.Message {
	return domain.Message{ID: id, Text: text}
}
