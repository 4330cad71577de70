// Package commands maps command tokens to handlers.
//
// Registrations happen at startup; Entries returns the snapshot the poller
// works from. Tokens are not required to be unique: when two entries share a
// token the first registered one matches and consumes the message.
package commands

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"relaybot/internal/domain"
)

// Request is what a handler receives for a matched message. Arg is nil when
// nothing follows the token.
type Request struct {
	Message domain.Message
	Command string
	Arg     *string
	ID      string
}

// ArgOr returns the argument or def when it is absent.
func (r Request) ArgOr(def string) string {
	if r.Arg == nil {
		return def
	}
	return *r.Arg
}

type Handler func(ctx context.Context, req Request) error

type Entry struct {
	Tokens  []string
	Handler Handler
}

type Registry struct {
	entries []Entry
	seen    map[string]bool
	log     zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		seen: map[string]bool{},
		log:  log.With().Str("component", "commands").Logger(),
	}
}

// Register appends an entry. Blank tokens are dropped; an entry without
// tokens or handler is ignored.
func (r *Registry) Register(tokens []string, h Handler) {
	if h == nil {
		return
	}
	clean := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if r.seen[t] {
			r.log.Warn().Str("command", t).Msg("command token registered twice, first registration wins")
		}
		r.seen[t] = true
		clean = append(clean, t)
	}
	if len(clean) == 0 {
		return
	}
	r.entries = append(r.entries, Entry{Tokens: clean, Handler: h})
}

// Entries returns a copy of the registrations in registration order.
func (r *Registry) Entries() Snapshot {
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = Entry{Tokens: append([]string(nil), e.Tokens...), Handler: e.Handler}
	}
	return out
}

// Snapshot is an immutable view of the registry.
type Snapshot []Entry

// Match returns the first entry, in registration order, with a token that
// prefixes text.
func (s Snapshot) Match(text string) (Entry, string, bool) {
	for _, e := range s {
		for _, t := range e.Tokens {
			if strings.HasPrefix(text, t) {
				return e, t, true
			}
		}
	}
	return Entry{}, "", false
}

// Tokens lists every registered token in order.
func (s Snapshot) Tokens() []string {
	var out []string
	for _, e := range s {
		out = append(out, e.Tokens...)
	}
	return out
}

// Argument strips token from text and returns the trimmed rest, or nil when
// nothing is left.
func Argument(text, token string) *string {
	rest := strings.TrimSpace(strings.TrimPrefix(text, token))
	if rest == "" {
		return nil
	}
	return &rest
}
