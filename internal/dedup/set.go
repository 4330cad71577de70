// Package dedup holds identifiers a loop has already handled. Entries expire
// after a TTL so the set stays bounded by what the fetch window can return
// again.
package dedup

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Set struct {
	items *expirable.LRU[string, struct{}]
}

// New returns a set whose entries expire ttl after insertion. ttl <= 0 keeps
// entries for the process lifetime.
func New(ttl time.Duration) *Set {
	if ttl < 0 {
		ttl = 0
	}
	return &Set{items: expirable.NewLRU[string, struct{}](0, nil, ttl)}
}

// Has reports whether id is recorded and not expired.
func (s *Set) Has(id string) bool {
	_, ok := s.items.Get(id)
	return ok
}

// Add records id. It returns false when id was already present, in which case
// the original entry and its expiry are left untouched.
func (s *Set) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	s.items.Add(id, struct{}{})
	return true
}

func (s *Set) Len() int {
	return s.items.Len()
}
