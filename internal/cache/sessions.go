package cache

import (
	"time"

	"ctalara/internal/core"
)

// SessionStore keeps the last selection of every browser session. Each
// session has its own entry; values are cloned on the way in and out so no
// two requests ever share a selection's slices or maps.
type SessionStore struct {
	entries *LRUCache[core.Selection]
}

// NewSessionStore keeps up to maxSessions selections, each expiring after
// ttl without use.
func NewSessionStore(maxSessions int, ttl time.Duration) *SessionStore {
	return &SessionStore{entries: NewLRUCache[core.Selection](maxSessions, ttl)}
}

// Load returns the stored selection of session id.
func (s *SessionStore) Load(id string) (core.Selection, bool) {
	if id == "" {
		return core.Selection{}, false
	}
	sel, ok := s.entries.Get(id)
	if !ok {
		return core.Selection{}, false
	}
	return sel.Clone(), true
}

// Save stores sel as the current selection of session id.
func (s *SessionStore) Save(id string, sel core.Selection) {
	if id == "" {
		return
	}
	s.entries.Set(id, sel.Clone())
}

// Forget drops session id.
func (s *SessionStore) Forget(id string) {
	s.entries.Delete(id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.entries.Size()
}

// CleanExpired implements Cleaner.
func (s *SessionStore) CleanExpired() int {
	return s.entries.CleanExpired()
}
