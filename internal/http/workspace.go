package http

import (
	"sync"
	"time"

	"bilancio/internal/service"
)

// stagingStore keeps the not-yet-persisted workspace of each session in
// memory. An upload stages its merged set here; the dashboard renders
// from it until the user saves or the entry expires.
type stagingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*stagedEntry
}

type stagedEntry struct {
	workspace service.Workspace
	expiresAt time.Time
}

func newStagingStore(ttl time.Duration) *stagingStore {
	return &stagingStore{
		ttl:     ttl,
		entries: make(map[string]*stagedEntry),
	}
}

func (s *stagingStore) Get(token string) (service.Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return service.Workspace{}, false
	}
	if time.Now().After(e.expiresAt) {
		delete(s.entries, token)
		return service.Workspace{}, false
	}
	return e.workspace, true
}

func (s *stagingStore) Set(token string, ws service.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = &stagedEntry{workspace: ws, expiresAt: time.Now().Add(s.ttl)}
}

func (s *stagingStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
}

// CleanExpired removes all expired entries and returns how many it dropped.
func (s *stagingStore) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for token, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, token)
			removed++
		}
	}
	return removed
}
