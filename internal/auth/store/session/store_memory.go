package session

import (
	"context"
	"sync"

	"joblinker/internal/auth/models"
)

// InMemorySessionStore holds the single client-side session record for this
// process. Every mutation is a synchronous merge under the lock, so readers
// never observe a torn record.
type InMemorySessionStore struct {
	mu      sync.RWMutex
	current models.Session
	changed chan struct{}
}

// New constructs a store holding the initial unauthenticated record.
func New() *InMemorySessionStore {
	return &InMemorySessionStore{changed: make(chan struct{})}
}

// SetCredentials merges a partial update into the record. No validation is
// performed; callers supply a consistent partial.
func (s *InMemorySessionStore) SetCredentials(update models.SessionUpdate) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = update.Apply(s.current)
	s.notifyLocked()
	return s.current
}

// ClearCredentials resets the record to the initial unauthenticated state.
func (s *InMemorySessionStore) ClearCredentials() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = models.Session{}
	s.notifyLocked()
}

// SetCredentialsIf merges update only while the record still holds token.
// When another writer replaced the token in between, it only ends the
// transitional state and reports false.
func (s *InMemorySessionStore) SetCredentialsIf(token string, update models.SessionUpdate) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := s.current.AccessToken == token
	if !applied {
		update = models.Settled()
	}
	s.current = update.Apply(s.current)
	s.notifyLocked()
	return s.current, applied
}

// ClearCredentialsIf resets the record only while it still holds token,
// with the same fallback as SetCredentialsIf.
func (s *InMemorySessionStore) ClearCredentialsIf(token string) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := s.current.AccessToken == token
	if cleared {
		s.current = models.Session{}
	} else {
		s.current = models.Settled().Apply(s.current)
	}
	s.notifyLocked()
	return s.current, cleared
}

// CurrentUser returns a snapshot of the record. Safe before first bootstrap.
func (s *InMemorySessionStore) CurrentUser() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Changed returns a channel closed on the next mutation.
func (s *InMemorySessionStore) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// WaitSettled blocks until no refresh is in flight and returns that snapshot.
func (s *InMemorySessionStore) WaitSettled(ctx context.Context) (models.Session, error) {
	for {
		s.mu.RLock()
		current, changed := s.current, s.changed
		s.mu.RUnlock()
		if !current.IsRefreshing {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-changed:
		}
	}
}

func (s *InMemorySessionStore) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
