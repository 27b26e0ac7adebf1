package chatbot

import (
	"context"
	"sync"
	"time"
)

// SessionStore keeps sessions between frames and across reconnects.
// Get returns nil without an error when no live session exists.
type SessionStore interface {
	Get(ctx context.Context, identityID string) (*Session, error)
	Put(ctx context.Context, s Session) error
	Delete(ctx context.Context, identityID string) error
}

// MemoryStore is a process-local SessionStore. Sessions idle longer than ttl
// are dropped on read.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, identityID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[identityID]
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, identityID)
		return nil, nil
	}
	c := s.clone()
	return &c, nil
}

func (m *MemoryStore) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	m.sessions[s.IdentityID] = s.clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, identityID string) error {
	m.mu.Lock()
	delete(m.sessions, identityID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
