package conversation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	flow     string
	sessions map[int64]*Session
	now      func() time.Time
}

// NewMemoryStore creates an empty store for the named flow
func NewMemoryStore(flow string) *MemoryStore {
	return &MemoryStore{
		flow:     flow,
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.now = now
}

// Begin creates a fresh session for ownerID
func (m *MemoryStore) Begin(ctx context.Context, ownerID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := &Session{
		OwnerID:   ownerID,
		Flow:      m.flow,
		StartedAt: now,
		UpdatedAt: now,
	}
	m.sessions[ownerID] = s
	return s.clone(), nil
}

// Get returns a copy of the session for ownerID, or nil
func (m *MemoryStore) Get(ctx context.Context, ownerID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[ownerID]
	if !ok {
		return nil, nil
	}
	return s.clone(), nil
}

// Advance records an answer and increments the step index
func (m *MemoryStore) Advance(ctx context.Context, ownerID int64, key string, value any) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[ownerID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	s.Answers.Set(key, value)
	s.StepIndex++
	s.UpdatedAt = m.now()
	return s.clone(), nil
}

// End removes the session for ownerID
func (m *MemoryStore) End(ctx context.Context, ownerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, ownerID)
	return nil
}

// Len returns the number of in-flight sessions
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
