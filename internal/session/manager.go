package session

import (
	"context"
	"fmt"
	"sync"
)

// Manager serializes every read-modify-write of one user's session.
type Manager struct {
	store Store
	locks *keyedMutex
}

// NewManager creates a Manager over store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, locks: newKeyedMutex()}
}

// Get returns a snapshot of the user's session.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	unlock := m.locks.lock(userID)
	defer unlock()
	return m.store.Load(ctx, userID)
}

// Update loads the session, applies fn and saves the result. When fn fails
// nothing is saved and the unmodified session is returned with the error.
func (m *Manager) Update(ctx context.Context, userID string, fn func(*Session) error) (*Session, error) {
	unlock := m.locks.lock(userID)
	defer unlock()

	cur, err := m.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	work := cur.Clone()
	if err := fn(work); err != nil {
		return cur, err
	}

	if err := m.store.Save(ctx, work); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return work, nil
}

// Reset forces the user's session back to idle.
func (m *Manager) Reset(ctx context.Context, userID string) (*Session, error) {
	return m.Update(ctx, userID, func(s *Session) error {
		s.Reset()
		return nil
	})
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
