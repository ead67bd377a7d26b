// Package inmem provides an in-memory implementation of conversation.Store.
//
// It is intended for tests and local development. Production deployments
// should use a durable implementation (for example features/conversation/mongo
// or features/conversation/redis).
package inmem

import (
	"context"
	"errors"
	"sync"

	"goa.design/plankit/runtime/conversation"
)

// Store is an in-memory implementation of conversation.Store. It is safe
// for concurrent use.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*conversation.Snapshot
}

// New returns an empty Store.
func New() *Store {
	return &Store{snapshots: make(map[string]*conversation.Snapshot)}
}

// Save implements conversation.Store.
func (s *Store) Save(_ context.Context, snap *conversation.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return errors.New("snapshot id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.snapshots[snap.ID]; ok && existing.Version >= snap.Version {
		return conversation.ErrStaleSnapshot
	}
	s.snapshots[snap.ID] = snap
	return nil
}

// Load implements conversation.Store.
func (s *Store) Load(_ context.Context, id string) (*conversation.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return snap, nil
}

// Delete implements conversation.Store.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	return nil
}
