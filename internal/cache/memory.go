package cache

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps snapshots as marshaled JSON documents, matching the
// keyspace convention the Postgres store persists. Storing bytes rather
// than structs keeps the two implementations interchangeable byte for byte.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, slackUserID string) (Snapshot, error) {
	s.mu.RLock()
	data, ok := s.entries[slackUserID]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotCached
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func (s *MemoryStore) Set(_ context.Context, snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[snapshot.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, slackUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[slackUserID]; !ok {
		return ErrNotCached
	}
	delete(s.entries, slackUserID)
	return nil
}

// Len reports the number of cached entries. Tests use it.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
