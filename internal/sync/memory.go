package sync

import (
	"context"
	"sort"
	sys "sync"
)

// MemoryAssociations is an in-memory AssociationStore for tests and the
// single-node development mode.
type MemoryAssociations struct {
	mu   sys.Mutex
	rows []Association
}

func NewMemoryAssociations() *MemoryAssociations {
	return &MemoryAssociations{}
}

func (m *MemoryAssociations) FindBySlackID(ctx context.Context, slackID string) (Association, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.SlackID == slackID {
			return row, nil
		}
	}
	return Association{}, ErrNoAssociation
}

func (m *MemoryAssociations) FindByUserID(ctx context.Context, userID int64) (Association, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.UserID == userID {
			return row, nil
		}
	}
	return Association{}, ErrNoAssociation
}

func (m *MemoryAssociations) Create(ctx context.Context, association Association) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, association)
	return nil
}

func (m *MemoryAssociations) DeleteByUserID(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, row := range m.rows {
		if row.UserID != userID {
			kept = append(kept, row)
		}
	}
	m.rows = kept
	return nil
}

func (m *MemoryAssociations) List(ctx context.Context) ([]Association, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Association, len(m.rows))
	copy(out, m.rows)
	sort.Slice(out, func(i, j int) bool { return out[i].SlackID < out[j].SlackID })
	return out, nil
}
