package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory EventStore. It backs tests and serves as
// the default backend when no database is configured. Exported error
// fields allow tests to inject failures.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*Event
	order  []uuid.UUID // insertion order, oldest first

	// Error injection for tests.
	CreateError         error
	GetError            error
	RecentDropoffsError error
	UpdateError         error
	ListError           error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[uuid.UUID]*Event),
	}
}

func (m *MemoryStore) Create(ctx context.Context, event *Event) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *event
	m.events[event.ID] = &clone
	m.order = append(m.order, event.ID)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	event, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *event
	return &clone, nil
}

func (m *MemoryStore) RecentDropoffs(ctx context.Context, limit int) ([]DropoffRef, error) {
	if m.RecentDropoffsError != nil {
		return nil, m.RecentDropoffsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := m.dropoffRefsLocked()
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

func (m *MemoryStore) AllDropoffs(ctx context.Context) ([]DropoffRef, error) {
	if m.RecentDropoffsError != nil {
		return nil, m.RecentDropoffsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dropoffRefsLocked(), nil
}

// dropoffRefsLocked returns drop-off refs newest first. Callers must
// hold at least a read lock.
func (m *MemoryStore) dropoffRefsLocked() []DropoffRef {
	var refs []DropoffRef
	for _, id := range m.order {
		event := m.events[id]
		if event.Kind != KindDropoff {
			continue
		}
		refs = append(refs, DropoffRef{
			ID:        event.ID,
			Embedding: event.Embedding,
			Timestamp: event.Timestamp,
		})
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Timestamp.After(refs[j].Timestamp)
	})
	return refs
}

func (m *MemoryStore) UpdateMatchResult(ctx context.Context, id uuid.UUID, match *MatchResult, alertSent bool) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[id]
	if !ok {
		return ErrNotFound
	}
	clone := *match
	event.Match = &clone
	event.AlertSent = alertSent
	return nil
}

func (m *MemoryStore) List(ctx context.Context, limit, offset int) ([]Event, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first.
	var events []Event
	for i := len(m.order) - 1; i >= 0; i-- {
		events = append(events, *m.events[m.order[i]])
	}

	if offset >= len(events) {
		return nil, nil
	}
	events = events[offset:]
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

var _ EventStore = (*MemoryStore)(nil)
