package memory

import (
	"context"
	"slices"
	"sync"
)

// InMemoryDB is a process local DB. Suitable for tests and demos.
type InMemoryDB struct {
	mu        sync.RWMutex
	memories  map[string][]UserMemory              // userID -> memories in insertion order
	summaries map[string]map[string]SessionSummary // userID -> sessionID -> summary
}

// NewInMemoryDB creates an empty InMemoryDB.
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		memories:  make(map[string][]UserMemory),
		summaries: make(map[string]map[string]SessionSummary),
	}
}

// UpsertUserMemory implements DB.
func (d *InMemoryDB) UpsertUserMemory(_ context.Context, m UserMemory) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m.Topics = slices.Clone(m.Topics)

	list := d.memories[m.UserID]
	for i := range list {
		if list[i].ID == m.ID {
			list[i] = m
			return nil
		}
	}

	d.memories[m.UserID] = append(list, m)

	return nil
}

// UserMemories implements DB.
func (d *InMemoryDB) UserMemories(_ context.Context, userID string) ([]UserMemory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := d.memories[userID]
	out := make([]UserMemory, 0, len(list))

	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		m.Topics = slices.Clone(m.Topics)
		out = append(out, m)
	}

	return out, nil
}

// DeleteUserMemory implements DB.
func (d *InMemoryDB) DeleteUserMemory(_ context.Context, userID, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.memories[userID]

	idx := slices.IndexFunc(list, func(m UserMemory) bool { return m.ID == id })
	if idx < 0 {
		return ErrMemoryNotFound
	}

	d.memories[userID] = slices.Delete(list, idx, idx+1)

	return nil
}

// UpsertSummary implements DB.
func (d *InMemoryDB) UpsertSummary(_ context.Context, s SessionSummary) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.summaries[s.UserID]; !ok {
		d.summaries[s.UserID] = make(map[string]SessionSummary)
	}

	s.Topics = slices.Clone(s.Topics)
	d.summaries[s.UserID][s.SessionID] = s

	return nil
}

// Summary implements DB.
func (d *InMemoryDB) Summary(_ context.Context, userID, sessionID string) (SessionSummary, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.summaries[userID][sessionID]

	return s, ok, nil
}

// ClearUser implements DB.
func (d *InMemoryDB) ClearUser(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.memories, userID)
	delete(d.summaries, userID)

	return nil
}
