package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// UserSnapshot is the serialisable state of one user.
type UserSnapshot[R comparable] struct {
	Count    int            `json:"count"`
	Sessions map[string][]R `json:"sessions"`
}

// Snapshot is a deep copy of a whole store keyed by user id.
type Snapshot[R comparable] map[string]UserSnapshot[R]

// Snapshot copies the current state. Entries are locked one at a time, so a
// snapshot taken under concurrent writes is per-entry consistent only.
func (s *Store[R]) Snapshot() Snapshot[R] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot[R], len(s.users))
	for userID, u := range s.users {
		us := UserSnapshot[R]{Sessions: make(map[string][]R, len(u.sessions))}
		for sessionID, e := range u.sessions {
			e.mu.Lock()
			us.Sessions[sessionID] = slices.Clone(e.records)
			e.mu.Unlock()
		}

		u.mu.Lock()
		us.Count = u.count
		u.mu.Unlock()

		snap[userID] = us
	}

	return snap
}

// Restore replaces the whole store content with snap.
func (s *Store[R]) Restore(snap Snapshot[R]) error {
	users := make(map[string]*userState[R], len(snap))
	for userID, us := range snap {
		if us.Count < 0 {
			return fmt.Errorf("restore user %s: negative counter %d", userID, us.Count)
		}

		u := &userState[R]{count: us.Count, sessions: make(map[string]*entry[R], len(us.Sessions))}
		for sessionID, recs := range us.Sessions {
			if recs == nil {
				recs = []R{}
			}

			for i, rec := range recs {
				if slices.Index(recs, rec) != i {
					return fmt.Errorf("restore user %s session %s: duplicate record %s", userID, sessionID, Describe(rec))
				}
			}

			u.sessions[sessionID] = &entry[R]{records: slices.Clone(recs)}
		}

		users[userID] = u
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	s.logger.Info("state.restore", "users", len(users))

	return nil
}

// Persister stores opaque snapshots under a name.
type Persister interface {
	SaveState(ctx context.Context, name string, data []byte) error
	// LoadState returns ErrSnapshotNotFound (possibly wrapped) when nothing was saved.
	LoadState(ctx context.Context, name string) ([]byte, error)
}

// Save writes a JSON snapshot of s through p.
func Save[R comparable](ctx context.Context, p Persister, name string, s *Store[R]) error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := p.SaveState(ctx, name, data); err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}

	return nil
}

// Load restores s from the snapshot saved under name. It reports false when
// there is no snapshot yet, leaving s unchanged.
func Load[R comparable](ctx context.Context, p Persister, name string, s *Store[R]) (bool, error) {
	data, err := p.LoadState(ctx, name)
	if errors.Is(err, ErrSnapshotNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("load snapshot %q: %w", name, err)
	}

	var snap Snapshot[R]
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, fmt.Errorf("unmarshal snapshot %q: %w", name, err)
	}

	if err := s.Restore(snap); err != nil {
		return false, err
	}

	return true, nil
}

// MemoryPersister keeps snapshots in process memory. Useful in tests.
type MemoryPersister struct {
	data map[string][]byte
}

// NewMemoryPersister creates an empty MemoryPersister. It is not safe for
// concurrent use.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: map[string][]byte{}}
}

// SaveState implements Persister.
func (m *MemoryPersister) SaveState(_ context.Context, name string, data []byte) error {
	m.data[name] = slices.Clone(data)
	return nil
}

// LoadState implements Persister.
func (m *MemoryPersister) LoadState(_ context.Context, name string) ([]byte, error) {
	d, ok := m.data[name]
	if !ok {
		return nil, ErrSnapshotNotFound
	}

	return slices.Clone(d), nil
}
