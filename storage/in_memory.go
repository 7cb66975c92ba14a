package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// InMemory is a volatile Store keeping runs in a process local map. Returned
// runs are copies, so callers cannot mutate stored history.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string][]Run
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string][]Run)}
}

// AppendRun implements Store.
func (s *InMemory) AppendRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ToolCalls = slices.Clone(run.ToolCalls)
	s.sessions[run.SessionID] = append(s.sessions[run.SessionID], run)

	return nil
}

// Runs implements Store.
func (s *InMemory) Runs(_ context.Context, sessionID string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := Tail(s.sessions[sessionID], limit)

	out := make([]Run, len(runs))
	for i, r := range runs {
		r.ToolCalls = slices.Clone(r.ToolCalls)
		out[i] = r
	}

	return out, nil
}

// Sessions implements Store.
func (s *InMemory) Sessions(_ context.Context, userID string) ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := []SessionInfo{}

	for id, runs := range s.sessions {
		if len(runs) == 0 || runs[0].UserID != userID {
			continue
		}

		last := runs[len(runs)-1]
		infos = append(infos, SessionInfo{
			SessionID: id,
			UserID:    userID,
			Owner:     last.Owner,
			Runs:      len(runs),
			UpdatedAt: last.CreatedAt,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].SessionID < infos[j].SessionID
		}

		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})

	return infos, nil
}

// DeleteSession implements Store.
func (s *InMemory) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}

	delete(s.sessions, sessionID)

	return nil
}

// Close implements Store.
func (s *InMemory) Close() error { return nil }
