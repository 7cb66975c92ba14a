package core

import (
	"maps"
	"sync"
	"time"
)

// Session is the in-run view of a conversation: key/value state plus the
// ordered events of the current and loaded prior turns. It is safe for
// concurrent use, which matters because tool calls run in parallel.
type Session struct {
	ID      string         `json:"id"`
	UserID  string         `json:"user_id"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`

	mu sync.RWMutex
}

// NewSession creates an empty session.
func NewSession(userID, id string) *Session {
	now := time.Now()

	return &Session{
		ID:      id,
		UserID:  userID,
		State:   map[string]any{},
		Events:  []Event{},
		Created: now,
		Updated: now,
	}
}

// GetState returns the value stored under key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.State[key]

	return v, ok
}

// SetState stores value under key.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.State[key] = value
	s.Updated = time.Now()
}

// ApplyStateDelta merges delta into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.State, delta)
	s.Updated = time.Now()
}

// AddEvent appends ev to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Events = append(s.Events, ev)
	s.Updated = time.Now()
}

// GetEvents returns a copy of the history.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]Event, len(s.Events))
	copy(events, s.Events)

	return events
}

// GetConversationHistory returns the complete user, assistant and tool events
// in order, skipping partial fragments.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Event, 0, len(s.Events))

	for _, ev := range s.Events {
		if ev.Content == nil || ev.IsPartial() {
			continue
		}

		switch ev.Content.Role {
		case "user", "assistant", "tool":
			res = append(res, ev)
		}
	}

	return res
}

// Clone returns a deep copy of maps and slices.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Session{
		ID:      s.ID,
		UserID:  s.UserID,
		State:   maps.Clone(s.State),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	copy(c.Events, s.Events)

	if c.State == nil {
		c.State = map[string]any{}
	}

	return c
}
