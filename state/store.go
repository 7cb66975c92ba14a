// Package state implements the per-user, per-session record store that tools
// mutate on behalf of an agent or team.
//
// The store is keyed first by user id, then by session id, and holds an
// ordered list of comparable records for each pair plus one running mutation
// counter per user. Lists must be initialised with InitSession before any
// mutator touches them; an uninitialised pair is reported as ErrNotFound and
// is never created on the fly. An initialised but empty list is a valid,
// distinct state.
//
// Concurrency: structural changes (new users and sessions) take the store
// write lock, list mutations lock only the affected entry and counter updates
// lock only the affected user, always in entry -> user order.
package state

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Yaaesthetic/agno/logging"
)

// MutationObserver is notified after every mutator call. Outcome is "ok" or
// the short name of the failure ("not_found", "duplicate", "record_not_found").
type MutationObserver interface {
	ObserveStoreMutation(op, outcome string)
}

// Options configures a Store.
type Options struct {
	Logger   logging.Logger
	Observer MutationObserver
}

type entry[R comparable] struct {
	mu      sync.Mutex
	records []R
}

type userState[R comparable] struct {
	mu       sync.Mutex
	count    int
	sessions map[string]*entry[R]
}

// Store holds ordered records per user and session.
type Store[R comparable] struct {
	mu       sync.RWMutex
	users    map[string]*userState[R]
	logger   logging.Logger
	observer MutationObserver
}

// NewStore creates an empty store.
func NewStore[R comparable](optFns ...func(o *Options)) *Store[R] {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Store[R]{
		users:    make(map[string]*userState[R]),
		logger:   opts.Logger,
		observer: opts.Observer,
	}
}

// InitSession makes sure an (initially empty) list exists for the pair. An
// existing list is left untouched.
func (s *Store[R]) InitSession(userID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		u = &userState[R]{sessions: make(map[string]*entry[R])}
		s.users[userID] = u
	}

	if _, ok := u.sessions[sessionID]; !ok {
		u.sessions[sessionID] = &entry[R]{records: []R{}}
		s.logger.Debug("state.session.init", "user_id", userID, "session_id", sessionID)
	}
}

// HasSession reports whether a list was initialised for the pair.
func (s *Store[R]) HasSession(userID, sessionID string) bool {
	_, _, ok := s.lookup(userID, sessionID)
	return ok
}

// Sessions returns the sorted session ids initialised for a user.
func (s *Store[R]) Sessions(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return []string{}
	}

	ids := make([]string, 0, len(u.sessions))
	for id := range u.sessions {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Add appends rec to the pair's list and bumps the user's counter.
func (s *Store[R]) Add(userID, sessionID string, rec R) (string, error) {
	u, e, ok := s.lookup(userID, sessionID)
	if !ok {
		return "", s.fail("add", userID, sessionID, rec, ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if slices.Contains(e.records, rec) {
		return "", s.fail("add", userID, sessionID, rec, ErrDuplicateRecord)
	}

	e.records = append(e.records, rec)

	u.mu.Lock()
	u.count++
	u.mu.Unlock()

	s.succeed("add", userID, sessionID)

	return fmt.Sprintf("Item %s is added to the list", Describe(rec)), nil
}

// Remove deletes rec from the pair's list and decrements the user's counter,
// never below zero.
func (s *Store[R]) Remove(userID, sessionID string, rec R) (string, error) {
	u, e, ok := s.lookup(userID, sessionID)
	if !ok {
		return "", s.fail("remove", userID, sessionID, rec, ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := slices.Index(e.records, rec)
	if idx < 0 {
		return "", s.fail("remove", userID, sessionID, rec, ErrRecordNotFound)
	}

	e.records = slices.Delete(e.records, idx, idx+1)

	u.mu.Lock()
	if u.count > 0 {
		u.count--
	}
	u.mu.Unlock()

	s.succeed("remove", userID, sessionID)

	return fmt.Sprintf("Item %s removed from the list", Describe(rec)), nil
}

// List returns a copy of the pair's records in insertion order.
func (s *Store[R]) List(userID, sessionID string) ([]R, error) {
	_, e, ok := s.lookup(userID, sessionID)
	if !ok {
		return nil, &Error{Op: "list", UserID: userID, SessionID: sessionID, Err: ErrNotFound}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.records), nil
}

// Count returns the user's running mutation counter; unknown users count 0.
func (s *Store[R]) Count(userID string) int {
	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()

	if !ok {
		return 0
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return u.count
}

func (s *Store[R]) lookup(userID, sessionID string) (*userState[R], *entry[R], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, nil, false
	}

	e, ok := u.sessions[sessionID]
	if !ok {
		return nil, nil, false
	}

	return u, e, true
}

func (s *Store[R]) fail(op, userID, sessionID string, rec R, cause error) error {
	err := &Error{Op: op, UserID: userID, SessionID: sessionID, Record: Describe(rec), Err: cause}

	s.logger.Debug("state."+op+".rejected", "user_id", userID, "session_id", sessionID, "reason", cause.Error())

	if s.observer != nil {
		s.observer.ObserveStoreMutation(op, outcome(cause))
	}

	return err
}

func (s *Store[R]) succeed(op, userID, sessionID string) {
	s.logger.Debug("state."+op, "user_id", userID, "session_id", sessionID)

	if s.observer != nil {
		s.observer.ObserveStoreMutation(op, "ok")
	}
}

func outcome(err error) string {
	switch err {
	case ErrNotFound:
		return "not_found"
	case ErrDuplicateRecord:
		return "duplicate"
	case ErrRecordNotFound:
		return "record_not_found"
	default:
		return "error"
	}
}

// Describe formats a record for user-facing messages.
func Describe[R any](rec R) string {
	if st, ok := any(rec).(fmt.Stringer); ok {
		return st.String()
	}

	return fmt.Sprintf("%+v", rec)
}
