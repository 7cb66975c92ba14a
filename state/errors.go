package state

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that no list was initialised for a user/session pair.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicateRecord reports an add of a record already present in the list.
	ErrDuplicateRecord = errors.New("duplicate record")
	// ErrRecordNotFound reports a remove of a record absent from the list.
	ErrRecordNotFound = errors.New("record not found")
	// ErrSnapshotNotFound is returned by persisters when nothing was saved under a name.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Error carries the operation and keys of a failed store mutation. Its message
// is meant to be relayed verbatim to an end user.
type Error struct {
	Op        string
	UserID    string
	SessionID string
	Record    string
	Err       error
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, ErrNotFound):
		return fmt.Sprintf("No list found for user %s and session %s", e.UserID, e.SessionID)
	case errors.Is(e.Err, ErrDuplicateRecord):
		return fmt.Sprintf("Item %s already exists in the list for user %s and session %s", e.Record, e.UserID, e.SessionID)
	case errors.Is(e.Err, ErrRecordNotFound):
		return fmt.Sprintf("Item %s not found in the list for user %s and session %s", e.Record, e.UserID, e.SessionID)
	default:
		return fmt.Sprintf("%s failed for user %s and session %s: %v", e.Op, e.UserID, e.SessionID, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
