// Package storage persists the runs of agents and teams per session so a
// later run can replay the conversation history.
//
// Implementations live here (in memory) and in sub packages (SQL). Callers
// depend on the Store interface and pick a backend at wiring time.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session has no stored runs.
var ErrSessionNotFound = errors.New("session not found")

// Modes recorded on a Run.
const (
	ModeAgent = "agent"
	ModeTeam  = "team"
)

// ToolCall is the persisted form of one executed function call.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Run is one completed agent or team run.
type Run struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	Owner     string     `json:"owner"`
	Mode      string     `json:"mode"`
	Input     string     `json:"input"`
	Output    string     `json:"output"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SessionInfo summarises the stored runs of one session.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Owner     string    `json:"owner"`
	Runs      int       `json:"runs"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the run history backend.
type Store interface {
	// AppendRun stores a completed run.
	AppendRun(ctx context.Context, run Run) error
	// Runs returns the last limit runs of a session, oldest first. A limit
	// <= 0 returns every run. An unknown session yields an empty slice.
	Runs(ctx context.Context, sessionID string, limit int) ([]Run, error)
	// Sessions lists the sessions of a user, most recently updated first.
	Sessions(ctx context.Context, userID string) ([]SessionInfo, error)
	// DeleteSession drops every run of a session.
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}

// Tail returns the last limit runs (all when limit <= 0).
func Tail(runs []Run, limit int) []Run {
	if limit <= 0 || len(runs) <= limit {
		return runs
	}

	return runs[len(runs)-limit:]
}
