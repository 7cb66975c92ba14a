// Package memory keeps what an agent learns about a user across sessions
// (user memories) and condensed summaries of individual sessions.
//
// Storage backends implement DB: the in-memory store here and the SQL store
// in storage/sqlstore. Manager layers id generation, keyword recall and
// model driven summarisation on top of any DB.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrMemoryNotFound is returned when deleting an unknown memory.
var ErrMemoryNotFound = errors.New("memory not found")

// UserMemory is one fact about a user.
type UserMemory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Memory    string    `json:"memory"`
	Topics    []string  `json:"topics,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSummary condenses one session of a user.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Summary   string    `json:"summary"`
	Topics    []string  `json:"topics,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DB persists memories and summaries.
type DB interface {
	// UpsertUserMemory inserts m or replaces the memory with the same id.
	UpsertUserMemory(ctx context.Context, m UserMemory) error
	// UserMemories returns the memories of a user, most recent first.
	UserMemories(ctx context.Context, userID string) ([]UserMemory, error)
	DeleteUserMemory(ctx context.Context, userID, id string) error
	UpsertSummary(ctx context.Context, s SessionSummary) error
	// Summary reports false when the session has no summary yet.
	Summary(ctx context.Context, userID, sessionID string) (SessionSummary, bool, error)
	// ClearUser removes all memories and summaries of a user.
	ClearUser(ctx context.Context, userID string) error
}
