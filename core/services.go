package core

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a ToolContext helper needs a service the
// run was started without.
var ErrNotConfigured = errors.New("service not configured")

// SearchResult is one hit of a memory or knowledge search.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]string
}

// MemoryService stores and recalls facts about a user across sessions.
type MemoryService interface {
	AddUserMemory(ctx context.Context, userID, memory string, topics []string) (string, error)
	SearchUserMemories(ctx context.Context, userID, query string, limit int) ([]SearchResult, error)
}

// KnowledgeSearcher retrieves document chunks relevant to a query.
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, query string, limit int, filters map[string]string) ([]SearchResult, error)
}
