package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/storage"
)

// ErrNoModel is returned by model driven operations of a Manager built
// without a model.
var ErrNoModel = errors.New("memory manager has no model")

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Model summarises sessions and extracts memories. Optional.
	Model  model.Model
	Logger logging.Logger
}

// Manager implements core.MemoryService on top of a DB.
type Manager struct {
	db     DB
	model  model.Model
	logger logging.Logger
}

var _ core.MemoryService = (*Manager)(nil)

// NewManager creates a Manager.
func NewManager(db DB, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Manager{db: db, model: opts.Model, logger: opts.Logger}
}

// DB returns the backing store.
func (m *Manager) DB() DB { return m.db }

// AddUserMemory stores a fact about a user and returns its id.
func (m *Manager) AddUserMemory(ctx context.Context, userID, memory string, topics []string) (string, error) {
	memory = strings.TrimSpace(memory)
	if memory == "" {
		return "", errors.New("memory text is empty")
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate memory id: %w", err)
	}

	um := UserMemory{ID: id, UserID: userID, Memory: memory, Topics: topics, CreatedAt: time.Now().UTC()}
	if err := m.db.UpsertUserMemory(ctx, um); err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}

	m.logger.Debug("memory.add", "user_id", userID, "memory_id", id)

	return id, nil
}

// UserMemories returns every memory of a user, most recent first.
func (m *Manager) UserMemories(ctx context.Context, userID string) ([]UserMemory, error) {
	return m.db.UserMemories(ctx, userID)
}

// SearchUserMemories ranks a user's memories by the share of query words found
// in the memory text or topics. Ties keep the most recent memory first. An
// empty query returns the most recent memories. A limit <= 0 means no limit.
func (m *Manager) SearchUserMemories(ctx context.Context, userID, query string, limit int) ([]core.SearchResult, error) {
	mems, err := m.db.UserMemories(ctx, userID)
	if err != nil {
		return nil, err
	}

	words := keywords(query)
	results := make([]core.SearchResult, 0, len(mems))

	for _, um := range mems {
		score := 1.0

		if len(words) > 0 {
			haystack := strings.ToLower(um.Memory + " " + strings.Join(um.Topics, " "))

			hits := 0
			for _, w := range words {
				if strings.Contains(haystack, w) {
					hits++
				}
			}

			if hits == 0 {
				continue
			}

			score = float64(hits) / float64(len(words))
		}

		results = append(results, core.SearchResult{
			ID:       um.ID,
			Content:  um.Memory,
			Score:    score,
			Metadata: map[string]string{"topics": strings.Join(um.Topics, ",")},
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Summary returns the stored summary of a session.
func (m *Manager) Summary(ctx context.Context, userID, sessionID string) (SessionSummary, bool, error) {
	return m.db.Summary(ctx, userID, sessionID)
}

type summaryOutput struct {
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

var summarySchema = &model.ResponseSchema{
	Name:        "session_summary",
	Description: "Summary of a conversation",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"topics":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"summary"},
	},
}

// CreateSessionSummary asks the model to summarise runs and stores the result.
func (m *Manager) CreateSessionSummary(ctx context.Context, userID, sessionID string, runs []storage.Run) (SessionSummary, error) {
	if m.model == nil {
		return SessionSummary{}, ErrNoModel
	}

	var transcript strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&transcript, "user: %s\nassistant: %s\n", r.Input, r.Output)
	}

	req := model.Request{
		Instructions: "Summarise the following conversation between a user and an assistant. " +
			"Capture the user's goals and the key facts exchanged. List the main topics.",
		Contents:       []core.Content{core.NewTextContent("user", transcript.String())},
		ResponseSchema: summarySchema,
	}

	resp, err := model.Collect(ctx, m.model, req, nil)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("summarise session %s: %w", sessionID, err)
	}

	text := strings.TrimSpace(resp.Content.Text())

	var out summaryOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil || out.Summary == "" {
		out = summaryOutput{Summary: text}
	}

	s := SessionSummary{
		SessionID: sessionID,
		UserID:    userID,
		Summary:   out.Summary,
		Topics:    out.Topics,
		UpdatedAt: time.Now().UTC(),
	}

	if err := m.db.UpsertSummary(ctx, s); err != nil {
		return SessionSummary{}, fmt.Errorf("store summary: %w", err)
	}

	m.logger.Debug("memory.summary.updated", "user_id", userID, "session_id", sessionID, "runs", len(runs))

	return s, nil
}

type extractOutput struct {
	Memories []struct {
		Memory string   `json:"memory"`
		Topics []string `json:"topics"`
	} `json:"memories"`
}

var extractSchema = &model.ResponseSchema{
	Name:        "user_memories",
	Description: "Facts worth remembering about the user",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"memories": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"memory": map[string]any{"type": "string"},
						"topics": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"memory"},
				},
			},
		},
		"required": []string{"memories"},
	},
}

// ExtractUserMemories asks the model for durable facts in a user message and
// stores the new ones. It returns the ids of stored memories.
func (m *Manager) ExtractUserMemories(ctx context.Context, userID, message string) ([]string, error) {
	if m.model == nil {
		return nil, ErrNoModel
	}

	existing, err := m.db.UserMemories(ctx, userID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(existing))

	var prompt strings.Builder
	prompt.WriteString("Extract facts about the user (preferences, personal details, goals) from the message. ")
	prompt.WriteString("Return an empty list when there is nothing worth remembering.")

	if len(existing) > 0 {
		prompt.WriteString("\nAlready known:")

		for _, um := range existing {
			known[strings.ToLower(um.Memory)] = true
			prompt.WriteString("\n- " + um.Memory)
		}
	}

	req := model.Request{
		Instructions:   prompt.String(),
		Contents:       []core.Content{core.NewTextContent("user", message)},
		ResponseSchema: extractSchema,
	}

	resp, err := model.Collect(ctx, m.model, req, nil)
	if err != nil {
		return nil, fmt.Errorf("extract memories: %w", err)
	}

	var out extractOutput
	if err := json.Unmarshal([]byte(resp.Content.Text()), &out); err != nil {
		return nil, fmt.Errorf("decode extracted memories: %w", err)
	}

	var ids []string

	for _, em := range out.Memories {
		if em.Memory == "" || known[strings.ToLower(em.Memory)] {
			continue
		}

		id, err := m.AddUserMemory(ctx, userID, em.Memory, em.Topics)
		if err != nil {
			return ids, err
		}

		known[strings.ToLower(em.Memory)] = true
		ids = append(ids, id)
	}

	return ids, nil
}

// Stats is the memory status of one user and session.
type Stats struct {
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id"`
	SessionRuns  int    `json:"session_runs"`
	Sessions     int    `json:"sessions"`
	UserMemories int    `json:"user_memories"`
	HasSummary   bool   `json:"has_summary"`
}

// Stats collects counts from the memory DB and, when runs is not nil, the run
// store.
func (m *Manager) Stats(ctx context.Context, runs storage.Store, userID, sessionID string) (Stats, error) {
	st := Stats{UserID: userID, SessionID: sessionID}

	mems, err := m.db.UserMemories(ctx, userID)
	if err != nil {
		return st, err
	}

	st.UserMemories = len(mems)

	_, st.HasSummary, err = m.db.Summary(ctx, userID, sessionID)
	if err != nil {
		return st, err
	}

	if runs == nil {
		return st, nil
	}

	sessionRuns, err := runs.Runs(ctx, sessionID, 0)
	if err != nil {
		return st, err
	}

	st.SessionRuns = len(sessionRuns)

	sessions, err := runs.Sessions(ctx, userID)
	if err != nil {
		return st, err
	}

	st.Sessions = len(sessions)

	return st, nil
}

func keywords(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})

	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}

	return out
}
