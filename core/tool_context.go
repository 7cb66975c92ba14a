package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/Yaaesthetic/agno/logging"
)

// ToolContext is the surface a tool sees for one function call. Requested
// side effects accumulate as EventActions and are copied onto the function
// response event by the caller.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string

	mu      sync.Mutex
	actions EventActions
}

// NewToolContext binds a tool call to its run.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{runCtx: runCtx, functionCallID: functionCallID}
}

// Context returns the run context.Context.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// UserID returns the id of the user the run is for.
func (tc *ToolContext) UserID() string { return tc.runCtx.UserID }

// SessionID returns the conversation id.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// RunID returns the run id.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// AgentName returns the name of the agent executing the tool.
func (tc *ToolContext) AgentName() string { return tc.runCtx.AgentName }

// FunctionCallID returns the id of the model function call.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the run logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.runCtx.Logger() }

// GetState reads session state, including values staged by this run.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.runCtx.GetState(k) }

// SetState stages k=v on the run and records it in the call's state delta.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.actions.StateDelta == nil {
		tc.actions.StateDelta = map[string]any{}
	}

	tc.actions.StateDelta[k] = v
}

// Actions returns a copy of the accumulated actions.
func (tc *ToolContext) Actions() EventActions {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	var out EventActions
	out.Merge(tc.actions)

	return out
}

// SkipSummarization makes the tool result the final answer of the run.
func (tc *ToolContext) SkipSummarization() {
	b := true

	tc.mu.Lock()
	tc.actions.SkipSummarization = &b
	tc.mu.Unlock()
}

// TransferToMember records a hand-off to a team member.
func (tc *ToolContext) TransferToMember(name string) {
	tc.mu.Lock()
	tc.actions.TransferToMember = &name
	tc.mu.Unlock()

	tc.Logger().Info("tool.transfer.request", "from", tc.AgentName(), "to", name, "function_call_id", tc.functionCallID)
}

// SearchMemory recalls facts about the current user.
func (tc *ToolContext) SearchMemory(query string, limit int) ([]SearchResult, error) {
	if tc.runCtx.Memory == nil {
		return nil, fmt.Errorf("memory: %w", ErrNotConfigured)
	}

	return tc.runCtx.Memory.SearchUserMemories(tc.Context(), tc.UserID(), query, limit)
}

// AddUserMemory stores a fact about the current user and returns its id.
func (tc *ToolContext) AddUserMemory(memory string, topics []string) (string, error) {
	if tc.runCtx.Memory == nil {
		return "", fmt.Errorf("memory: %w", ErrNotConfigured)
	}

	return tc.runCtx.Memory.AddUserMemory(tc.Context(), tc.UserID(), memory, topics)
}

// SearchKnowledge queries the agent knowledge base. The run's knowledge
// filters are merged under filters, which win on conflicts.
func (tc *ToolContext) SearchKnowledge(query string, limit int, filters map[string]string) ([]SearchResult, error) {
	if tc.runCtx.Knowledge == nil {
		return nil, fmt.Errorf("knowledge: %w", ErrNotConfigured)
	}

	merged := make(map[string]string, len(tc.runCtx.KnowledgeFilters)+len(filters))
	for k, v := range tc.runCtx.KnowledgeFilters {
		merged[k] = v
	}

	for k, v := range filters {
		merged[k] = v
	}

	return tc.runCtx.Knowledge.SearchKnowledge(tc.Context(), query, limit, merged)
}

// History returns the conversation events visible to the run.
func (tc *ToolContext) History() []Event {
	return tc.runCtx.Session.GetConversationHistory()
}

// ApplyActions copies the accumulated actions onto ev.
func (tc *ToolContext) ApplyActions(ev *Event) {
	ev.Actions.Merge(tc.Actions())
}
