package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/storage"
)

// ErrEmptyMessage is returned when a run has no user message.
var ErrEmptyMessage = errors.New("empty message")

// RunInput is one user turn.
type RunInput struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	// State seeds session state for instruction templates and tools.
	State map[string]any `json:"state,omitempty"`
	// KnowledgeFilters are merged over the agent's filters.
	KnowledgeFilters map[string]string `json:"knowledge_filters,omitempty"`
	// OnPartial receives streamed text fragments.
	OnPartial func(text string) `json:"-"`
}

// RunMetrics counts what a run consumed.
type RunMetrics struct {
	ModelCalls int              `json:"model_calls"`
	ToolCalls  int              `json:"tool_calls"`
	Usage      model.TokenUsage `json:"usage"`
	Duration   time.Duration    `json:"duration"`
}

// RunResponse is the outcome of a run.
type RunResponse struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Agent     string `json:"agent"`
	Content   string `json:"content"`
	// Structured holds the decoded JSON answer when a response schema is set.
	Structured      any                `json:"structured,omitempty"`
	Events          []core.Event       `json:"-"`
	ToolCalls       []storage.ToolCall `json:"tool_calls,omitempty"`
	Metrics         RunMetrics         `json:"metrics"`
	MemberResponses []*RunResponse     `json:"member_responses,omitempty"`
	State           map[string]any     `json:"state,omitempty"`
}

// Decode unmarshals the JSON answer into v.
func (r *RunResponse) Decode(v any) error {
	if err := json.Unmarshal([]byte(r.Content), v); err != nil {
		return fmt.Errorf("decode run %s content: %w", r.RunID, err)
	}

	return nil
}

// OutputValidationError reports an answer that does not match the response
// schema.
type OutputValidationError struct {
	Content string
	Err     error
}

func (e *OutputValidationError) Error() string {
	return "structured output invalid: " + e.Err.Error()
}

func (e *OutputValidationError) Unwrap() error { return e.Err }
