package core

import (
	"context"
	"maps"
	"sync"

	"github.com/Yaaesthetic/agno/logging"
)

// RunContext is the per-run scope shared by every tool call of one agent run.
// Services may be nil; ToolContext helpers then return ErrNotConfigured.
type RunContext struct {
	Context          context.Context
	RunID            string
	UserID           string
	SessionID        string
	AgentName        string
	Session          *Session
	Memory           MemoryService
	Knowledge        KnowledgeSearcher
	KnowledgeFilters map[string]string

	mu         sync.Mutex
	stateDelta map[string]any
	logger     logging.Logger
}

// NewRunContext creates a RunContext. A nil session is replaced by an empty
// one for the given user and session ids.
func NewRunContext(ctx context.Context, runID, agentName string, sess *Session, logger logging.Logger) *RunContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	if sess == nil {
		sess = NewSession("", "")
	}

	return &RunContext{
		Context:    ctx,
		RunID:      runID,
		UserID:     sess.UserID,
		SessionID:  sess.ID,
		AgentName:  agentName,
		Session:    sess,
		stateDelta: map[string]any{},
		logger:     logger,
	}
}

// Logger returns the run logger.
func (rc *RunContext) Logger() logging.Logger { return rc.logger }

// GetState returns a staged value if present, else the session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	rc.mu.Lock()
	v, ok := rc.stateDelta[k]
	rc.mu.Unlock()

	if ok {
		return v, true
	}

	return rc.Session.GetState(k)
}

// SetState stages a state mutation until CommitState.
func (rc *RunContext) SetState(k string, v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.stateDelta[k] = v
}

// StateDelta returns a copy of the staged mutations.
func (rc *RunContext) StateDelta() map[string]any {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return maps.Clone(rc.stateDelta)
}

// CommitState applies the staged delta to the session and clears it.
func (rc *RunContext) CommitState() map[string]any {
	rc.mu.Lock()
	delta := rc.stateDelta
	rc.stateDelta = map[string]any{}
	rc.mu.Unlock()

	if len(delta) > 0 {
		rc.Session.ApplyStateDelta(delta)
	}

	return delta
}

// AddEvent appends ev to the session history.
func (rc *RunContext) AddEvent(ev Event) {
	rc.Session.AddEvent(ev)
}
