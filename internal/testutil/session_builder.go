package testutil

import (
	"context"

	"github.com/Yaaesthetic/agno/core"
)

// SessionBuilder assembles a *core.Session with state and prior turns.
//
//	sess := NewSessionBuilder("u1", "s1").State("k", "v").UserText("hi").AssistantText("hello").Build()
type SessionBuilder struct {
	userID string
	id     string
	state  map[string]any
	events []core.Event
}

// NewSessionBuilder starts a session for the given user and session ids.
func NewSessionBuilder(userID, id string) *SessionBuilder {
	return &SessionBuilder{userID: userID, id: id, state: map[string]any{}}
}

// State sets a key/value pair.
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// UserText appends a user message.
func (b *SessionBuilder) UserText(text string) *SessionBuilder {
	b.events = append(b.events, core.NewUserMessageEvent("", text))
	return b
}

// AssistantText appends an assistant message.
func (b *SessionBuilder) AssistantText(text string) *SessionBuilder {
	b.events = append(b.events, core.NewMessageEvent("", "agent", text))
	return b
}

// Build returns the session.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.userID, b.id)
	s.ApplyStateDelta(b.state)

	for _, ev := range b.events {
		s.AddEvent(ev)
	}

	return s
}

// NewToolContext returns a tool context for a fresh run over sess. Pass a nil
// session for an empty u1/s1 conversation.
func NewToolContext(sess *core.Session, configure ...func(rc *core.RunContext)) *core.ToolContext {
	if sess == nil {
		sess = core.NewSession("u1", "s1")
	}

	rc := core.NewRunContext(context.Background(), "run-test", "agent", sess, nil)
	for _, fn := range configure {
		fn(rc)
	}

	return core.NewToolContext(rc, "call-test")
}
