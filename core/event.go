package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions are side effects requested while producing an Event.
// Pointer fields distinguish "not requested" from the zero value.
type EventActions struct {
	SkipSummarization *bool          `json:"skip_summarization,omitempty"`
	StateDelta        map[string]any `json:"state_delta,omitempty"`
	TransferToMember  *string        `json:"transfer_to_member,omitempty"`
}

// Merge copies the requested actions of other into a.
func (a *EventActions) Merge(other EventActions) {
	if other.SkipSummarization != nil {
		a.SkipSummarization = other.SkipSummarization
	}

	if other.TransferToMember != nil {
		a.TransferToMember = other.TransferToMember
	}

	if len(other.StateDelta) > 0 {
		if a.StateDelta == nil {
			a.StateDelta = map[string]any{}
		}

		for k, v := range other.StateDelta {
			a.StateDelta[k] = v
		}
	}
}

// Event is an immutable record of something that happened during a run: a
// user message, a model answer, a tool call or its response.
type Event struct {
	ID           string       `json:"id"`
	RunID        string       `json:"run_id"`
	Author       string       `json:"author"`
	Actions      EventActions `json:"actions"`
	Timestamp    time.Time    `json:"timestamp"`
	Content      *Content     `json:"content,omitempty"`
	Partial      *bool        `json:"partial,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// NewEvent creates a bare event.
func NewEvent(runID, author string) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageEvent creates an assistant text event.
func NewMessageEvent(runID, author, message string) Event {
	e := NewEvent(runID, author)
	c := NewTextContent("assistant", message)
	e.Content = &c

	return e
}

// NewUserMessageEvent creates a user text event.
func NewUserMessageEvent(runID, message string) Event {
	e := NewEvent(runID, "user")
	c := NewTextContent("user", message)
	e.Content = &c

	return e
}

// NewFunctionCallEvent records the calls requested by a model turn.
func NewFunctionCallEvent(runID, author string, calls ...FunctionCall) Event {
	e := NewEvent(runID, author)

	parts := make([]Part, 0, len(calls))
	for _, fc := range calls {
		parts = append(parts, FunctionCallPart{FunctionCall: fc})
	}

	e.Content = &Content{Role: "assistant", Parts: parts}

	return e
}

// NewFunctionResponseEvent records a tool result. A non-nil err is copied
// into the response Error field.
func NewFunctionResponseEvent(runID, author, id, name string, result any, err error) Event {
	e := NewEvent(runID, author)

	fr := FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
		fr.Response = nil
	}

	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}

	return e
}

// NewID returns a random UUID string.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether the event is a streaming fragment.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// GetFunctionCalls returns the function calls carried by the event.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}

	return e.Content.FunctionCalls()
}

// GetFunctionResponses returns the function responses carried by the event.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}

	var responses []FunctionResponse

	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}

	return responses
}

// IsFinalResponse reports whether the event ends a turn: it either asks to
// skip summarization or carries no pending calls/responses and is complete.
func (e Event) IsFinalResponse() bool {
	if e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization {
		return true
	}

	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}
