package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Yaaesthetic/agno/core"
)

// ScriptedModel replays canned turns in order and records every request.
// It lets tests and offline demos drive tool calls deterministically.
type ScriptedModel struct {
	name string

	mu       sync.Mutex
	turns    []Response
	requests []Request
}

// NewScriptedModel creates a model that answers with turns, one per call.
func NewScriptedModel(name string, turns ...Response) *ScriptedModel {
	return &ScriptedModel{name: name, turns: turns}
}

// Text builds a final text turn.
func Text(text string) Response {
	return Response{Content: core.NewTextContent("assistant", text), FinishReason: "stop"}
}

// Call builds a turn requesting one tool call per entry; args are JSON encoded.
func Call(calls ...core.FunctionCall) Response {
	parts := make([]core.Part, 0, len(calls))
	for i, fc := range calls {
		if fc.ID == "" {
			fc.ID = fmt.Sprintf("call_%d", i+1)
		}

		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}

	return Response{Content: core.Content{Role: "assistant", Parts: parts}, FinishReason: "tool_calls"}
}

// FunctionCall is a helper that JSON encodes args.
func FunctionCall(name string, args map[string]any) core.FunctionCall {
	data, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}

	return core.FunctionCall{Name: name, Arguments: string(data)}
}

// Then appends more turns.
func (m *ScriptedModel) Then(turns ...Response) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turns...)

	return m
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)

	return out
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)

	var (
		next Response
		ok   bool
	)

	if len(m.turns) > 0 {
		next, m.turns, ok = m.turns[0], m.turns[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		if !ok {
			errCh <- fmt.Errorf("scripted model %s: no turns left", m.name)
			return
		}

		respCh <- next
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: m.name, Provider: "scripted", SupportsTools: true}
}
