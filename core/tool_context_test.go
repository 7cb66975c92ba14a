package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMemory struct {
	added []string
}

func (f *fakeMemory) AddUserMemory(_ context.Context, userID, memory string, _ []string) (string, error) {
	f.added = append(f.added, userID+":"+memory)
	return "m1", nil
}

func (f *fakeMemory) SearchUserMemories(_ context.Context, userID, query string, _ int) ([]SearchResult, error) {
	return []SearchResult{{ID: "m1", Content: userID + " likes " + query}}, nil
}

type fakeKnowledge struct {
	filters map[string]string
}

func (f *fakeKnowledge) SearchKnowledge(_ context.Context, query string, _ int, filters map[string]string) ([]SearchResult, error) {
	f.filters = filters
	return []SearchResult{{ID: "doc-1", Content: query}}, nil
}

func newToolContextForTest() *ToolContext {
	rc := NewRunContext(context.Background(), "run-1", "shopper", NewSession("u1", "s1"), nil)
	return NewToolContext(rc, "call-1")
}

func TestToolContext_Identity(t *testing.T) {
	tc := newToolContextForTest()

	assert.Equal(t, "u1", tc.UserID())
	assert.Equal(t, "s1", tc.SessionID())
	assert.Equal(t, "run-1", tc.RunID())
	assert.Equal(t, "shopper", tc.AgentName())
	assert.Equal(t, "call-1", tc.FunctionCallID())
	assert.NotNil(t, tc.Logger())
	assert.NotNil(t, tc.Context())
}

func TestToolContext_StateAndActions(t *testing.T) {
	tc := newToolContextForTest()

	tc.SetState("last_item", "bread")
	tc.SkipSummarization()
	tc.TransferToMember("planner")

	v, ok := tc.GetState("last_item")
	require.True(t, ok)
	assert.Equal(t, "bread", v)

	actions := tc.Actions()
	assert.Equal(t, "bread", actions.StateDelta["last_item"])
	require.NotNil(t, actions.SkipSummarization)
	assert.True(t, *actions.SkipSummarization)
	require.NotNil(t, actions.TransferToMember)
	assert.Equal(t, "planner", *actions.TransferToMember)

	ev := NewFunctionResponseEvent("run-1", "shopper", "call-1", "add_item", "ok", nil)
	tc.ApplyActions(&ev)
	assert.True(t, ev.IsFinalResponse())
}

func TestToolContext_ServicesNotConfigured(t *testing.T) {
	tc := newToolContextForTest()

	_, err := tc.SearchMemory("x", 1)
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = tc.AddUserMemory("x", nil)
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = tc.SearchKnowledge("x", 1, nil)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestToolContext_Services(t *testing.T) {
	tc := newToolContextForTest()
	mem := &fakeMemory{}
	kb := &fakeKnowledge{}
	tc.runCtx.Memory = mem
	tc.runCtx.Knowledge = kb
	tc.runCtx.KnowledgeFilters = map[string]string{"year": "2024", "company": "acme"}

	id, err := tc.AddUserMemory("likes rye bread", []string{"food"})
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
	assert.Equal(t, []string{"u1:likes rye bread"}, mem.added)

	res, err := tc.SearchMemory("bread", 3)
	require.NoError(t, err)
	assert.Equal(t, "u1 likes bread", res[0].Content)

	_, err = tc.SearchKnowledge("revenue", 2, map[string]string{"year": "2025"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"year": "2025", "company": "acme"}, kb.filters)
}
