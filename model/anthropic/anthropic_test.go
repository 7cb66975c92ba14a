package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/model"
)

func TestBuildMessages_ToolResultsInUserTurn(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent("system", "ignored here"),
		core.NewTextContent("user", "how many items?"),
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "get_count", Arguments: `{}`}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t1", Name: "get_count", Response: 2}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "t1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestSystemPrompt(t *testing.T) {
	got := systemPrompt(model.Request{
		Instructions:   "review contracts",
		ResponseSchema: &model.ResponseSchema{Name: "review", Schema: map[string]any{"type": "object"}},
	})

	assert.Contains(t, got, "review contracts")
	assert.Contains(t, got, `{"type":"object"}`)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{Function: model.FunctionDefinition{
		Name:        "add_item",
		Description: "adds",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"product_name": map[string]any{"type": "string"}},
			"required":   []any{"product_name"},
		},
	}}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "add_item", tools[0].OfTool.Name)
	assert.Equal(t, []string{"product_name"}, tools[0].OfTool.InputSchema.Required)
}
