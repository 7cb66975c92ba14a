package team

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/state"
	"github.com/Yaaesthetic/agno/storage"
	"github.com/Yaaesthetic/agno/tool"
	"github.com/Yaaesthetic/agno/tool/shopping"
)

func newMember(t *testing.T, name, role string, turns ...model.Response) (*agent.Agent, *model.ScriptedModel) {
	t.Helper()

	llm := model.NewScriptedModel(name, turns...)
	a, err := agent.New(agent.Options{Name: name, Role: role, Model: llm})
	require.NoError(t, err)

	return a, llm
}

func transfer(member, task string) model.Response {
	return model.Call(model.FunctionCall("transfer_task_to_member", map[string]any{"member_id": member, "task_description": task}))
}

func TestTeam_ShoppingListWithoutMembers(t *testing.T) {
	ctx := context.Background()
	store := state.NewStore[shopping.Product]()
	store.InitSession("user_1", "session_1")
	runs := storage.NewInMemory()

	leader := model.NewScriptedModel("leader",
		model.Call(model.FunctionCall("add_item", map[string]any{"product_name": "bread", "quantity": 1})),
		model.Text("Bread added."),
		model.Call(model.FunctionCall("get_count", nil)),
		model.Text("You have 1 item."),
	)

	tm, err := New(Options{
		Name:         "Shopping List Team",
		Model:        leader,
		Tools:        shopping.NewToolkit(store).Tools(),
		Instructions: agent.Texts("You manage a shopping list."),
		Storage:      runs,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"add_item", "remove_item", "get_shopping_list", "get_count"}, tm.Leader().ToolNames())

	resp, err := tm.Run(ctx, agent.RunInput{Message: "Add bread", UserID: "user_1", SessionID: "session_1"})
	require.NoError(t, err)
	assert.Equal(t, "Bread added.", resp.Content)
	assert.Empty(t, resp.MemberResponses)

	resp, err = tm.Run(ctx, agent.RunInput{Message: "How many items?", UserID: "user_1", SessionID: "session_1"})
	require.NoError(t, err)
	assert.Equal(t, "1", resp.ToolCalls[0].Result)

	items, err := store.List("user_1", "session_1")
	require.NoError(t, err)
	assert.Equal(t, []shopping.Product{{Name: "bread", Quantity: 1}}, items)

	stored, _ := runs.Runs(ctx, "session_1", 0)
	require.Len(t, stored, 2)
	assert.Equal(t, storage.ModeTeam, stored[0].Mode)
	assert.Equal(t, "Shopping List Team", stored[0].Owner)

	// no team member section without members
	assert.NotContains(t, leader.Requests()[0].Instructions, "Team members")
}

func TestTeam_Route(t *testing.T) {
	faq, faqModel := newMember(t, "FAQ Agent", "Answers common questions", model.Text("Orders ship in two days."))
	esc, _ := newMember(t, "Escalation Agent", "Handles complaints")

	leader := model.NewScriptedModel("leader", transfer("faq-agent", "When will my order ship?"))

	tm, err := New(Options{Name: "Support", Mode: ModeRoute, Model: leader, Members: []Member{faq, esc}})
	require.NoError(t, err)

	resp, err := tm.Run(context.Background(), agent.RunInput{Message: "When will my order ship?", UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, "Orders ship in two days.", resp.Content)
	require.Len(t, resp.MemberResponses, 1)
	assert.Equal(t, "FAQ Agent", resp.MemberResponses[0].Agent)
	assert.Equal(t, "u1", resp.MemberResponses[0].UserID)
	assert.Equal(t, "s1", resp.MemberResponses[0].SessionID)
	assert.Len(t, leader.Requests(), 1)

	sys := leader.Requests()[0].Instructions
	assert.Contains(t, sys, "member_id: faq-agent, name: FAQ Agent, role: Answers common questions")
	assert.Contains(t, sys, "member_id: escalation-agent")
	assert.Equal(t, "When will my order ship?", faqModel.Requests()[0].Contents[0].Text())
}

func TestTeam_Coordinate(t *testing.T) {
	analyst, _ := newMember(t, "Analyst", "", model.Text("AAPL is up 2%."))
	writer, writerModel := newMember(t, "Writer", "", model.Text("Apple gained two percent today."))

	leader := model.NewScriptedModel("leader",
		transfer("analyst", "Check AAPL"),
		transfer("Writer", "Write a sentence"),
		model.Text("Apple gained two percent today. Not financial advice."),
	)

	tm, err := New(Options{
		Name:                    "Research",
		Mode:                    ModeCoordinate,
		Model:                   leader,
		Members:                 []Member{analyst, writer},
		ShareMemberInteractions: true,
	})
	require.NoError(t, err)

	resp, err := tm.Run(context.Background(), agent.RunInput{Message: "How is Apple doing?", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "Apple gained two percent today. Not financial advice.", resp.Content)
	require.Len(t, resp.MemberResponses, 2)
	assert.Equal(t, "AAPL is up 2%.", resp.ToolCalls[0].Result)

	writerTask := writerModel.Requests()[0].Contents[0].Text()
	assert.Contains(t, writerTask, "Write a sentence")
	assert.Contains(t, writerTask, "<member_interactions>\nAnalyst was asked: Check AAPL\nAnalyst answered: AAPL is up 2%.")

	// both members saw the session generated for the team run
	assert.Equal(t, resp.SessionID, resp.MemberResponses[0].SessionID)
	assert.Equal(t, resp.SessionID, resp.MemberResponses[1].SessionID)
}

func TestTeam_UnknownMember(t *testing.T) {
	analyst, _ := newMember(t, "Analyst", "")
	leader := model.NewScriptedModel("leader", transfer("nobody", "x"), model.Text("sorry"))

	tm, err := New(Options{Model: leader, Members: []Member{analyst}})
	require.NoError(t, err)

	resp, err := tm.Run(context.Background(), agent.RunInput{Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "sorry", resp.Content)
	assert.Contains(t, resp.ToolCalls[0].Error, tool.CodeNotFound)
	assert.Contains(t, resp.ToolCalls[0].Error, "available members: analyst")
}

func TestTeam_Collaborate(t *testing.T) {
	a, _ := newMember(t, "Optimist", "", model.Text("Buy."))
	b, _ := newMember(t, "Pessimist", "", model.Text("Sell."))
	broken, _ := newMember(t, "Broken", "")

	leader := model.NewScriptedModel("leader",
		model.Call(model.FunctionCall("run_member_agents", map[string]any{"task_description": "AAPL?"})),
		model.Text("Opinions differ."),
	)

	tm, err := New(Options{Mode: ModeCollaborate, Model: leader, Members: []Member{a, b, broken}})
	require.NoError(t, err)
	assert.Contains(t, tm.Leader().ToolNames(), "run_member_agents")

	resp, err := tm.Run(context.Background(), agent.RunInput{Message: "Should I buy AAPL?"})
	require.NoError(t, err)

	assert.Equal(t, "Opinions differ.", resp.Content)
	require.Len(t, resp.MemberResponses, 2)
	assert.Equal(t, "Optimist", resp.MemberResponses[0].Agent)
	assert.Equal(t, "Pessimist", resp.MemberResponses[1].Agent)

	result := resp.ToolCalls[0].Result
	assert.Contains(t, result, `{"member":"Optimist","content":"Buy."}`)
	assert.Contains(t, result, `"member":"Broken","error":`)
}

func TestTeam_NestedTeam(t *testing.T) {
	inner, _ := newMember(t, "Worker", "", model.Text("done by worker"))

	innerTeam, err := New(Options{
		Name:    "Inner Team",
		Role:    "Does the work",
		Mode:    ModeRoute,
		Model:   model.NewScriptedModel("inner", transfer("worker", "do it")),
		Members: []Member{inner},
	})
	require.NoError(t, err)

	outer, err := New(Options{
		Name:    "Outer",
		Mode:    ModeRoute,
		Model:   model.NewScriptedModel("outer", transfer("inner-team", "please do it")),
		Members: []Member{innerTeam},
	})
	require.NoError(t, err)

	resp, err := outer.Run(context.Background(), agent.RunInput{Message: "go"})
	require.NoError(t, err)

	assert.Equal(t, "done by worker", resp.Content)
	require.Len(t, resp.MemberResponses, 1)
	assert.Len(t, resp.MemberResponses[0].MemberResponses, 1)
}

func TestTeam_Validation(t *testing.T) {
	a, _ := newMember(t, "Same Name", "")
	b, _ := newMember(t, "same name", "")

	_, err := New(Options{Model: model.NewMockModel("m", "t"), Members: []Member{a, b}})
	assert.ErrorContains(t, err, "duplicate member")

	_, err = New(Options{Model: model.NewMockModel("m", "t"), Mode: "swarm"})
	assert.Error(t, err)

	_, err = New(Options{})
	assert.ErrorIs(t, err, agent.ErrNoModel)
}

func TestParseModeAndMemberID(t *testing.T) {
	m, err := ParseMode(" Route ")
	require.NoError(t, err)
	assert.Equal(t, ModeRoute, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeCoordinate, m)

	assert.Equal(t, "financial-analysis-agent", MemberID("Financial  Analysis Agent"))
}
