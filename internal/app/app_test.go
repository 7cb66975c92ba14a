package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/config"
	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/state"
	"github.com/Yaaesthetic/agno/team"
	"github.com/Yaaesthetic/agno/tool/shopping"
)

func parse(t *testing.T, dir, doc string) *config.Config {
	t.Helper()

	cfg, err := config.Parse([]byte(fmt.Sprintf(doc, dir)))
	require.NoError(t, err)

	return cfg
}

const shoppingDoc = `
logging:
  level: debug
models:
  gpt:
    provider: openai
database:
  driver: sqlite
  database: %[1]s/agents.db
  mode: team
state:
  backend: sql
  sessions:
    - {user: u1, session: s1}
teams:
  shopping:
    name: Shopping List Team
    model: gpt
    tools: [shopping]
    add_history_to_messages: true
`

func TestBuild_ShoppingStatePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := parse(t, dir, shoppingDoc)

	llm := model.NewScriptedModel("gpt",
		model.Call(model.FunctionCall("add_item", map[string]any{"product_name": "bread", "quantity": 2})),
		model.Text("Added bread."),
	)

	var logs bytes.Buffer

	a, err := Build(ctx, cfg, func(o *Options) {
		o.Models = map[string]model.Model{"gpt": llm}
		o.LogOutput = &logs
	})
	require.NoError(t, err)

	assert.True(t, a.Shopping.Store().HasSession("u1", "s1"))
	assert.False(t, a.Shopping.Store().HasSession("u1", "s2"))

	resp, err := a.Runner.Run(ctx, "shopping", agent.RunInput{Message: "Add 2 bread", UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "Added bread.", resp.Content)
	assert.Contains(t, logs.String(), "app.ready")

	runs, err := a.Storage.Runs(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Shopping List Team", runs[0].Owner)

	require.NoError(t, a.Close())

	// a fresh process sees the list saved after the run
	again, err := Build(ctx, cfg, func(o *Options) {
		o.Models = map[string]model.Model{"gpt": model.NewScriptedModel("gpt")}
		o.LogOutput = &logs
	})
	require.NoError(t, err)
	defer again.Close()

	items, err := again.Shopping.Store().List("u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []shopping.Product{{Name: "bread", Quantity: 2}}, items)
	assert.Equal(t, 1, again.Shopping.Store().Count("u1"))
}

// gatedPersister holds the first save until release is closed.
type gatedPersister struct {
	state.Persister
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPersister) SaveState(ctx context.Context, name string, data []byte) error {
	if g.calls.Add(1) == 1 {
		close(g.entered)

		select {
		case <-g.release:
		case <-time.After(5 * time.Second):
		}
	}

	return g.Persister.SaveState(ctx, name, data)
}

func TestBuild_ConcurrentRunsSaveLatestState(t *testing.T) {
	ctx := context.Background()
	cfg := parse(t, t.TempDir(), shoppingDoc)

	llm := model.NewScriptedModel("gpt",
		model.Call(model.FunctionCall("add_item", map[string]any{"product_name": "bread", "quantity": 1})),
		model.Text("Added bread."),
		model.Call(model.FunctionCall("add_item", map[string]any{"product_name": "milk", "quantity": 1})),
		model.Text("Added milk."),
	)

	a, err := Build(ctx, cfg, func(o *Options) {
		o.Models = map[string]model.Model{"gpt": llm}
		o.LogOutput = &bytes.Buffer{}
	})
	require.NoError(t, err)
	defer a.Close()

	inner := a.Persister
	gate := &gatedPersister{Persister: inner, entered: make(chan struct{}), release: make(chan struct{})}
	a.Persister = gate

	run := func(msg string, done chan<- error) {
		_, err := a.Runner.Run(ctx, "shopping", agent.RunInput{Message: msg, UserID: "u1", SessionID: "s1"})
		done <- err
	}

	first, second := make(chan error, 1), make(chan error, 1)

	go run("Add bread", first)
	<-gate.entered

	go run("Add milk", second)
	time.Sleep(100 * time.Millisecond)
	close(gate.release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)

	live, err := a.Shopping.Store().List("u1", "s1")
	require.NoError(t, err)

	saved := state.NewStore[shopping.Product]()
	found, err := state.Load(ctx, inner, cfg.State.Name, saved)
	require.NoError(t, err)
	require.True(t, found)

	persisted, err := saved.List("u1", "s1")
	require.NoError(t, err)

	assert.Equal(t, []shopping.Product{{Name: "bread", Quantity: 1}, {Name: "milk", Quantity: 1}}, live)
	assert.Equal(t, live, persisted)
}

const supportDoc = `
models:
  gpt:
    provider: mock
knowledge:
  faq:
    sources:
      - path: %[1]s/docs
        metadata: {kind: faq}
    chunk_size: 200
    chunk_overlap: 20
agents:
  faq:
    name: FAQ Agent
    role: Answers common questions
    model: gpt
    knowledge: faq
    add_references: true
    response_model:
      name: answer
      schema:
        type: object
  greeter:
    name: Greeter
    model: gpt
teams:
  support:
    mode: route
    model: gpt
    members: [faq, greeter]
  hub:
    mode: coordinate
    model: gpt
    members: [support]
    enable_user_memories: true
`

func TestBuild_TeamsAndKnowledge(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "shipping.md"), []byte("Orders ship within two business days."), 0o600))

	a, err := Build(ctx, parse(t, dir, supportDoc), func(o *Options) { o.LogOutput = &bytes.Buffer{} })
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"faq", "greeter", "hub", "support"}, a.Runner.Names())
	assert.Nil(t, a.Storage)

	loaded, err := a.LoadKnowledge(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded["faq"])

	hits, err := a.Knowledge["faq"].Search(ctx, "when do orders ship", 0, map[string]string{"kind": "faq"})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Content, "two business days")

	m, ok := a.Member("support")
	require.True(t, ok)

	support := m.(*team.Team)
	assert.Equal(t, team.ModeRoute, support.Mode())
	assert.Len(t, support.Members(), 2)

	hub, _ := a.Member("hub")
	assert.Equal(t, "support", hub.(*team.Team).Members()[0].Name())

	resp, err := a.Runner.Run(ctx, "greeter", agent.RunInput{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello", resp.Content)
}

func TestNewModel_Mock(t *testing.T) {
	m, err := NewModel(context.Background(), &config.ModelConfig{Provider: config.ProviderMock, Responses: map[string]string{"ping": "pong"}}, "m")
	require.NoError(t, err)

	out, err := model.Collect(context.Background(), m, model.Request{Contents: []core.Content{core.NewTextContent("user", "ping")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", out.Content.Text())
	assert.Equal(t, "mock", m.Info().Provider)
}
