package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/memory"
	"github.com/Yaaesthetic/agno/metrics"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/runner"
	"github.com/Yaaesthetic/agno/state"
	"github.com/Yaaesthetic/agno/storage"
	"github.com/Yaaesthetic/agno/tool/shopping"
)

type fixture struct {
	srv      *httptest.Server
	llm      *model.ScriptedModel
	runs     *storage.InMemory
	mem      *memory.InMemoryDB
	shopping *state.Store[shopping.Product]
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, turns ...model.Response) *fixture {
	t.Helper()

	f := &fixture{
		llm:      model.NewScriptedModel("scripted", turns...),
		runs:     storage.NewInMemory(),
		mem:      memory.NewInMemoryDB(),
		shopping: state.NewStore[shopping.Product](),
		metrics:  metrics.New(),
	}

	shopper, err := agent.New(agent.Options{
		Name:    "shopper",
		Model:   f.llm,
		Tools:   shopping.NewToolkit(f.shopping).Tools(),
		Storage: f.runs,
	})
	require.NoError(t, err)

	echo, err := agent.New(agent.Options{Name: "echo", Model: model.NewMockModel("mock", "test")})
	require.NoError(t, err)

	r := runner.New(map[string]runner.Runnable{"shopper": shopper, "echo": echo}, func(o *runner.Options) { o.Metrics = f.metrics })

	s := New(Options{Runner: r, Storage: f.runs, Memory: f.mem, Shopping: f.shopping, Metrics: f.metrics})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}

	return resp, out
}

func TestServer_ShoppingFlow(t *testing.T) {
	f := newFixture(t,
		model.Call(model.FunctionCall("add_item", map[string]any{"product_name": "bread", "quantity": 1})),
		model.Text("Bread is on your list."),
	)

	resp, body := f.do(t, http.MethodGet, "/v1/shopping/user_1/session_1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No list found for user user_1 and session session_1", body["error"])

	resp, _ = f.do(t, http.MethodPost, "/v1/shopping/user_1/session_1", "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/v1/shopping/user_1/session_1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["items"])

	resp, body = f.do(t, http.MethodPost, "/v1/runs/shopper", `{"message":"add bread","user_id":"user_1","session_id":"session_1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bread is on your list.", body["content"])
	assert.Equal(t, "session_1", body["session_id"])

	_, body = f.do(t, http.MethodGet, "/v1/shopping/user_1/session_1", "")
	assert.Equal(t, []any{map[string]any{"product_name": "bread", "quantity": 1.0}}, body["items"])

	_, body = f.do(t, http.MethodGet, "/v1/shopping/user_1", "")
	assert.Equal(t, 1.0, body["count"])
	assert.Equal(t, []any{"session_1"}, body["sessions"])

	_, body = f.do(t, http.MethodGet, "/v1/sessions/session_1/runs", "")
	require.Len(t, body["runs"], 1)

	_, body = f.do(t, http.MethodGet, "/v1/users/user_1/sessions", "")
	require.Len(t, body["sessions"], 1)

	resp, _ = f.do(t, http.MethodDelete, "/v1/sessions/session_1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/v1/sessions/session_1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RunErrors(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/v1/runs/ghost", `{"message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/runs/echo", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/runs/echo", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/v1/sessions/s1/runs?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "invalid limit")

	_, body = f.do(t, http.MethodDelete, "/v1/sessions/s1/runs", "")
	assert.Equal(t, 0.0, body["cancelled"])
}

func TestServer_Stream(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.srv.URL+"/v1/runs/echo", "application/json", strings.NewReader(`{"message":"yo","stream":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var (
		events []string
		last   string
	)

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if ev, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, ev)
		}

		if data, ok := strings.CutPrefix(line, "data: "); ok {
			last = data
		}
	}

	require.NotEmpty(t, events)
	assert.Equal(t, "partial", events[0])
	assert.Equal(t, "response", events[len(events)-1])

	var final agent.RunResponse
	require.NoError(t, json.Unmarshal([]byte(last), &final))
	assert.Equal(t, "Mock response to: yo", final.Content)
}

func TestServer_HealthMetricsMemories(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.mem.UpsertUserMemory(context.Background(), memory.UserMemory{ID: "m1", UserID: "u1", Memory: "Likes rye"}))

	resp, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	_, body = f.do(t, http.MethodGet, "/v1/users/u1/memories", "")
	require.Len(t, body["memories"], 1)

	resp, _ = f.do(t, http.MethodGet, "/v1/users/u1/sessions/s1/summary", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/v1/users/u1/memories", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = f.do(t, http.MethodGet, "/v1/runnables", "")
	assert.Equal(t, []any{"echo", "shopper"}, body["runnables"])

	mresp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()

	sc := bufio.NewScanner(mresp.Body)
	found := false

	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), `agno_http_requests_total{code="200",method="GET",route="/healthz"}`) {
			found = true
		}
	}

	assert.True(t, found)
}

func TestServer_ShoppingSessionNamedCount(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/v1/shopping/user_1/count", "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/v1/shopping/user_1/count", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["items"])

	_, body = f.do(t, http.MethodGet, "/v1/shopping/nobody", "")
	assert.Equal(t, 0.0, body["count"])
	assert.Equal(t, []any{}, body["sessions"])
}
