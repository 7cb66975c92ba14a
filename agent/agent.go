package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/internal/util"
	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/storage"
	"github.com/Yaaesthetic/agno/tool"
	"github.com/Yaaesthetic/agno/tool/knowledgetool"
	"github.com/Yaaesthetic/agno/tool/memorytool"
)

// ErrNoModel is returned by New when Options.Model is nil.
var ErrNoModel = errors.New("agent needs a model")

// Agent answers user messages with a model and tools.
type Agent struct {
	opts     Options
	tools    tool.Set
	defs     []model.ToolDefinition
	executor *functionExecutor
	logger   logging.Logger
}

// New creates an Agent.
func New(opts Options) (*Agent, error) {
	opts.setDefaults()

	if opts.Model == nil {
		return nil, fmt.Errorf("agent %s: %w", opts.Name, ErrNoModel)
	}

	all := append([]tool.Tool{}, opts.Tools...)

	if opts.SearchKnowledge && opts.Knowledge != nil {
		all = append(all, knowledgetool.New(opts.NumDocuments))
	}

	if opts.EnableAgenticMemory && opts.Memory != nil {
		all = append(all, memorytool.Tools()...)
	}

	defs := make([]model.ToolDefinition, 0, len(all))
	seen := map[string]bool{}

	for _, t := range all {
		if seen[t.Name()] {
			return nil, fmt.Errorf("agent %s: duplicate tool %q", opts.Name, t.Name())
		}

		seen[t.Name()] = true

		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return &Agent{
		opts:     opts,
		tools:    tool.NewSet(all...),
		defs:     defs,
		executor: &functionExecutor{agent: opts.Name, maxParallel: opts.MaxParallelTools, metrics: opts.Metrics},
		logger:   opts.Logger,
	}, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.opts.Name }

// Role returns the agent role.
func (a *Agent) Role() string { return a.opts.Role }

// Model returns the configured model.
func (a *Agent) Model() model.Model { return a.opts.Model }

// Storage returns the run store, or nil.
func (a *Agent) Storage() storage.Store { return a.opts.Storage }

// ToolNames lists the tools offered to the model.
func (a *Agent) ToolNames() []string {
	names := make([]string, 0, len(a.defs))
	for _, d := range a.defs {
		names = append(names, d.Function.Name)
	}

	return names
}

// Run answers one user message.
func (a *Agent) Run(ctx context.Context, in RunInput) (*RunResponse, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("agent %s: %w", a.opts.Name, ErrEmptyMessage)
	}

	start := time.Now()

	if in.SessionID == "" {
		in.SessionID = core.NewID()
	}

	runID := core.NewID()
	logger := a.logger

	sess := core.NewSession(in.UserID, in.SessionID)
	sess.ApplyStateDelta(in.State)

	rc := core.NewRunContext(ctx, runID, a.opts.Name, sess, logger)
	if a.opts.Memory != nil {
		rc.Memory = a.opts.Memory
	}

	if a.opts.Knowledge != nil {
		rc.Knowledge = a.opts.Knowledge
	}

	rc.KnowledgeFilters = maps.Clone(a.opts.KnowledgeFilters)
	if len(in.KnowledgeFilters) > 0 {
		if rc.KnowledgeFilters == nil {
			rc.KnowledgeFilters = map[string]string{}
		}

		maps.Copy(rc.KnowledgeFilters, in.KnowledgeFilters)
	}

	logger.Info("agent.run.start", "agent", a.opts.Name, "run_id", runID, "user_id", in.UserID, "session_id", in.SessionID)

	contents, err := a.history(rc)
	if err != nil {
		return nil, err
	}

	instructions, err := a.systemPrompt(rc)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.opts.Name, err)
	}

	msg, err := a.userMessage(rc, in.Message)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.opts.Name, err)
	}

	userEv := core.NewUserMessageEvent(runID, msg)
	rc.AddEvent(userEv)
	contents = append(contents, *userEv.Content)

	resp := &RunResponse{
		RunID:     runID,
		SessionID: in.SessionID,
		UserID:    in.UserID,
		Agent:     a.opts.Name,
		Events:    []core.Event{userEv},
	}

	if err := a.loop(rc, in, instructions, contents, resp); err != nil {
		logger.Error("agent.run.failed", "agent", a.opts.Name, "run_id", runID, "error", err.Error())
		return nil, err
	}

	if a.opts.ResponseSchema != nil {
		text, structured, err := parseStructured(resp.Content, a.opts.ResponseSchema.Schema)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.opts.Name, err)
		}

		resp.Content, resp.Structured = text, structured
	}

	rc.CommitState()
	resp.State = sess.Clone().State

	a.persist(ctx, in, resp, start)

	resp.Metrics.Duration = time.Since(start)

	logger.Info("agent.run.complete",
		"agent", a.opts.Name,
		"run_id", runID,
		"model_calls", resp.Metrics.ModelCalls,
		"tool_calls", resp.Metrics.ToolCalls,
		"duration_ms", resp.Metrics.Duration.Milliseconds(),
	)

	return resp, nil
}

// history loads this agent's prior runs of the session into the run's
// session. Runs of other owners sharing the session (team members) are
// skipped. It returns the model contents of the last NumHistoryRuns runs when
// history is enabled.
func (a *Agent) history(rc *core.RunContext) ([]core.Content, error) {
	if a.opts.Storage == nil {
		return nil, nil
	}

	stored, err := a.opts.Storage.Runs(rc.Context, rc.SessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("agent %s: load history: %w", a.opts.Name, err)
	}

	runs := a.ownRuns(stored)

	for _, r := range runs {
		rc.Session.AddEvent(core.NewUserMessageEvent(r.ID, r.Input))
		rc.Session.AddEvent(core.NewMessageEvent(r.ID, r.Owner, r.Output))
	}

	if !a.opts.AddHistoryToMessages {
		return nil, nil
	}

	recent := storage.Tail(runs, a.opts.NumHistoryRuns)
	contents := make([]core.Content, 0, 2*len(recent))

	for _, r := range recent {
		contents = append(contents, core.NewTextContent("user", r.Input), core.NewTextContent("assistant", r.Output))
	}

	return contents, nil
}

func (a *Agent) loop(rc *core.RunContext, in RunInput, instructions string, contents []core.Content, resp *RunResponse) error {
	rounds := core.NewLimiter("tool rounds", a.opts.MaxToolRounds)
	info := a.opts.Model.Info()

	var onPartial func(model.Response)
	if in.OnPartial != nil {
		onPartial = func(r model.Response) { in.OnPartial(r.Content.Text()) }
	}

	for {
		req := model.Request{
			Instructions:   instructions,
			Contents:       contents,
			Tools:          a.defs,
			Stream:         a.opts.Stream || in.OnPartial != nil,
			ResponseSchema: a.opts.ResponseSchema,
		}

		callStart := time.Now()
		out, err := model.Collect(rc.Context, a.opts.Model, req, onPartial)

		tokens := 0
		if out.Usage != nil {
			tokens = out.Usage.TotalTokens
		}

		logging.LogModelCall(rc.Logger(), info.Name, tokens, time.Since(callStart), err)
		a.opts.Metrics.ObserveModelCall(info.Name, err)

		if err != nil {
			return fmt.Errorf("agent %s: model %s: %w", a.opts.Name, info.Name, err)
		}

		resp.Metrics.ModelCalls++
		addUsage(&resp.Metrics.Usage, out.Usage)

		calls := out.Content.FunctionCalls()
		if len(calls) == 0 {
			resp.Content = out.Content.Text()

			ev := core.NewMessageEvent(rc.RunID, a.opts.Name, resp.Content)
			rc.AddEvent(ev)
			resp.Events = append(resp.Events, ev)

			return nil
		}

		if err := rounds.Increment(); err != nil {
			return fmt.Errorf("agent %s: %w", a.opts.Name, err)
		}

		assistant := withCallIDs(out.Content)
		calls = assistant.FunctionCalls()

		callEv := core.NewEvent(rc.RunID, a.opts.Name)
		callEv.Content = &assistant
		rc.AddEvent(callEv)
		resp.Events = append(resp.Events, callEv)
		contents = append(contents, assistant)

		results := a.executor.execute(rc, a.tools, calls)

		var (
			skip     bool
			skipText []string
		)

		for i, ev := range results {
			rc.AddEvent(ev)
			resp.Events = append(resp.Events, ev)
			contents = append(contents, *ev.Content)

			fr := ev.GetFunctionResponses()[0]
			resp.ToolCalls = append(resp.ToolCalls, storage.ToolCall{
				ID:        fr.ID,
				Name:      fr.Name,
				Arguments: calls[i].Arguments,
				Result:    resultText(fr),
				Error:     fr.Error,
			})
			resp.Metrics.ToolCalls++

			if ev.Actions.SkipSummarization != nil && *ev.Actions.SkipSummarization {
				skip = true
				skipText = append(skipText, model.ResponseText(fr))
			}
		}

		if skip {
			resp.Content = strings.Join(skipText, "\n")
			return nil
		}
	}
}

func (a *Agent) persist(ctx context.Context, in RunInput, resp *RunResponse, start time.Time) {
	if a.opts.Storage != nil {
		run := storage.Run{
			ID:        resp.RunID,
			SessionID: resp.SessionID,
			UserID:    resp.UserID,
			Owner:     a.opts.Name,
			Mode:      a.opts.RunMode,
			Input:     in.Message,
			Output:    resp.Content,
			ToolCalls: resp.ToolCalls,
			CreatedAt: start.UTC(),
		}

		if err := a.opts.Storage.AppendRun(ctx, run); err != nil {
			a.logger.Error("agent.run.persist.failed", "agent", a.opts.Name, "run_id", resp.RunID, "error", err.Error())
		}
	}

	if a.opts.Memory == nil {
		return
	}

	if a.opts.EnableUserMemories {
		ids, err := a.opts.Memory.ExtractUserMemories(ctx, in.UserID, in.Message)
		if err != nil {
			a.logger.Warn("agent.memory.extract.failed", "agent", a.opts.Name, "error", err.Error())
		} else if len(ids) > 0 {
			a.logger.Debug("agent.memory.extracted", "agent", a.opts.Name, "count", len(ids))
		}
	}

	if a.opts.EnableSessionSummaries {
		runs := []storage.Run{{Input: in.Message, Output: resp.Content}}

		if a.opts.Storage != nil {
			stored, err := a.opts.Storage.Runs(ctx, resp.SessionID, 0)
			if err == nil {
				if own := a.ownRuns(stored); len(own) > 0 {
					runs = own
				}
			}
		}

		if _, err := a.opts.Memory.CreateSessionSummary(ctx, in.UserID, resp.SessionID, runs); err != nil {
			a.logger.Warn("agent.summary.failed", "agent", a.opts.Name, "error", err.Error())
		}
	}
}

func (a *Agent) ownRuns(runs []storage.Run) []storage.Run {
	own := make([]storage.Run, 0, len(runs))

	for _, r := range runs {
		if r.Owner == a.opts.Name {
			own = append(own, r)
		}
	}

	return own
}

// withCallIDs returns a copy of c where every function call has an id.
func withCallIDs(c core.Content) core.Content {
	parts := make([]core.Part, len(c.Parts))

	for i, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok && fc.FunctionCall.ID == "" {
			fc.FunctionCall.ID = "call_" + core.NewID()
			p = fc
		}

		parts[i] = p
	}

	return core.Content{Role: "assistant", Parts: parts}
}

func resultText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return ""
	}

	return model.ResponseText(fr)
}

func addUsage(total *model.TokenUsage, u *model.TokenUsage) {
	if u == nil {
		return
	}

	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}

// parseStructured strips an optional markdown code fence, decodes the JSON
// answer and validates it against schema.
func parseStructured(content string, schema map[string]any) (string, any, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	text = strings.TrimSpace(text)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return "", nil, &OutputValidationError{Content: content, Err: err}
	}

	if err := util.Validate(schema, doc); err != nil {
		return "", nil, &OutputValidationError{Content: content, Err: err}
	}

	return text, doc, nil
}
