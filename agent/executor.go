package agent

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/metrics"
	"github.com/Yaaesthetic/agno/tool"
)

// functionExecutor runs the function calls of one model turn. It returns
// exactly one response event per call, in call order, and never panics.
type functionExecutor struct {
	agent       string
	maxParallel int
	metrics     *metrics.Metrics
}

func (e *functionExecutor) execute(rc *core.RunContext, tools tool.Set, calls []core.FunctionCall) []core.Event {
	n := len(calls)
	results := make([]core.Event, n)

	if n == 0 {
		return results
	}

	if n == 1 {
		results[0] = e.executeSingle(rc, tools, calls[0])
		return results
	}

	maxPar := e.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	batchStart := time.Now()

	var g errgroup.Group
	g.SetLimit(maxPar)

	for i, fc := range calls {
		g.Go(func() error {
			results[i] = e.executeSingle(rc, tools, fc)
			return nil
		})
	}

	_ = g.Wait()

	rc.Logger().Debug(
		"agent.functions.batch.complete",
		"agent", e.agent,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *functionExecutor) executeSingle(rc *core.RunContext, tools tool.Set, fc core.FunctionCall) core.Event {
	toolCtx := core.NewToolContext(rc, fc.ID)
	logger := rc.Logger()

	start := time.Now()

	var (
		result any
		err    error
	)

	if ctxErr := rc.Context.Err(); ctxErr != nil {
		err = ctxErr
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = panicError(r)
					logger.Error("agent.function.panic", "agent", e.agent, "function", fc.Name, "recover", fmt.Sprint(r))
				}
			}()

			result, err = executeTool(tools, toolCtx, fc.Name, fc.Arguments)
		}()
	}

	logging.LogToolCall(logger, fc.Name, time.Since(start), err)
	e.metrics.ObserveToolCall(fc.Name, err)

	respEv := core.NewFunctionResponseEvent(rc.RunID, e.agent, fc.ID, fc.Name, result, err)
	toolCtx.ApplyActions(&respEv)

	return respEv
}

func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

func executeTool(tools tool.Set, toolCtx *core.ToolContext, name, args string) (any, error) {
	impl, err := tools.Lookup(name)
	if err != nil {
		return nil, err
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, tool.NewToolError(name, "arguments are not a JSON object: "+err.Error(), tool.CodeValidation)
		}
	}

	return impl.Call(toolCtx, argMap)
}
