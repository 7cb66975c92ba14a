// Package memorytool lets a model manage what it remembers about the user
// (agentic memory) and read the current session's history.
package memorytool

import (
	"errors"
	"fmt"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/tool"
)

type rememberArgs struct {
	Memory string   `json:"memory" jsonschema:"required,minLength=1,description=A durable fact about the user"`
	Topics []string `json:"topics,omitempty" jsonschema:"description=Short topic labels"`
}

type recallArgs struct {
	Query string `json:"query,omitempty" jsonschema:"description=Keywords to look for; empty returns the most recent facts"`
	Limit int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=50"`
}

type historyArgs struct {
	NumMessages int `json:"num_messages,omitempty" jsonschema:"minimum=1,description=How many of the latest messages to return"`
}

// Message is one entry returned by get_session_history.
type Message struct {
	Role    string `json:"role"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Tools returns remember_user_fact, recall_user_facts and get_session_history.
func Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewTypedTool("remember_user_fact", "Store a fact about the user that should be remembered in future conversations.", remember),
		tool.NewTypedTool("recall_user_facts", "Recall stored facts about the user.", recall),
		tool.NewTypedTool("get_session_history", "Return the latest messages of the current conversation.", history),
	}
}

func remember(tc *core.ToolContext, args rememberArgs) (any, error) {
	id, err := tc.AddUserMemory(args.Memory, args.Topics)
	if err != nil {
		return nil, notConfigured("remember_user_fact", err)
	}

	return fmt.Sprintf("Memory %s stored", id), nil
}

func recall(tc *core.ToolContext, args recallArgs) (any, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}

	res, err := tc.SearchMemory(args.Query, limit)
	if err != nil {
		return nil, notConfigured("recall_user_facts", err)
	}

	facts := make([]string, 0, len(res))
	for _, r := range res {
		facts = append(facts, r.Content)
	}

	return facts, nil
}

func history(tc *core.ToolContext, args historyArgs) (any, error) {
	msgs := []Message{}

	for _, ev := range tc.History() {
		text := ev.Content.Text()
		if text == "" {
			continue
		}

		msgs = append(msgs, Message{Role: ev.Content.Role, Author: ev.Author, Content: text})
	}

	if args.NumMessages > 0 && len(msgs) > args.NumMessages {
		msgs = msgs[len(msgs)-args.NumMessages:]
	}

	return msgs, nil
}

func notConfigured(name string, err error) error {
	if errors.Is(err, core.ErrNotConfigured) {
		return tool.NewToolError(name, "no memory configured", tool.CodeExecution)
	}

	return err
}
