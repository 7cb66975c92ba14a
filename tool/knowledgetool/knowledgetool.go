// Package knowledgetool exposes the run's knowledge base as the
// search_knowledge tool.
package knowledgetool

import (
	"errors"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/tool"
)

// Name is the tool name.
const Name = "search_knowledge"

type searchArgs struct {
	Query   string            `json:"query" jsonschema:"required,minLength=1,description=What to look up"`
	Limit   int               `json:"limit,omitempty" jsonschema:"minimum=1,maximum=20,description=Maximum number of passages"`
	Filters map[string]string `json:"filters,omitempty" jsonschema:"description=Metadata filters such as document_type"`
}

// Hit is one passage returned to the model.
type Hit struct {
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// New creates the tool. Results come from ToolContext.SearchKnowledge, so the
// run's knowledge filters apply.
func New(defaultLimit int) tool.Tool {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}

	return tool.NewTypedTool(Name,
		"Search the knowledge base for passages relevant to a query. Use it before answering questions about the documents.",
		func(tc *core.ToolContext, args searchArgs) (any, error) {
			limit := args.Limit
			if limit <= 0 {
				limit = defaultLimit
			}

			res, err := tc.SearchKnowledge(args.Query, limit, args.Filters)
			if errors.Is(err, core.ErrNotConfigured) {
				return nil, tool.NewToolError(Name, "no knowledge base configured", tool.CodeExecution)
			}

			if err != nil {
				return nil, err
			}

			if len(res) == 0 {
				return "No documents found", nil
			}

			hits := make([]Hit, 0, len(res))
			for _, r := range res {
				hits = append(hits, Hit{Content: r.Content, Score: r.Score, Metadata: r.Metadata})
			}

			return hits, nil
		})
}
