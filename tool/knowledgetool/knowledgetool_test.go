package knowledgetool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/internal/testutil"
	"github.com/Yaaesthetic/agno/tool"
)

type stubKnowledge struct {
	limit   int
	filters map[string]string
	hits    []core.SearchResult
}

func (s *stubKnowledge) SearchKnowledge(_ context.Context, _ string, limit int, filters map[string]string) ([]core.SearchResult, error) {
	s.limit, s.filters = limit, filters
	return s.hits, nil
}

func TestSearchKnowledge(t *testing.T) {
	kb := &stubKnowledge{hits: []core.SearchResult{{Content: "Ships in two days", Score: 0.9, Metadata: map[string]string{"name": "faq"}}}}
	tc := testutil.NewToolContext(nil, func(rc *core.RunContext) {
		rc.Knowledge = kb
		rc.KnowledgeFilters = map[string]string{"document_type": "faq"}
	})

	res, err := New(3).Call(tc, map[string]any{"query": "shipping", "filters": map[string]any{"lang": "en"}})
	require.NoError(t, err)

	assert.Equal(t, []Hit{{Content: "Ships in two days", Score: 0.9, Metadata: map[string]string{"name": "faq"}}}, res)
	assert.Equal(t, 3, kb.limit)
	assert.Equal(t, map[string]string{"document_type": "faq", "lang": "en"}, kb.filters)
}

func TestSearchKnowledge_NoHits(t *testing.T) {
	tc := testutil.NewToolContext(nil, func(rc *core.RunContext) { rc.Knowledge = &stubKnowledge{} })

	res, err := New(0).Call(tc, map[string]any{"query": "x", "limit": 2})
	require.NoError(t, err)
	assert.Equal(t, "No documents found", res)
}

func TestSearchKnowledge_NotConfigured(t *testing.T) {
	_, err := New(0).Call(testutil.NewToolContext(nil), map[string]any{"query": "x"})

	var te *tool.ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tool.CodeExecution, te.Code)
}

func TestSearchKnowledge_RequiresQuery(t *testing.T) {
	_, err := New(0).Call(testutil.NewToolContext(nil), map[string]any{})

	var te *tool.ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tool.CodeValidation, te.Code)
}
