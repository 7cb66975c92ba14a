package agent

import (
	"fmt"
	"strings"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/tool/knowledgetool"
)

const maxPromptMemories = 20

func (a *Agent) systemPrompt(rc *core.RunContext) (string, error) {
	var sb strings.Builder

	section := func(tag, body string) {
		if body == "" {
			return
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}

		if tag == "" {
			sb.WriteString(body)
			return
		}

		fmt.Fprintf(&sb, "<%s>\n%s\n</%s>", tag, body, tag)
	}

	section("", a.opts.Description)
	section("your_role", a.opts.Role)

	var lines []string

	for _, ins := range a.opts.Instructions {
		text, err := ins.Resolve(rc)
		if err != nil {
			return "", fmt.Errorf("resolve instruction: %w", err)
		}

		if text = strings.TrimSpace(text); text != "" {
			lines = append(lines, text)
		}
	}

	if a.opts.Markdown {
		lines = append(lines, "Use markdown to format your answers.")
	}

	if a.opts.ResponseSchema != nil {
		lines = append(lines, "Respond only with a JSON object that matches the requested schema.")
	}

	if a.opts.SearchKnowledge && a.opts.Knowledge != nil {
		lines = append(lines, fmt.Sprintf("Search your knowledge base with %s before answering questions about its documents.", knowledgetool.Name))
	}

	switch len(lines) {
	case 0:
	case 1:
		section("instructions", lines[0])
	default:
		section("instructions", "- "+strings.Join(lines, "\n- "))
	}

	if a.opts.Memory != nil && (a.opts.EnableUserMemories || a.opts.EnableAgenticMemory) {
		mems, err := a.opts.Memory.UserMemories(rc.Context, rc.UserID)
		if err != nil {
			return "", fmt.Errorf("load user memories: %w", err)
		}

		if len(mems) > maxPromptMemories {
			mems = mems[:maxPromptMemories]
		}

		items := make([]string, 0, len(mems))
		for _, m := range mems {
			items = append(items, "- "+m.Memory)
		}

		section("memories_from_previous_interactions", strings.Join(items, "\n"))
	}

	if a.opts.Memory != nil && a.opts.EnableSessionSummaries {
		s, ok, err := a.opts.Memory.Summary(rc.Context, rc.UserID, rc.SessionID)
		if err != nil {
			return "", fmt.Errorf("load session summary: %w", err)
		}

		if ok {
			section("summary_of_previous_interactions", s.Summary)
		}
	}

	section("additional_context", a.opts.AdditionalContext)

	return sb.String(), nil
}

// userMessage appends knowledge references to msg when AddReferences is set.
func (a *Agent) userMessage(rc *core.RunContext, msg string) (string, error) {
	if !a.opts.AddReferences || a.opts.Knowledge == nil {
		return msg, nil
	}

	hits, err := a.opts.Knowledge.SearchKnowledge(rc.Context, msg, a.opts.NumDocuments, rc.KnowledgeFilters)
	if err != nil {
		return "", fmt.Errorf("search references: %w", err)
	}

	if len(hits) == 0 {
		return msg, nil
	}

	var sb strings.Builder
	sb.WriteString(msg)
	sb.WriteString("\n\nUse the following references from the knowledge base if they help:\n<references>")

	for _, h := range hits {
		fmt.Fprintf(&sb, "\n- %s", h.Content)
	}

	sb.WriteString("\n</references>")

	return sb.String(), nil
}
