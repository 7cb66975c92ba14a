package app

import (
	"fmt"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/config"
	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/memory"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/team"
	"github.com/Yaaesthetic/agno/tool"
)

// Member returns the built agent or team registered under name.
func (a *App) Member(name string) (team.Member, bool) {
	m, ok := a.members[name]
	return m, ok
}

// member builds (once) the agent or team named name. Teams build their
// members first; cycles were rejected by config validation.
func (a *App) member(name string) (team.Member, error) {
	if m, ok := a.members[name]; ok {
		return m, nil
	}

	var (
		m   team.Member
		err error
	)

	switch {
	case a.Config.Agents[name] != nil:
		m, err = a.buildAgent(a.Config.Agents[name])
	case a.Config.Teams[name] != nil:
		m, err = a.buildTeam(a.Config.Teams[name])
	default:
		return nil, fmt.Errorf("unknown agent or team %q", name)
	}

	if err != nil {
		return nil, err
	}

	a.members[name] = m

	return m, nil
}

func (a *App) buildAgent(ac *config.AgentConfig) (*agent.Agent, error) {
	llm := a.Models[ac.Model]

	ag, err := agent.New(agent.Options{
		Name:                   ac.Name,
		Role:                   ac.Role,
		Description:            ac.Description,
		Instructions:           agent.Texts(ac.Instructions...),
		AdditionalContext:      ac.AdditionalContext,
		Model:                  llm,
		Tools:                  a.tools(ac.Tools),
		Knowledge:              a.knowledge(ac.Knowledge),
		SearchKnowledge:        ac.SearchKnowledge,
		AddReferences:          ac.AddReferences,
		KnowledgeFilters:       ac.KnowledgeFilters,
		NumDocuments:           a.numDocuments(ac.Knowledge),
		ResponseSchema:         responseSchema(ac.Response),
		Markdown:               ac.Markdown,
		Stream:                 ac.Stream,
		MaxToolRounds:          ac.MaxToolRounds,
		MaxParallelTools:       ac.MaxParallelTools,
		AddHistoryToMessages:   ac.AddHistory,
		NumHistoryRuns:         ac.NumHistoryRuns,
		Storage:                a.Storage,
		Memory:                 a.memoryManager(ac.MemoryFlags, llm),
		EnableAgenticMemory:    ac.AgenticMemory,
		EnableUserMemories:     ac.UserMemories,
		EnableSessionSummaries: ac.SessionSummaries,
		Logger:                 a.Logger,
		Metrics:                a.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return ag, nil
}

func (a *App) buildTeam(tc *config.TeamConfig) (*team.Team, error) {
	members := make([]team.Member, 0, len(tc.Members))

	for _, name := range tc.Members {
		m, err := a.member(name)
		if err != nil {
			return nil, fmt.Errorf("team %s: %w", tc.Name, err)
		}

		members = append(members, m)
	}

	mode, err := team.ParseMode(tc.Mode)
	if err != nil {
		return nil, fmt.Errorf("team %s: %w", tc.Name, err)
	}

	llm := a.Models[tc.Model]

	return team.New(team.Options{
		Name:                    tc.Name,
		Mode:                    mode,
		Role:                    tc.Role,
		Description:             tc.Description,
		Model:                   llm,
		Members:                 members,
		Tools:                   a.tools(tc.Tools),
		Instructions:            agent.Texts(tc.Instructions...),
		AdditionalContext:       tc.AdditionalContext,
		Markdown:                tc.Markdown,
		ResponseSchema:          responseSchema(tc.Response),
		ShareMemberInteractions: tc.ShareMemberInteractions,
		Knowledge:               a.knowledge(tc.Knowledge),
		SearchKnowledge:         tc.SearchKnowledge,
		KnowledgeFilters:        tc.KnowledgeFilters,
		Storage:                 a.Storage,
		AddHistoryToMessages:    tc.AddHistory,
		NumHistoryRuns:          tc.NumHistoryRuns,
		Memory:                  a.memoryManager(tc.MemoryFlags, llm),
		EnableAgenticMemory:     tc.AgenticMemory,
		EnableUserMemories:      tc.UserMemories,
		EnableSessionSummaries:  tc.SessionSummaries,
		MaxToolRounds:           tc.MaxToolRounds,
		Logger:                  a.Logger,
		Metrics:                 a.Metrics,
	})
}

func (a *App) tools(sets []string) []tool.Tool {
	var out []tool.Tool

	for _, s := range sets {
		if s == config.ToolShopping {
			out = append(out, a.Shopping.Tools()...)
		}
	}

	return out
}

// knowledge returns nil (not a typed nil) when no base is named.
func (a *App) knowledge(name string) core.KnowledgeSearcher {
	if b, ok := a.Knowledge[name]; ok && b != nil {
		return b
	}

	return nil
}

func (a *App) numDocuments(name string) int {
	if kc, ok := a.Config.Knowledge[name]; ok {
		return kc.NumDocuments
	}

	return 0
}

// memoryManager returns a manager over the shared memory DB, driven by the
// configured memory model or else by the owner's model.
func (a *App) memoryManager(flags config.MemoryFlags, owner model.Model) *memory.Manager {
	if !flags.Enabled() {
		return nil
	}

	llm := owner
	if m, ok := a.Models[a.Config.Memory.Model]; ok {
		llm = m
	}

	return memory.NewManager(a.MemoryDB, func(o *memory.ManagerOptions) {
		o.Model = llm
		o.Logger = a.Logger
	})
}

func responseSchema(rc *config.ResponseConfig) *model.ResponseSchema {
	if rc == nil {
		return nil
	}

	name := rc.Name
	if name == "" {
		name = "response"
	}

	return &model.ResponseSchema{Name: name, Description: rc.Description, Schema: rc.Schema}
}
