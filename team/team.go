// Package team puts a leader agent in front of member agents (or other
// teams). The leader either routes a request to one member, coordinates
// several members and synthesises their answers, or asks every member at once
// and merges what they say. A team without members is a plain agent that
// owns the team tools, which is how the shopping list assistant runs.
package team

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/memory"
	"github.com/Yaaesthetic/agno/metrics"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/storage"
	"github.com/Yaaesthetic/agno/tool"
)

// Mode selects how the leader uses its members.
type Mode string

// Team modes.
const (
	ModeRoute       Mode = "route"
	ModeCoordinate  Mode = "coordinate"
	ModeCollaborate Mode = "collaborate"
)

// ParseMode validates a mode name; empty means coordinate.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCoordinate:
		return ModeCoordinate, nil
	case ModeRoute:
		return ModeRoute, nil
	case ModeCollaborate:
		return ModeCollaborate, nil
	default:
		return "", fmt.Errorf("unknown team mode %q", s)
	}
}

// Member is anything the leader can delegate to. *agent.Agent and *Team
// both qualify.
type Member interface {
	Name() string
	Role() string
	Run(ctx context.Context, in agent.RunInput) (*agent.RunResponse, error)
}

// Options configures a Team.
type Options struct {
	Name        string
	Mode        Mode
	Role        string
	Description string
	Model       model.Model
	Members     []Member
	// Tools are owned by the leader itself.
	Tools             []tool.Tool
	Instructions      []agent.Instruction
	AdditionalContext string
	Markdown          bool
	ResponseSchema    *model.ResponseSchema

	// ShareMemberInteractions passes earlier member answers of the same run
	// along with each new delegated task.
	ShareMemberInteractions bool

	Knowledge        core.KnowledgeSearcher
	SearchKnowledge  bool
	KnowledgeFilters map[string]string

	Storage              storage.Store
	AddHistoryToMessages bool
	NumHistoryRuns       int

	Memory                 *memory.Manager
	EnableAgenticMemory    bool
	EnableUserMemories     bool
	EnableSessionSummaries bool

	MaxToolRounds    int
	MaxParallelTools int

	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Team is a leader agent plus its members.
type Team struct {
	opts    Options
	leader  *agent.Agent
	members []Member
	byID    map[string]Member
	logger  logging.Logger
}

// MemberID derives the id the leader uses for a member name.
func MemberID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// New creates a Team.
func New(opts Options) (*Team, error) {
	if opts.Name == "" {
		opts.Name = "team"
	}

	if opts.Mode == "" {
		opts.Mode = ModeCoordinate
	}

	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	t := &Team{
		opts:    opts,
		members: opts.Members,
		byID:    make(map[string]Member, len(opts.Members)),
		logger:  opts.Logger,
	}

	for _, m := range opts.Members {
		id := MemberID(m.Name())
		if _, dup := t.byID[id]; dup {
			return nil, fmt.Errorf("team %s: duplicate member %q", opts.Name, m.Name())
		}

		t.byID[id] = m
	}

	tools := append([]tool.Tool{}, opts.Tools...)

	if len(opts.Members) > 0 {
		if opts.Mode == ModeCollaborate {
			tools = append(tools, t.runMembersTool())
		} else {
			tools = append(tools, t.transferTool())
		}
	}

	instructions := []agent.Instruction{}
	if len(opts.Members) > 0 {
		instructions = append(instructions, agent.NewInstructionFromText(modeInstruction(opts.Mode)))
	}

	instructions = append(instructions, opts.Instructions...)

	leader, err := agent.New(agent.Options{
		Name:                   opts.Name,
		Role:                   opts.Role,
		Description:            opts.Description,
		Instructions:           instructions,
		AdditionalContext:      joinNonEmpty("\n\n", t.membersContext(), opts.AdditionalContext),
		Model:                  opts.Model,
		Tools:                  tools,
		Knowledge:              opts.Knowledge,
		SearchKnowledge:        opts.SearchKnowledge,
		KnowledgeFilters:       opts.KnowledgeFilters,
		ResponseSchema:         opts.ResponseSchema,
		Markdown:               opts.Markdown,
		MaxToolRounds:          opts.MaxToolRounds,
		MaxParallelTools:       opts.MaxParallelTools,
		AddHistoryToMessages:   opts.AddHistoryToMessages,
		NumHistoryRuns:         opts.NumHistoryRuns,
		Storage:                opts.Storage,
		RunMode:                storage.ModeTeam,
		Memory:                 opts.Memory,
		EnableAgenticMemory:    opts.EnableAgenticMemory,
		EnableUserMemories:     opts.EnableUserMemories,
		EnableSessionSummaries: opts.EnableSessionSummaries,
		Logger:                 opts.Logger,
		Metrics:                opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("team %s: %w", opts.Name, err)
	}

	t.leader = leader

	return t, nil
}

// Name returns the team name.
func (t *Team) Name() string { return t.opts.Name }

// Role returns the team role, used when the team is itself a member.
func (t *Team) Role() string { return t.opts.Role }

// Mode returns the team mode.
func (t *Team) Mode() Mode { return t.opts.Mode }

// Members returns the members in declaration order.
func (t *Team) Members() []Member { return t.members }

// Leader returns the leader agent.
func (t *Team) Leader() *agent.Agent { return t.leader }

// Run answers one user message. Member answers produced on the way are
// listed in MemberResponses.
func (t *Team) Run(ctx context.Context, in agent.RunInput) (*agent.RunResponse, error) {
	if in.SessionID == "" {
		in.SessionID = core.NewID()
	}

	c := &collector{}
	ctx = context.WithValue(ctx, collectorKey{}, c)

	resp, err := t.leader.Run(ctx, in)
	if err != nil {
		return nil, err
	}

	resp.MemberResponses = c.all()

	return resp, nil
}

func (t *Team) lookup(id string) (Member, bool) {
	m, ok := t.byID[MemberID(id)]
	return m, ok
}

func (t *Team) membersContext() string {
	if len(t.members) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Team members:")

	for _, m := range t.members {
		fmt.Fprintf(&sb, "\n- member_id: %s, name: %s", MemberID(m.Name()), m.Name())

		if role := m.Role(); role != "" {
			fmt.Fprintf(&sb, ", role: %s", role)
		}
	}

	return sb.String()
}

func modeInstruction(m Mode) string {
	switch m {
	case ModeRoute:
		return "Pick the single team member best suited to the request and transfer the task to them with transfer_task_to_member. " +
			"Their answer is returned to the user as is."
	case ModeCollaborate:
		return "Send the task to all team members at once with run_member_agents, then combine their answers into one response."
	default:
		return "Break the request into tasks, delegate each to the right team member with transfer_task_to_member " +
			"and synthesise their answers into the final response."
	}
}

type collectorKey struct{}

type collector struct {
	mu    sync.Mutex
	resps []*agent.RunResponse
	log   []string
}

func (c *collector) add(member, task string, r *agent.RunResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resps = append(c.resps, r)
	c.log = append(c.log, fmt.Sprintf("%s was asked: %s\n%s answered: %s", member, task, member, r.Content))
}

func (c *collector) all() []*agent.RunResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*agent.RunResponse(nil), c.resps...)
}

func (c *collector) interactions() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return strings.Join(c.log, "\n\n")
}

func collectorFrom(ctx context.Context) *collector {
	if c, ok := ctx.Value(collectorKey{}).(*collector); ok {
		return c
	}

	return &collector{}
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string

	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return strings.Join(out, sep)
}
