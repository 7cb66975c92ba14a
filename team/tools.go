package team

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/tool"
)

type transferArgs struct {
	MemberID       string `json:"member_id" jsonschema:"required,minLength=1,description=Id of the team member"`
	Task           string `json:"task_description" jsonschema:"required,minLength=1,description=What the member should do"`
	ExpectedOutput string `json:"expected_output,omitempty" jsonschema:"description=What a good answer looks like"`
}

type runMembersArgs struct {
	Task string `json:"task_description" jsonschema:"required,minLength=1,description=The task every member works on"`
}

// MemberAnswer is one entry of the run_member_agents result.
type MemberAnswer struct {
	Member  string `json:"member"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (t *Team) transferTool() tool.Tool {
	const name = "transfer_task_to_member"

	return tool.NewTypedTool(name,
		"Transfer a task to a team member and return their answer.",
		func(tc *core.ToolContext, args transferArgs) (any, error) {
			m, ok := t.lookup(args.MemberID)
			if !ok {
				return nil, tool.NewToolError(name,
					fmt.Sprintf("member %q not found, available members: %s", args.MemberID, strings.Join(t.memberIDs(), ", ")),
					tool.CodeNotFound)
			}

			c := collectorFrom(tc.Context())

			task := args.Task
			if args.ExpectedOutput != "" {
				task += "\n\nExpected output: " + args.ExpectedOutput
			}

			if t.opts.ShareMemberInteractions {
				if prior := c.interactions(); prior != "" {
					task += "\n\n<member_interactions>\n" + prior + "\n</member_interactions>"
				}
			}

			tc.TransferToMember(m.Name())

			resp, err := m.Run(tc.Context(), agent.RunInput{Message: task, UserID: tc.UserID(), SessionID: tc.SessionID()})
			if err != nil {
				return nil, fmt.Errorf("member %s: %w", m.Name(), err)
			}

			c.add(m.Name(), args.Task, resp)

			if t.opts.Mode == ModeRoute {
				tc.SkipSummarization()
			}

			return resp.Content, nil
		})
}

func (t *Team) runMembersTool() tool.Tool {
	return tool.NewTypedTool("run_member_agents",
		"Send a task to every team member at once and return all their answers.",
		func(tc *core.ToolContext, args runMembersArgs) (any, error) {
			c := collectorFrom(tc.Context())
			answers := make([]MemberAnswer, len(t.members))
			resps := make([]*agent.RunResponse, len(t.members))

			var g errgroup.Group

			for i, m := range t.members {
				g.Go(func() error {
					answers[i].Member = m.Name()

					resp, err := m.Run(tc.Context(), agent.RunInput{Message: args.Task, UserID: tc.UserID(), SessionID: tc.SessionID()})
					if err != nil {
						answers[i].Error = err.Error()
						tc.Logger().Warn("team.member.failed", "team", t.opts.Name, "member", m.Name(), "error", err.Error())

						return nil
					}

					answers[i].Content = resp.Content
					resps[i] = resp

					return nil
				})
			}

			_ = g.Wait()

			for i, r := range resps {
				if r != nil {
					c.add(t.members[i].Name(), args.Task, r)
				}
			}

			return answers, nil
		})
}

func (t *Team) memberIDs() []string {
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
